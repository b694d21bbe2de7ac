package service

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// InboundEvent 是客戶端送入的事件封包
type InboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// OutboundEvent 是推送給客戶端的事件封包
type OutboundEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Client 代表一個 WebSocket 客戶端連接。連線生命週期內身份固定，
// 斷線後即銷毀，不做任何持久化。
type Client struct {
	ID       string             // 連線識別碼
	Conn     *websocket.Conn    // WebSocket 連接
	Identity *Identity          // 握手驗證後的身份
	SendChan chan OutboundEvent // 事件發送通道，用於異步傳送

	mu     sync.Mutex // 保護 closed，讓 trySend 與 close 互斥
	closed bool
}

// NewClient 建立一個新的客戶端連接
func NewClient(conn *websocket.Conn, identity *Identity) *Client {
	return &Client{
		ID:       uuid.NewString(),
		Conn:     conn,
		Identity: identity,
		SendChan: make(chan OutboundEvent, 256), // 緩衝大小 256 的事件通道
	}
}

// trySend 非阻塞地將事件放入發送通道，通道已滿時回傳 false。
// 連線已關閉時靜默丟棄事件並回傳 true：廣播快照可能仍持有
// 剛斷線的客戶端，往已關閉的通道發送會讓整個進程 panic。
func (c *Client) trySend(event OutboundEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return true
	}

	select {
	case c.SendChan <- event:
		return true
	default:
		return false
	}
}

// close 關閉發送通道，重複呼叫是 no-op。通道只能從這裡關閉，
// 確保不會與進行中的 trySend 競爭。
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.SendChan)
}

// writePump 處理向客戶端發送事件的邏輯
func (c *Client) writePump() {
	// 心跳檢查計時器
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-c.SendChan:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
