package service

import (
	"fmt"
	"log"
	"sync"
)

// UserRoom 回傳用戶個人房間的鍵，連線建立時自動加入，
// 用於不論用戶當前開啟哪個對話都能送達的通知
func UserRoom(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

// ConversationRoom 回傳對話房間的鍵
func ConversationRoom(conversationID uint) string {
	return fmt.Sprintf("conversation:%d", conversationID)
}

// RoomManager 維護房間到連線的成員索引。房間沒有獨立存儲，
// 首次加入時隱式建立，清空時隱式移除；所有讀寫都必須經過
// 這裡的方法，事件處理器不直接碰觸索引。
type RoomManager struct {
	rooms map[string]map[*Client]bool // 兩層 map: 房間鍵 -> client -> bool
	mu    sync.RWMutex                // 保護 rooms map 的讀寫鎖
}

// NewRoomManager 創建並初始化房間索引
func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms: make(map[string]map[*Client]bool),
	}
}

// Join 將連線加入房間
func (m *RoomManager) Join(room string, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rooms[room] == nil {
		m.rooms[room] = make(map[*Client]bool)
	}
	m.rooms[room][client] = true
}

// Leave 將連線移出房間，不是成員時為冪等的 no-op
func (m *RoomManager) Leave(room string, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(room, client)
}

// LeaveAll 釋放連線的所有房間成員資格，在斷線時呼叫
func (m *RoomManager) LeaveAll(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for room := range m.rooms {
		m.remove(room, client)
	}
}

// remove 假定呼叫者已持有寫鎖
func (m *RoomManager) remove(room string, client *Client) {
	clients, ok := m.rooms[room]
	if !ok {
		return
	}
	delete(clients, client)
	// 房間空了就刪除索引項
	if len(clients) == 0 {
		delete(m.rooms, room)
	}
}

// IsMember 檢查連線是否為房間成員
func (m *RoomManager) IsMember(room string, client *Client) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[room][client]
}

// Count 回傳房間當前的連線數
func (m *RoomManager) Count(room string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[room])
}

// Broadcast 向房間內所有連線廣播事件
func (m *RoomManager) Broadcast(room string, event OutboundEvent) {
	m.broadcast(room, nil, event)
}

// BroadcastExcept 向房間內除 except 以外的連線廣播事件
func (m *RoomManager) BroadcastExcept(room string, except *Client, event OutboundEvent) {
	m.broadcast(room, except, event)
}

func (m *RoomManager) broadcast(room string, except *Client, event OutboundEvent) {
	m.mu.RLock()
	targets := make([]*Client, 0, len(m.rooms[room]))
	for client := range m.rooms[room] {
		if client != except {
			targets = append(targets, client)
		}
	}
	m.mu.RUnlock()

	for _, client := range targets {
		if !client.trySend(event) {
			// 客戶端事件通道已滿，視為慢消費者並斷開
			log.Printf("evicting slow consumer %s (user %d) from %s", client.ID, client.Identity.UserID, room)
			m.LeaveAll(client)
			if client.Conn != nil {
				client.Conn.Close()
			}
		}
	}
}
