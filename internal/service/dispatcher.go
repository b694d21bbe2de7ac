package service

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"backoffice_web/internal/models"
)

// 入站事件名稱
const (
	EventJoinConversation  = "joinConversation"
	EventLeaveConversation = "leaveConversation"
	EventSendMessage       = "sendMessage"
	EventTyping            = "typing"
	EventMarkMessagesRead  = "markMessagesRead"
	EventUpdateMessage     = "updateMessage"
	EventDeleteMessage     = "deleteMessage"
)

// 出站事件名稱
const (
	EventParticipants           = "participants"
	EventNewMessage             = "newMessage"
	EventNewMessageNotification = "newMessageNotification"
	EventUserTyping             = "userTyping"
	EventMessagesRead           = "messagesRead"
	EventMessageUpdated         = "messageUpdated"
	EventMessageDeleted         = "messageDeleted"
	EventParticipantAdded       = "participantAdded"
	EventError                  = "error"
)

type joinConversationPayload struct {
	ConversationID uint `json:"conversation_id"`
}

type sendMessagePayload struct {
	ConversationID uint               `json:"conversation_id"`
	Content        string             `json:"content"`
	Type           models.MessageType `json:"type"`
}

type typingPayload struct {
	ConversationID uint `json:"conversation_id"`
	IsTyping       bool `json:"is_typing"`
}

type markMessagesReadPayload struct {
	ConversationID uint `json:"conversation_id"`
}

type updateMessagePayload struct {
	ConversationID uint   `json:"conversation_id"`
	MessageID      uint   `json:"message_id"`
	Content        string `json:"content"`
}

type deleteMessagePayload struct {
	ConversationID uint `json:"conversation_id"`
	MessageID      uint `json:"message_id"`
}

// ParticipantInfo 是 participants 事件回傳的參與者摘要
type ParticipantInfo struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// Dispatcher 是即時層的核心：接收客戶端事件、驗證權限與房間
// 成員資格、在交易中持久化狀態變更，再向目標房間扇出事件。
// 任何處理器層級的錯誤都只會轉成給呼叫者的 error 事件或伺服器端
// 日誌，不會中斷整個連線或影響其他連線。
type Dispatcher struct {
	rooms *RoomManager
	chat  *ChatService
}

func NewDispatcher(rooms *RoomManager, chat *ChatService) *Dispatcher {
	return &Dispatcher{rooms: rooms, chat: chat}
}

// HandleConnection 接管一條已通過握手驗證的連線：
// 自動加入個人房間，啟動讀寫迴圈，直到斷線為止。
// 斷線時隱式釋放所有房間成員資格。
func (d *Dispatcher) HandleConnection(conn *websocket.Conn, identity *Identity) {
	client := NewClient(conn, identity)
	log.Printf("connection %s established for user %d", client.ID, identity.UserID)

	// 個人房間在連線期間固定存在，用於離線式通知投遞
	d.rooms.Join(UserRoom(identity.UserID), client)

	defer func() {
		d.rooms.LeaveAll(client)
		conn.Close()
		client.close()
		log.Printf("connection %s closed for user %d", client.ID, identity.UserID)
	}()

	go client.writePump()
	d.readPump(client)
}

// readPump 持續讀取並逐一處理客戶端事件。每個事件處理完
//（包含交易提交與廣播入隊）才會讀取下一個，因此單一連線的
// 事件彼此完全有序。
func (d *Dispatcher) readPump(client *Client) {
	client.Conn.SetReadLimit(4096)
	client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket unexpected close error on connection %s: %v", client.ID, err)
			}
			break
		}

		var event InboundEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			log.Printf("event parse error on connection %s: %v", client.ID, err)
			d.emitError(client, "無法解析事件")
			continue
		}

		d.handleEvent(client, event)
	}
}

// handleEvent 分派單一入站事件。錯誤一律在這層收斂。
func (d *Dispatcher) handleEvent(client *Client, event InboundEvent) {
	switch event.Event {
	case EventJoinConversation:
		d.handleJoinConversation(client, event.Data)
	case EventLeaveConversation:
		d.handleLeaveConversation(client, event.Data)
	case EventSendMessage:
		d.handleSendMessage(client, event.Data)
	case EventTyping:
		d.handleTyping(client, event.Data)
	case EventMarkMessagesRead:
		d.handleMarkMessagesRead(client, event.Data)
	case EventUpdateMessage:
		d.handleUpdateMessage(client, event.Data)
	case EventDeleteMessage:
		d.handleDeleteMessage(client, event.Data)
	default:
		d.emitError(client, "未知的事件: "+event.Event)
	}
}

// handleJoinConversation 驗證參與者資格後將連線加入對話房間，
// 並回傳當前參與者列表；失敗時只對呼叫者發出 error，不改變任何狀態
func (d *Dispatcher) handleJoinConversation(client *Client, data json.RawMessage) {
	var payload joinConversationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		d.emitError(client, "無法解析事件")
		return
	}

	conversation, err := d.chat.Conversation(payload.ConversationID)
	if err != nil {
		d.emitError(client, err.Error())
		return
	}
	if !conversation.HasParticipant(client.Identity.UserID) {
		d.emitError(client, ErrNotParticipant.Error())
		return
	}

	d.rooms.Join(ConversationRoom(payload.ConversationID), client)

	participants := make([]ParticipantInfo, 0, len(conversation.Participants))
	for _, p := range conversation.Participants {
		participants = append(participants, ParticipantInfo{ID: p.UserID, Name: p.User.Name})
	}
	client.trySend(OutboundEvent{Event: EventParticipants, Data: participants})
}

// handleLeaveConversation 無條件將連線移出房間，不是成員時為 no-op
func (d *Dispatcher) handleLeaveConversation(client *Client, data json.RawMessage) {
	var payload joinConversationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		d.emitError(client, "無法解析事件")
		return
	}
	d.rooms.Leave(ConversationRoom(payload.ConversationID), client)
}

// handleSendMessage 先過權限閘再檢查參與者資格，成功提交後
// 向對話房間廣播 newMessage，並向接收者的個人房間投遞通知
func (d *Dispatcher) handleSendMessage(client *Client, data json.RawMessage) {
	var payload sendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		d.emitError(client, "無法解析事件")
		return
	}

	identity := client.Identity
	if !models.Allowed(identity.Role, identity.Permissions, models.PermMessageCreate) {
		d.emitError(client, ErrPermissionDenied.Error())
		return
	}

	message, conversation, err := d.chat.SendMessage(
		identity.UserID, payload.ConversationID, payload.Content, payload.Type)
	if err != nil {
		d.emitError(client, err.Error())
		return
	}

	d.rooms.Broadcast(ConversationRoom(conversation.ID), OutboundEvent{
		Event: EventNewMessage,
		Data:  message,
	})

	notification := OutboundEvent{
		Event: EventNewMessageNotification,
		Data: map[string]interface{}{
			"conversation_id": conversation.ID,
			"message":         message,
		},
	}
	if message.ReceiverID != nil {
		d.rooms.Broadcast(UserRoom(*message.ReceiverID), notification)
		return
	}
	// 群組對話沒有固定接收者，通知除發送者以外的所有參與者
	for _, p := range conversation.Participants {
		if p.UserID != identity.UserID {
			d.rooms.Broadcast(UserRoom(p.UserID), notification)
		}
	}
}

// handleTyping 是純廣播的 fire-and-forget 事件，不重查參與者資格
//（加入房間時已經驗證過），也不回報任何錯誤
func (d *Dispatcher) handleTyping(client *Client, data json.RawMessage) {
	var payload typingPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}

	room := ConversationRoom(payload.ConversationID)
	if !d.rooms.IsMember(room, client) {
		return
	}

	d.rooms.BroadcastExcept(room, client, OutboundEvent{
		Event: EventUserTyping,
		Data: map[string]interface{}{
			"user_id":   client.Identity.UserID,
			"user_name": client.Identity.Name,
			"is_typing": payload.IsTyping,
		},
	})
}

// handleMarkMessagesRead 將未讀消息標為已讀並廣播受影響的 ID。
// 持久化失敗只記日誌，不向呼叫者發出 error（盡力而為）。
func (d *Dispatcher) handleMarkMessagesRead(client *Client, data json.RawMessage) {
	var payload markMessagesReadPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}

	ids, err := d.chat.MarkMessagesRead(client.Identity.UserID, payload.ConversationID)
	if err != nil {
		log.Printf("mark messages read failed on connection %s: %v", client.ID, err)
		return
	}

	d.BroadcastMessagesRead(payload.ConversationID, client.Identity, ids)
}

// handleUpdateMessage 編輯消息並廣播。消息不存在、非發送者本人
// 或消息已刪除時一律回報 error 事件，與其他處理器行為一致。
func (d *Dispatcher) handleUpdateMessage(client *Client, data json.RawMessage) {
	var payload updateMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		d.emitError(client, "無法解析事件")
		return
	}

	message, err := d.chat.UpdateMessage(
		client.Identity.UserID, payload.ConversationID, payload.MessageID, payload.Content)
	if err != nil {
		d.emitError(client, err.Error())
		return
	}

	d.rooms.Broadcast(ConversationRoom(payload.ConversationID), OutboundEvent{
		Event: EventMessageUpdated,
		Data: map[string]interface{}{
			"message_id": message.ID,
			"content":    message.Content,
			"is_edited":  message.IsEdited,
		},
	})
}

// handleDeleteMessage 軟刪除消息並廣播
func (d *Dispatcher) handleDeleteMessage(client *Client, data json.RawMessage) {
	var payload deleteMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		d.emitError(client, "無法解析事件")
		return
	}

	if err := d.chat.DeleteMessage(
		client.Identity.UserID, payload.ConversationID, payload.MessageID); err != nil {
		d.emitError(client, err.Error())
		return
	}

	d.rooms.Broadcast(ConversationRoom(payload.ConversationID), OutboundEvent{
		Event: EventMessageDeleted,
		Data: map[string]interface{}{
			"message_id": payload.MessageID,
		},
	})
}

// BroadcastMessagesRead 向對話房間廣播已讀回執；受影響集合為空時
// 不發出任何事件。HTTP 歷史端點標記已讀後也走這裡。
func (d *Dispatcher) BroadcastMessagesRead(conversationID uint, reader *Identity, messageIDs []uint) {
	if len(messageIDs) == 0 {
		return
	}
	d.rooms.Broadcast(ConversationRoom(conversationID), OutboundEvent{
		Event: EventMessagesRead,
		Data: map[string]interface{}{
			"user_id":     reader.UserID,
			"user_name":   reader.Name,
			"message_ids": messageIDs,
		},
	})
}

// BroadcastParticipantAdded 通知房間有新參與者加入，
// 由 REST 的新增參與者端點觸發
func (d *Dispatcher) BroadcastParticipantAdded(conversationID, userID uint) {
	d.rooms.Broadcast(ConversationRoom(conversationID), OutboundEvent{
		Event: EventParticipantAdded,
		Data: map[string]interface{}{
			"user_id": userID,
		},
	})
}

// emitError 只對呼叫者本人發出 error 事件
func (d *Dispatcher) emitError(client *Client, message string) {
	client.trySend(OutboundEvent{Event: EventError, Data: errorPayload{Message: message}})
}
