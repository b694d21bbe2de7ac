package models

import (
	"gorm.io/gorm"
)

// Message 代表一條對話消息，同時滿足 WebSocket 廣播和數據庫存儲需求。
// 消息只做軟刪除：IsDeleted 為 true 後 Content 清為 NULL，且不再允許編輯。
type Message struct {
	gorm.Model
	ConversationID uint        `json:"conversation_id" gorm:"index;not null"`
	SenderID       uint        `json:"sender_id" gorm:"index;not null"`
	Sender         User        `json:"sender" gorm:"foreignKey:SenderID"`
	ReceiverID     *uint       `json:"receiver_id"` // 僅 direct 對話填入，指向另一位參與者
	Receiver       *User       `json:"receiver,omitempty" gorm:"foreignKey:ReceiverID"`
	Content        *string     `json:"content" gorm:"type:text"`
	Type           MessageType `json:"type" gorm:"type:varchar(20);not null;default:text"`
	IsRead         bool        `json:"is_read" gorm:"not null;default:false"`
	IsEdited       bool        `json:"is_edited" gorm:"not null;default:false"`
	IsDeleted      bool        `json:"is_deleted" gorm:"not null;default:false"`
}

// MessageType 定義消息內容的類型
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
)

// ValidMessageType 檢查客戶端送來的消息類型是否合法
func ValidMessageType(t MessageType) bool {
	switch t {
	case MessageText, MessageImage, MessageFile:
		return true
	}
	return false
}
