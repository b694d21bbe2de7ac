package models

import (
	"gorm.io/gorm"
)

// Conversation 表示一個對話串，分為一對一（direct）與群組（group）兩種
type Conversation struct {
	gorm.Model
	Type         ConversationType `gorm:"type:varchar(20);not null" json:"type"`
	Name         string           `gorm:"type:varchar(100)" json:"name"` // 群組對話的名稱，direct 對話留空
	Participants []Participant    `gorm:"foreignKey:ConversationID" json:"participants"`
	Messages     []Message        `gorm:"foreignKey:ConversationID" json:"-"`
}

// ConversationType 定義對話類型
type ConversationType string

const (
	ConversationDirect ConversationType = "direct" // 恰好兩位參與者
	ConversationGroup  ConversationType = "group"
)

// Participant 是用戶與對話之間的連結，這筆資料的存在
// 即是加入房間與發送消息的唯一授權依據
type Participant struct {
	gorm.Model
	ConversationID uint `gorm:"uniqueIndex:idx_conversation_user;not null" json:"conversation_id"`
	UserID         uint `gorm:"uniqueIndex:idx_conversation_user;not null" json:"user_id"`
	User           User `gorm:"foreignKey:UserID" json:"user"`
}

// OtherParticipant 回傳 direct 對話中另一位參與者的用戶 ID；
// 找不到時回傳 0
func (c *Conversation) OtherParticipant(userID uint) uint {
	if c.Type != ConversationDirect {
		return 0
	}
	for _, p := range c.Participants {
		if p.UserID != userID {
			return p.UserID
		}
	}
	return 0
}

// HasParticipant 檢查用戶是否為此對話的參與者
func (c *Conversation) HasParticipant(userID uint) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
