package repository

import (
	"gorm.io/gorm"

	"backoffice_web/internal/models"
	"backoffice_web/internal/storage"
)

type MessageRepository interface {
	Create(message *models.Message) error
	FindByID(id uint) (*models.Message, error)
	FindByIDFull(id uint) (*models.Message, error)
	FindByConversation(conversationID uint) ([]models.Message, error)
	UpdateContent(id uint, content string) error
	SoftDelete(id uint) error
	MarkConversationRead(conversationID, readerID uint) ([]uint, error)
}

type messageRepository struct {
	db *storage.PostgresDB
}

func NewMessageRepository(db *storage.PostgresDB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(message *models.Message) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(message).Error
	})
}

func (r *messageRepository) FindByID(id uint) (*models.Message, error) {
	var message models.Message
	err := r.db.First(&message, id).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// FindByIDFull 載入消息及發送者與接收者，供廣播使用
func (r *messageRepository) FindByIDFull(id uint) (*models.Message, error) {
	var message models.Message
	err := r.db.Preload("Sender").Preload("Receiver").First(&message, id).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// FindByConversation 查詢對話的消息歷史，按建立時間由舊到新排序
func (r *messageRepository) FindByConversation(conversationID uint) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Preload("Sender").Preload("Receiver").
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

// UpdateContent 更新消息內容並標記為已編輯。條件寫入只對尚未刪除
// 的消息生效，若消息已在併發路徑中被刪除則回報 ErrRecordNotFound，
// 保證已刪除的內容一定保持 NULL。
func (r *messageRepository) UpdateContent(id uint, content string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Message{}).
			Where("id = ? AND is_deleted = ?", id, false).
			Updates(map[string]interface{}{
				"content":   content,
				"is_edited": true,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// SoftDelete 標記消息為已刪除並清空內容；資料列不會被實際移除。
// 已刪除的消息再次刪除回報 ErrRecordNotFound。
func (r *messageRepository) SoftDelete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Message{}).
			Where("id = ? AND is_deleted = ?", id, false).
			Updates(map[string]interface{}{
				"content":    nil,
				"is_deleted": true,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// MarkConversationRead 在單一交易中將對話內所有「寄給 reader 且未讀」
// 的消息標記為已讀，回傳受影響的消息 ID 列表；沒有未讀消息時回傳空列表
func (r *messageRepository) MarkConversationRead(conversationID, readerID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Message{}).
			Where("conversation_id = ? AND receiver_id = ? AND sender_id <> ? AND is_read = ?",
				conversationID, readerID, readerID, false).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&models.Message{}).Where("id IN ?", ids).
			Update("is_read", true).Error
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
