package repository

import (
	"gorm.io/gorm"

	"backoffice_web/internal/models"
	"backoffice_web/internal/storage"
)

type ConversationRepository interface {
	Create(conversation *models.Conversation) error
	FindByID(id uint) (*models.Conversation, error)
	FindByUser(userID uint) ([]models.Conversation, error)
	AddParticipant(conversationID, userID uint) error
	IsParticipant(conversationID, userID uint) (bool, error)
}

type conversationRepository struct {
	db *storage.PostgresDB
}

func NewConversationRepository(db *storage.PostgresDB) ConversationRepository {
	return &conversationRepository{db: db}
}

// Create 在單一交易中建立對話與其全部參與者連結
func (r *conversationRepository) Create(conversation *models.Conversation) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(conversation).Error
	})
}

// FindByID 載入對話及其參與者（含用戶資料）
func (r *conversationRepository) FindByID(id uint) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.Preload("Participants.User").First(&conversation, id).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// FindByUser 查詢用戶參與的所有對話，按建立時間由新到舊排序
func (r *conversationRepository) FindByUser(userID uint) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.db.
		Joins("JOIN participants ON participants.conversation_id = conversations.id").
		Where("participants.user_id = ? AND participants.deleted_at IS NULL", userID).
		Preload("Participants.User").
		Order("conversations.created_at DESC").
		Find(&conversations).Error
	return conversations, err
}

func (r *conversationRepository) AddParticipant(conversationID, userID uint) error {
	participant := models.Participant{
		ConversationID: conversationID,
		UserID:         userID,
	}
	return r.db.Create(&participant).Error
}

// IsParticipant 檢查授權用的連結資料是否存在
func (r *conversationRepository) IsParticipant(conversationID, userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}
