package service

import (
	"errors"

	"gorm.io/gorm"

	"backoffice_web/internal/models"
	"backoffice_web/internal/repository"
)

// ChatService 承載對話與消息的全部交易語義，
// WebSocket 事件處理器與 HTTP 歷史端點共用同一套實作
type ChatService struct {
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
	userRepo         repository.UserRepository
}

func NewChatService(
	conversationRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
) *ChatService {
	return &ChatService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		userRepo:         userRepo,
	}
}

// Conversation 載入對話及其參與者
func (s *ChatService) Conversation(conversationID uint) (*models.Conversation, error) {
	conversation, err := s.conversationRepo.FindByID(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return conversation, nil
}

// CreateConversation 建立對話並一次寫入全部參與者連結。
// creator 一定會被納入參與者；direct 對話必須恰好兩位參與者。
func (s *ChatService) CreateConversation(
	creatorID uint,
	conversationType models.ConversationType,
	name string,
	participantIDs []uint,
) (*models.Conversation, error) {
	ids := dedupWithCreator(creatorID, participantIDs)

	switch conversationType {
	case models.ConversationDirect:
		if len(ids) != 2 {
			return nil, ErrInvalidParticipants
		}
	case models.ConversationGroup:
		if len(ids) < 2 {
			return nil, ErrInvalidParticipants
		}
	default:
		return nil, ErrInvalidParticipants
	}

	// 確認所有參與者都存在
	for _, id := range ids {
		if _, err := s.userRepo.FindByID(id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, err
		}
	}

	conversation := &models.Conversation{
		Type: conversationType,
		Name: name,
	}
	for _, id := range ids {
		conversation.Participants = append(conversation.Participants, models.Participant{UserID: id})
	}

	if err := s.conversationRepo.Create(conversation); err != nil {
		return nil, err
	}
	return s.Conversation(conversation.ID)
}

// ListConversations 查詢用戶參與的所有對話
func (s *ChatService) ListConversations(userID uint) ([]models.Conversation, error) {
	return s.conversationRepo.FindByUser(userID)
}

// AddParticipant 將用戶加入群組對話，呼叫者必須已是參與者
func (s *ChatService) AddParticipant(callerID, conversationID, userID uint) error {
	conversation, err := s.Conversation(conversationID)
	if err != nil {
		return err
	}
	if conversation.Type != models.ConversationGroup {
		return ErrNotGroupConversation
	}
	if !conversation.HasParticipant(callerID) {
		return ErrNotParticipant
	}
	if conversation.HasParticipant(userID) {
		return ErrAlreadyParticipant
	}
	if _, err := s.userRepo.FindByID(userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return s.conversationRepo.AddParticipant(conversationID, userID)
}

// IsParticipant 檢查用戶是否為對話參與者，這是加入房間的唯一授權依據
func (s *ChatService) IsParticipant(conversationID, userID uint) (bool, error) {
	return s.conversationRepo.IsParticipant(conversationID, userID)
}

// SendMessage 驗證參與者資格後在交易中寫入消息。
// direct 對話的接收者固定是另一位參與者；群組對話不填接收者。
// 回傳載滿發送者與接收者的消息以及所屬對話，供廣播使用。
func (s *ChatService) SendMessage(
	senderID, conversationID uint,
	content string,
	messageType models.MessageType,
) (*models.Message, *models.Conversation, error) {
	if messageType == "" {
		messageType = models.MessageText
	}
	if !models.ValidMessageType(messageType) {
		return nil, nil, ErrInvalidMessageType
	}

	conversation, err := s.Conversation(conversationID)
	if err != nil {
		return nil, nil, err
	}
	if !conversation.HasParticipant(senderID) {
		return nil, nil, ErrNotParticipant
	}

	message := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        &content,
		Type:           messageType,
	}
	if conversation.Type == models.ConversationDirect {
		receiverID := conversation.OtherParticipant(senderID)
		message.ReceiverID = &receiverID
	}

	if err := s.messageRepo.Create(message); err != nil {
		return nil, nil, err
	}

	full, err := s.messageRepo.FindByIDFull(message.ID)
	if err != nil {
		return nil, nil, err
	}
	return full, conversation, nil
}

// MarkMessagesRead 將對話內寄給 reader 的未讀消息全部標為已讀，
// 回傳受影響的消息 ID；重複呼叫回傳空列表（冪等）
func (s *ChatService) MarkMessagesRead(readerID, conversationID uint) ([]uint, error) {
	return s.messageRepo.MarkConversationRead(conversationID, readerID)
}

// UpdateMessage 編輯消息內容。只有發送者本人可以編輯，
// 已刪除的消息拒絕編輯（內容保持 NULL）。
func (s *ChatService) UpdateMessage(callerID, conversationID, messageID uint, content string) (*models.Message, error) {
	message, err := s.findConversationMessage(conversationID, messageID)
	if err != nil {
		return nil, err
	}
	if message.SenderID != callerID {
		return nil, ErrNotMessageOwner
	}
	if message.IsDeleted {
		return nil, ErrMessageDeleted
	}

	if err := s.messageRepo.UpdateContent(messageID, content); err != nil {
		// 條件寫入沒有命中：消息在檢查與更新之間被刪除了
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageDeleted
		}
		return nil, err
	}
	return s.messageRepo.FindByIDFull(messageID)
}

// DeleteMessage 軟刪除消息：清空內容並標記 IsDeleted，資料列保留
func (s *ChatService) DeleteMessage(callerID, conversationID, messageID uint) error {
	message, err := s.findConversationMessage(conversationID, messageID)
	if err != nil {
		return err
	}
	if message.SenderID != callerID {
		return ErrNotMessageOwner
	}
	if message.IsDeleted {
		return ErrMessageDeleted
	}

	if err := s.messageRepo.SoftDelete(messageID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMessageDeleted
		}
		return err
	}
	return nil
}

// History 回傳對話的消息歷史（由舊到新），同時將寄給 reader 的
// 未讀消息標為已讀，與 WebSocket 的 markMessagesRead 共用同一套語義
func (s *ChatService) History(readerID, conversationID uint) ([]models.Message, []uint, error) {
	isParticipant, err := s.IsParticipant(conversationID, readerID)
	if err != nil {
		return nil, nil, err
	}
	if !isParticipant {
		return nil, nil, ErrNotParticipant
	}

	readIDs, err := s.MarkMessagesRead(readerID, conversationID)
	if err != nil {
		return nil, nil, err
	}

	messages, err := s.messageRepo.FindByConversation(conversationID)
	if err != nil {
		return nil, nil, err
	}
	return messages, readIDs, nil
}

func (s *ChatService) findConversationMessage(conversationID, messageID uint) (*models.Message, error) {
	message, err := s.messageRepo.FindByID(messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if message.ConversationID != conversationID {
		return nil, ErrMessageNotFound
	}
	return message, nil
}

// dedupWithCreator 去除重複的參與者 ID 並確保 creator 在列表中
func dedupWithCreator(creatorID uint, participantIDs []uint) []uint {
	seen := map[uint]bool{creatorID: true}
	ids := []uint{creatorID}
	for _, id := range participantIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}
