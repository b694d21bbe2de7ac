package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"backoffice_web/internal/models"
	"backoffice_web/internal/service"
)

// ConversationHandler 處理與對話相關的 REST 請求
type ConversationHandler struct {
	chatService *service.ChatService
	userService *service.UserService
	dispatcher  *service.Dispatcher
}

// NewConversationHandler 創建一個新的 ConversationHandler 實例
func NewConversationHandler(
	chatService *service.ChatService,
	userService *service.UserService,
	dispatcher *service.Dispatcher,
) *ConversationHandler {
	return &ConversationHandler{
		chatService: chatService,
		userService: userService,
		dispatcher:  dispatcher,
	}
}

// CreateConversation 處理建立對話的請求
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	var input struct {
		Type           models.ConversationType `json:"type" binding:"required"`
		Name           string                  `json:"name"`
		ParticipantIDs []uint                  `json:"participant_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, _ := c.Get("userID")

	conversation, err := h.chatService.CreateConversation(
		userID.(uint), input.Type, input.Name, input.ParticipantIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, conversation)
}

// ListConversations 回傳呼叫者參與的所有對話
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID, _ := c.Get("userID")

	conversations, err := h.chatService.ListConversations(userID.(uint))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查詢對話失敗"})
		return
	}

	c.JSON(http.StatusOK, conversations)
}

// History 回傳對話的消息歷史（按建立時間由舊到新），並將寄給
// 呼叫者的未讀消息標記為已讀。標記語義與 WebSocket 的
// markMessagesRead 事件共用同一套實作，也會廣播已讀回執。
func (h *ConversationHandler) History(c *gin.Context) {
	conversationID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "不存在的對話ID"})
		return
	}

	userID, _ := c.Get("userID")

	messages, readIDs, err := h.chatService.History(userID.(uint), uint(conversationID))
	if err != nil {
		if errors.Is(err, service.ErrNotParticipant) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查詢消息歷史失敗"})
		return
	}

	if len(readIDs) > 0 {
		identity, err := h.userService.LoadIdentity(c.Request.Context(), userID.(uint))
		if err == nil {
			h.dispatcher.BroadcastMessagesRead(uint(conversationID), identity, readIDs)
		}
	}

	c.JSON(http.StatusOK, messages)
}

// AddParticipant 將用戶加入群組對話，並向房間廣播 participantAdded
func (h *ConversationHandler) AddParticipant(c *gin.Context) {
	conversationID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "不存在的對話ID"})
		return
	}

	var input struct {
		UserID uint `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	callerID, _ := c.Get("userID")

	if err := h.chatService.AddParticipant(callerID.(uint), uint(conversationID), input.UserID); err != nil {
		switch {
		case errors.Is(err, service.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	h.dispatcher.BroadcastParticipantAdded(uint(conversationID), input.UserID)

	c.JSON(http.StatusOK, gin.H{"message": "成功加入參與者"})
}
