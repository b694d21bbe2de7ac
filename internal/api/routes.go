package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"backoffice_web/internal/api/handlers"
	"backoffice_web/internal/middleware"
	"backoffice_web/internal/service"
)

func SetupRoutes(r *gin.Engine, services *service.Services) {
	// 初始化 handlers
	authHandler := handlers.NewAuthHandler(services.User)
	conversationHandler := handlers.NewConversationHandler(services.Chat, services.User, services.Dispatcher)
	wsHandler := handlers.NewWebSocketHandler(services.User, services.Dispatcher)

	// API 路由群組
	api := r.Group("/api")

	// 處理 404 錯誤
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "找不到該路徑",
		})
	})

	// 公開路由
	{
		// 用戶認證相關
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)

		// 基本的健康檢查
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})

		// WebSocket 連接點。憑證在握手的 query string 驗證,
		// 不走 Authorization 標頭的中間件
		api.GET("/ws", wsHandler.HandleWebSocket)
	}

	// 需要驗證的路由
	authorized := api.Group("/")
	authorized.Use(middleware.AuthMiddleware())
	{
		// 對話相關
		conversations := authorized.Group("/conversations")
		{
			conversations.GET("", conversationHandler.ListConversations)   // 獲取對話列表
			conversations.POST("", conversationHandler.CreateConversation) // 建立對話

			// 消息歷史（同時標記已讀）
			conversations.GET("/:id/messages", conversationHandler.History)

			// 新增參與者
			conversations.POST("/:id/participants", conversationHandler.AddParticipant)
		}
	}
}
