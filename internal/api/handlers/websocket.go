package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"backoffice_web/internal/service"
)

// 定義 WebSocket 升級器
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 注意：在生產環境中，應該檢查 origin
	},
}

// WebSocketHandler 處理 WebSocket 連接的握手
type WebSocketHandler struct {
	userService *service.UserService
	dispatcher  *service.Dispatcher
}

// NewWebSocketHandler 創建一個新的 WebSocketHandler 實例
func NewWebSocketHandler(userService *service.UserService, dispatcher *service.Dispatcher) *WebSocketHandler {
	return &WebSocketHandler{
		userService: userService,
		dispatcher:  dispatcher,
	}
}

// HandleWebSocket 處理 WebSocket 連接請求。瀏覽器無法在升級請求
// 上設置自訂標頭，憑證改由握手的 query string 帶入（token 參數），
// 驗證只在握手時做一次，失敗就直接拒絕連線、不進入事件處理。
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	identity, err := h.userService.Authenticate(c.Request.Context(), c.Query("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "無效或過期的憑證"})
		return
	}

	// 升級 HTTP 連接為 WebSocket 連接
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "升級WebSocket失敗"})
		return
	}

	// 接管連線直到斷線
	h.dispatcher.HandleConnection(conn, identity)
}
