// Package middleware 提供了 HTTP 請求處理的中間件。
//
// 這個包目前只有 JWT 驗證中間件，用於保護 REST 路由。
// WebSocket 握手的憑證驗證不走這裡，見 handlers.WebSocketHandler。
package middleware
