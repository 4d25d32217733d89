// server/internal/api/handlers/websocket_handler.go
package handlers

import (
	"net/http"

	"ecotrack-api-server/internal/auth"
	"ecotrack-api-server/internal/socket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	Hub    *socket.Hub
	Tokens *auth.TokenManager
}

// ServeWs xử lý các yêu cầu kết nối WebSocket.
func (h *WebSocketHandler) ServeWs(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is required"})
		return
	}

	claims, err := h.Tokens.ParseJWT(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("userID", claims.UserID).Msg("failed to upgrade websocket connection")
		return
	}

	client := socket.NewClient(h.Hub, conn, claims.UserID, claims.Role)
	h.Hub.Register(client)

	go client.WritePump()
	// Khởi chạy Vòng Lặp Đọc (Read Loop) cho tới khi kết nối đóng.
	client.ReadPump()
}
