package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaWS "github.com/gorilla/websocket"
)

// UserResolver 从已认证的请求中取得用户 ID
type UserResolver func(c *gin.Context) (uint, bool)

// newUpgrader 按允许的源创建 Upgrader,包含 "*" 时不检查
func newUpgrader(allowedOrigins []string) *gorillaWS.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	allowAll := false
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = struct{}{}
	}
	return &gorillaWS.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if allowAll || origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// WebSocketHandler WebSocket 处理器
// 认证由前置中间件完成,这里只负责升级连接和注册客户端
func WebSocketHandler(hub *Hub, resolve UserResolver, allowedOrigins []string) gin.HandlerFunc {
	upgrader := newUpgrader(allowedOrigins)

	return func(c *gin.Context) {
		userID, ok := resolve(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		// Upgrade 失败时已经写出了错误响应
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.logger.WithError(err).Warn("failed to upgrade websocket connection")
			return
		}

		client := NewClient(uuid.NewString(), userID, hub, conn)
		select {
		case hub.Register <- client:
		case <-hub.stop:
			conn.Close()
			return
		}

		go client.ReadPump()
		go client.WritePump()
	}
}
