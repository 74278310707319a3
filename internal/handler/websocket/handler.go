package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Yashhh999/hackaboard/internal/hub"
)

// WebSocketHandler 负责把 HTTP 连接升级为 WebSocket 并交给 Hub。
// 升级时不做任何房间校验：加入哪个房间、凭什么加入，
// 全部通过连接建立后的 join-room 事件完成。
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
}

// NewWebSocketHandler 创建 WebSocketHandler 实例
func NewWebSocketHandler(h *hub.Hub) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// TODO: 生产环境应校验 Origin 白名单
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		hub: h,
	}
}

// HandleConnection 处理 GET /ws 的升级请求
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 失败时已经写了 HTTP 错误响应，这里只记日志
		logrus.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}

	client := hub.NewClient(h.hub, conn, c.ClientIP())
	registerMsg := hub.HubMessage{Type: "register", Client: client}
	if !h.hub.QueueMessage(registerMsg) {
		logrus.Error("WS Handler: Hub message channel full, failed to register client")
		client.CloseConn()
		return
	}

	client.Run()
	logrus.WithField("remote_addr", c.ClientIP()).Info("WS Handler: Connection upgraded")
}
