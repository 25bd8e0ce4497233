package websocket

import (
	"encoding/json"
	"sync"

	"github.com/mautops/qms-workflow/internal/workflow"
	"github.com/sirupsen/logrus"
)

// Hub 管理所有 WebSocket 连接,按用户 ID 分组
// 同一用户可以同时打开多个连接
type Hub struct {
	clients map[uint]map[*Client]struct{}

	// 注册新客户端
	Register chan *Client

	// 注销客户端
	Unregister chan *Client

	stop   chan struct{}
	logger logrus.FieldLogger

	mu sync.Mutex
}

// NewHub 创建新的 Hub
func NewHub(logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		clients:    make(map[uint]map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		stop:       make(chan struct{}),
		logger:     logger,
	}
}

// Run 运行 Hub,直到调用 Stop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			set, ok := h.clients[client.UserID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.UserID] = set
			}
			set[client] = struct{}{}
			h.mu.Unlock()

		case client := <-h.Unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case <-h.stop:
			h.mu.Lock()
			for _, set := range h.clients {
				for client := range set {
					h.remove(client)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop 停止 Hub 并关闭所有连接
func (h *Hub) Stop() {
	select {
	case <-h.stop:
	default:
		close(h.stop)
	}
}

// remove 删除客户端并关闭发送通道,调用方持有锁
func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.Send)
	if len(set) == 0 {
		delete(h.clients, client.UserID)
	}
}

// Notify 向用户的所有连接推送事件
// 发送队列已满的连接视为失效并断开
func (h *Hub) Notify(userID uint, event workflow.Event) {
	message, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Error("failed to encode websocket event")
		return
	}
	h.SendToUser(userID, message)
}

// SendToUser 向特定用户发送消息
func (h *Hub) SendToUser(userID uint, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients[userID] {
		select {
		case client.Send <- message:
		default:
			h.logger.WithField("user_id", userID).Warn("websocket send queue full, dropping client")
			h.remove(client)
		}
	}
}

// ClientCount 获取用户的连接数
func (h *Hub) ClientCount(userID uint) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.clients[userID])
}

// TotalClients 获取连接总数
func (h *Hub) TotalClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}
