package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Yashhh999/hackaboard/internal/dto"
	"github.com/Yashhh999/hackaboard/internal/service"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 2048
)

// HubMessage 内部通道消息类型
const (
	msgRegister   = "register"
	msgUnregister = "unregister"
	msgEvent      = "event"
)

// HubMessage 定义了在 Hub 内部通道传递的消息
type HubMessage struct {
	Type   string // "register", "unregister", "event"
	Client *Client
	Event  string          // 仅用于 event：入站事件名
	Data   json.RawMessage // 仅用于 event：原始载荷
}

// Hub 维护房间名到连接集合的扇出表，并路由所有入站事件。
// 扇出表只通过 Hub 自己的方法修改；它仅用于广播寻址，
// 授权状态由各连接的会话（Client.joined）单独记录。
type Hub struct {
	messageChan chan HubMessage

	// map[roomName]map[*Client]bool
	rooms   map[string]map[*Client]bool
	roomsMu sync.RWMutex

	sync *service.SyncService
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub(syncService *service.SyncService) *Hub {
	if syncService == nil {
		panic("SyncService cannot be nil for Hub")
	}
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		rooms:       make(map[string]map[*Client]bool),
		sync:        syncService,
	}
}

// Run 启动 Hub 的主事件处理循环。应该在单独的 goroutine 中运行。
//
// 注册、注销和 draw 的广播都在循环内同步完成，因此同一连接的
// 笔画按其发出顺序广播；不同连接之间没有全局顺序保证。
// 需要等待存储 I/O 的路径（join 回放、reset、笔画落盘）各自
// 在独立的 goroutine 上执行，不会阻塞其他连接的事件。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for msg := range h.messageChan {
		switch msg.Type {
		case msgRegister:
			h.registerClient(msg.Client)
		case msgUnregister:
			h.unregisterClient(msg.Client)
		case msgEvent:
			h.routeEvent(msg)
		default:
			log.Warnf("Received unknown message type: %s", msg.Type)
		}
	}
	log.Info("Hub is shutting down...")
}

// QueueMessage 将消息放入 Hub 的处理队列（非阻塞）。
// 返回 false 表示队列已满，消息被丢弃。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"message_type": msg.Type,
			"event":        msg.Event,
		}).Warn("Hub message channel full, dropping message")
		return false
	}
}

// Close 关闭 Hub 的处理通道，使 Run 退出
func (h *Hub) Close() {
	close(h.messageChan)
}

// registerClient 处理连接注册
func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	logrus.WithField("remote_addr", client.RemoteAddr()).Info("Client connected")
}

// unregisterClient 把连接从所有房间的扇出集合中移除并丢弃其会话。
// 不做任何补偿动作：已落盘的笔画保持原样。
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	logCtx := logrus.WithField("remote_addr", client.RemoteAddr())

	h.roomsMu.Lock()
	for _, roomName := range client.JoinedRooms() {
		if roomClients, ok := h.rooms[roomName]; ok {
			delete(roomClients, client)
			// 房间变空则从扇出表中移除
			if len(roomClients) == 0 {
				delete(h.rooms, roomName)
			}
		}
	}
	h.roomsMu.Unlock()

	// 无条件关闭 send 通道使 WritePump 退出；closeSend 幂等，
	// 并挡住 join/reset goroutine 上仍在进行的并发发送
	client.closeSend()

	logCtx.Info("Client disconnected")
}

// routeEvent 将入站事件分发给对应的处理器
func (h *Hub) routeEvent(msg HubMessage) {
	switch msg.Event {
	case dto.EventJoinRoom:
		var data dto.JoinRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			h.sendError(msg.Client, service.ErrAuthRequired.Error())
			return
		}
		// Join 需要读存储，放到独立 goroutine 上执行
		go h.handleJoin(msg.Client, data)

	case dto.EventDraw:
		var data dto.DrawData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.Room == "" {
			h.sendError(msg.Client, "malformed draw payload")
			return
		}
		h.handleDraw(msg.Client, msg.Data, data)

	case dto.EventClearCanvas:
		var data dto.ClearCanvasData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.RoomName == "" {
			h.sendError(msg.Client, "malformed clear-canvas payload")
			return
		}
		if !msg.Client.IsAuthorized(data.RoomName) {
			h.sendError(msg.Client, service.ErrUnauthorized.Error())
			return
		}
		go h.handleReset(msg.Client, data.RoomName)

	default:
		logrus.WithField("event", msg.Event).Warn("Received unknown event")
		h.sendError(msg.Client, "unknown event")
	}
}

// handleJoin 执行 Join 协议：校验凭证、登记扇出、回放历史。
// 登记必须发生在读历史之前：读历史期间广播的笔画由此送达
// 加入者，不会落进快照和实时流之间的缝里。
// 回放快照只发给发起加入的连接，绝不广播。
func (h *Hub) handleJoin(client *Client, data dto.JoinRoomData) {
	logCtx := logrus.WithFields(logrus.Fields{
		"remote_addr": client.RemoteAddr(),
		"room":        data.RoomName,
	})

	if err := h.sync.Authorize(data.RoomName, data.AuthToken); err != nil {
		logCtx.WithError(err).Warn("Join rejected")
		h.sendError(client, err.Error())
		return
	}

	h.addToRoom(data.RoomName, client)
	client.Authorize(data.RoomName)

	strokes := h.sync.Replay(context.Background(), data.RoomName)

	payload, err := dto.NewEnvelope(dto.EventLoadDrawings, strokes)
	if err != nil {
		logCtx.WithError(err).Error("Failed to marshal replay snapshot")
		return
	}
	h.sendToClient(client, payload)
	logCtx.WithField("stroke_count", len(strokes)).Info("Client joined room")
}

// handleDraw 处理一条笔画：先广播（发送者除外），再异步落盘。
// 广播在 Hub 主循环内完成，持久化的成败不影响也不延迟广播。
func (h *Hub) handleDraw(client *Client, raw json.RawMessage, data dto.DrawData) {
	if !client.IsAuthorized(data.Room) {
		h.sendError(client, service.ErrUnauthorized.Error())
		return
	}

	// 载荷原样转发
	payload, err := json.Marshal(dto.Envelope{Event: dto.EventDraw, Data: raw})
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal draw broadcast")
		return
	}
	h.broadcast(data.Room, payload, client)

	// 落盘是尽力而为的后台动作
	go func() {
		if err := h.sync.RecordStroke(context.Background(), data); err != nil {
			logrus.WithError(err).WithField("room", data.Room).
				Error("Failed to record stroke, broadcast unaffected")
		}
	}()
}

// handleReset 清空房间历史并广播 clear-canvas。
// 与 draw 不同，clear-canvas 也发给发起者本人：发起端同样依赖
// 该信号确定性地清空本地画布。批量删除失败时只通知发起者，
// 不广播——避免各端画布与持久化历史分叉。
func (h *Hub) handleReset(client *Client, roomName string) {
	logCtx := logrus.WithFields(logrus.Fields{
		"remote_addr": client.RemoteAddr(),
		"room":        roomName,
	})

	if err := h.sync.Reset(context.Background(), roomName); err != nil {
		logCtx.WithError(err).Error("Reset failed, clear signal not broadcast")
		h.sendError(client, "failed to clear canvas")
		return
	}

	payload, err := dto.NewEnvelope(dto.EventClearCanvas, nil)
	if err != nil {
		logCtx.WithError(err).Error("Failed to marshal clear broadcast")
		return
	}
	h.broadcast(roomName, payload, nil) // nil sender：包含发起者
	logCtx.Info("Canvas cleared and broadcast")
}

// addToRoom 将连接加入房间的扇出集合
func (h *Hub) addToRoom(roomName string, client *Client) {
	h.roomsMu.Lock()
	if _, ok := h.rooms[roomName]; !ok {
		h.rooms[roomName] = make(map[*Client]bool)
	}
	h.rooms[roomName][client] = true
	h.roomsMu.Unlock()
}

// broadcast 将消息发送给指定房间的所有连接；sender 非 nil 时将其排除。
func (h *Hub) broadcast(roomName string, message []byte, sender *Client) {
	h.roomsMu.RLock()
	roomClients, ok := h.rooms[roomName]
	// 复制接收者列表，避免发送期间持有锁
	clientsToSend := make([]*Client, 0, len(roomClients))
	if ok {
		for client := range roomClients {
			if client != sender {
				clientsToSend = append(clientsToSend, client)
			}
		}
	}
	h.roomsMu.RUnlock()

	if len(clientsToSend) == 0 {
		return
	}

	for _, client := range clientsToSend {
		// 非阻塞发送，单个慢客户端或刚断开的连接不能拖住广播
		if !client.trySend(message) {
			logrus.WithFields(logrus.Fields{
				"room":        roomName,
				"remote_addr": client.RemoteAddr(),
			}).Warn("Client unreachable during broadcast, skipping this client")
		}
	}
}

// sendToClient 向单个连接非阻塞发送消息
func (h *Hub) sendToClient(client *Client, message []byte) {
	if !client.trySend(message) {
		logrus.WithField("remote_addr", client.RemoteAddr()).
			Warn("Client unreachable, message dropped")
	}
}

// sendError 向出错的连接发送 error 事件（仅发送者可见）
func (h *Hub) sendError(client *Client, message string) {
	payload, err := dto.NewEnvelope(dto.EventError, message)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal error message")
		return
	}
	h.sendToClient(client, payload)
}
