package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Yashhh999/hackaboard/internal/dto"
)

// Client 代表一个连接到 Hub 的 WebSocket 连接及其会话状态。
// 会话只存在于内存中：连接断开即销毁，重连后必须重新完成 Join。
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	remoteAddr string
	send       chan []byte // 向此连接发送消息的缓冲通道

	mu     sync.Mutex
	joined map[string]bool // 已完成 Join 协议的房间名集合
	closed bool            // send 通道已关闭，不允许再发送
}

// NewClient 创建一个新的 Client 实例
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		remoteAddr: remoteAddr,
		send:       make(chan []byte, 256),
		joined:     make(map[string]bool),
	}
}

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// Authorize 将房间标记为已通过 Join 协议。
// Join 在 Hub 主循环之外的 goroutine 上完成，因此需要加锁。
func (c *Client) Authorize(roomName string) {
	c.mu.Lock()
	c.joined[roomName] = true
	c.mu.Unlock()
}

// IsAuthorized 判断连接是否已完成指定房间的 Join 协议
func (c *Client) IsAuthorized(roomName string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined[roomName]
}

// JoinedRooms 返回已加入房间名的快照，供注销时清理扇出表
func (c *Client) JoinedRooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	rooms := make([]string, 0, len(c.joined))
	for room := range c.joined {
		rooms = append(rooms, room)
	}
	return rooms
}

// trySend 向连接非阻塞发送一条消息。返回 false 表示消息被丢弃：
// 要么连接已注销（send 已关闭），要么缓冲已满。
// Join 和 Reset 在 Hub 主循环之外的 goroutine 上发送，注销可能
// 与它们并发，因此 closed 标记和发送必须在同一把锁下完成，
// 避免向已关闭的通道发送。
func (c *Client) trySend(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// closeSend 关闭 send 通道使 WritePump 退出。幂等。
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// RemoteAddr 返回连接的远端地址，仅用于日志
func (c *Client) RemoteAddr() string { return c.remoteAddr }

// CloseConn 关闭底层 WebSocket 连接
func (c *Client) CloseConn() { c.conn.Close() }

// ReadPump 将消息从 WebSocket 连接泵送到 Hub 的处理通道。
// 在自己的 goroutine 中运行。
func (c *Client) ReadPump() {
	defer func() {
		// 清理操作：请求 Hub 注销此客户端
		unregisterMsg := HubMessage{Type: msgUnregister, Client: c}
		select {
		case c.hub.messageChan <- unregisterMsg:
		case <-time.After(1 * time.Second):
			logrus.WithField("remote_addr", c.remoteAddr).
				Warn("Timeout sending unregister message to Hub channel")
		}
		c.conn.Close()
		logrus.WithField("remote_addr", c.remoteAddr).Info("readPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			logCtx := logrus.WithField("remote_addr", c.remoteAddr)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed normally or read error")
			}
			break // 退出循环，触发 defer 中的注销
		}

		if messageType != websocket.TextMessage {
			logrus.WithField("remote_addr", c.remoteAddr).
				Debugf("Received non-text message type: %d", messageType)
			continue
		}

		var envelope dto.Envelope
		if err := json.Unmarshal(message, &envelope); err != nil || envelope.Event == "" {
			c.hub.sendError(c, "malformed message")
			continue
		}

		eventMsg := HubMessage{
			Type:   msgEvent,
			Client: c,
			Event:  envelope.Event,
			Data:   envelope.Data,
		}
		// 非阻塞发送到 Hub，如果 Hub 处理不过来则丢弃
		select {
		case c.hub.messageChan <- eventMsg:
		default:
			logrus.WithFields(logrus.Fields{
				"remote_addr": c.remoteAddr,
				"event":       envelope.Event,
			}).Warn("Hub message channel full, dropping client message")
		}
	}
}

// WritePump 将消息从 send 通道泵送到 WebSocket 连接。
// 在自己的 goroutine 中运行。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		logrus.WithField("remote_addr", c.remoteAddr).Info("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// send 通道已被 Hub 关闭（注销时）
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithField("remote_addr", c.remoteAddr).WithError(err).
					Warn("Failed to write message to websocket")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logrus.WithField("remote_addr", c.remoteAddr).WithError(err).
					Warn("Failed to send ping message")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})
		}
	}
}
