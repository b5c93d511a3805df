package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"inbox/backend/internal/domain"
	"inbox/backend/internal/monitoring"
	"inbox/backend/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

// SessionResolver 将访问令牌解析为会话
type SessionResolver interface {
	Resolve(token string) (*session.Session, error)
}

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				// 非浏览器客户端
				return true
			}

			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}
			return false
		},
	}
}

// MessageType 定义WebSocket消息类型
type MessageType string

const (
	MessageTypeSnapshot      MessageType = "snapshot"
	MessageTypeChanged       MessageType = "messages_changed"
	MessageTypeSessionClosed MessageType = "session_closed"
	MessageTypePing          MessageType = "ping"
	MessageTypePong          MessageType = "pong"
	MessageTypeError         MessageType = "error"
)

// Message 定义WebSocket消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client 代表一个WebSocket客户端连接
type Client struct {
	ID      string
	Session *session.Session

	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	log  *zap.Logger
}

// BroadcastMessage 广播消息
type BroadcastMessage struct {
	SessionID string
	Message   *Message
	Close     bool // 发送后断开该会话的所有连接
}

// Hub 管理所有WebSocket连接，按会话分组推送邮件变更
type Hub struct {
	clients    map[string]*Client            // clientID -> Client
	sessions   map[string]map[string]*Client // sessionID -> clientID -> Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	done       chan struct{}
	mu         sync.RWMutex

	allowedOrigins []string
	resolver       SessionResolver
	metrics        *monitoring.Metrics
	log            *zap.Logger
}

// NewHub 创建WebSocket Hub
//
// 参数:
//   - allowedOrigins: 允许的 Origin 列表，为空时允许所有
//   - resolver: 令牌解析，用于连接认证
//   - metrics: 监控指标，可为 nil
//   - log: 日志记录器
func NewHub(allowedOrigins []string, resolver SessionResolver, metrics *monitoring.Metrics, log *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Hub{
		clients:        make(map[string]*Client),
		sessions:       make(map[string]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *BroadcastMessage, sendBufferSize),
		done:           make(chan struct{}),
		allowedOrigins: allowedOrigins,
		resolver:       resolver,
		metrics:        metrics,
		log:            log,
	}
}

// Run 启动Hub，ctx 结束时关闭所有连接
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.log.Info("websocket hub stopped")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.addClient(client)
			client.sendSnapshot()

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.broadcast:
			h.broadcastToSession(msg)
		}
	}
}

// NotifyMessagesChanged 推送邮件集合变更
func (h *Hub) NotifyMessagesChanged(change domain.MessageChange) {
	data, err := json.Marshal(change)
	if err != nil {
		h.log.Error("failed to marshal message change", zap.Error(err))
		return
	}

	h.enqueue(&BroadcastMessage{
		SessionID: change.SessionID,
		Message: &Message{
			Type:      MessageTypeChanged,
			SessionID: change.SessionID,
			Data:      data,
			Timestamp: change.At,
		},
	})
}

// SessionClosed 通知并断开会话的所有连接
func (h *Hub) SessionClosed(sessionID string) {
	h.enqueue(&BroadcastMessage{
		SessionID: sessionID,
		Message: &Message{
			Type:      MessageTypeSessionClosed,
			SessionID: sessionID,
			Timestamp: time.Now(),
		},
		Close: true,
	})
}

// ClientCount 当前连接数
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) enqueue(msg *BroadcastMessage) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	default:
		h.log.Warn("broadcast queue full, dropping change", zap.String("session_id", msg.SessionID))
		if h.metrics != nil {
			h.metrics.RecordFeedDropped()
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	if h.sessions[client.Session.ID] == nil {
		h.sessions[client.Session.ID] = make(map[string]*Client)
	}
	h.sessions[client.Session.ID][client.ID] = client
	count := len(h.clients)
	h.mu.Unlock()

	h.updateClientGauge(count)
	h.log.Info("client registered",
		zap.String("id", client.ID),
		zap.String("session_id", client.Session.ID))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; !ok {
		h.mu.Unlock()
		return
	}
	h.detachLocked(client)
	count := len(h.clients)
	h.mu.Unlock()

	h.updateClientGauge(count)
	h.log.Info("client unregistered", zap.String("id", client.ID))
}

// detachLocked 从索引中移除客户端并关闭其发送通道，调用方持有写锁
func (h *Hub) detachLocked(client *Client) {
	if clients, ok := h.sessions[client.Session.ID]; ok {
		delete(clients, client.ID)
		if len(clients) == 0 {
			delete(h.sessions, client.Session.ID)
		}
	}
	delete(h.clients, client.ID)
	close(client.send)
}

// broadcastToSession 向会话的所有客户端广播消息
func (h *Hub) broadcastToSession(msg *BroadcastMessage) {
	data, err := json.Marshal(msg.Message)
	if err != nil {
		h.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sessions[msg.SessionID] {
		select {
		case client.send <- data:
		default:
			h.log.Warn("client channel blocked, skipping", zap.String("clientID", client.ID))
			if h.metrics != nil {
				h.metrics.RecordFeedDropped()
			}
		}
		if msg.Close {
			h.detachLocked(client)
		}
	}
	if msg.Close {
		h.updateClientGauge(len(h.clients))
	}
}

// closeAllClients 关闭所有客户端连接
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.sessions = make(map[string]map[string]*Client)
	h.updateClientGauge(0)
}

func (h *Hub) updateClientGauge(count int) {
	if h.metrics != nil {
		h.metrics.UpdateFeedClients(count)
	}
}

// extractToken 从 URL 参数或 Authorization 头获取令牌
func extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

// authenticateClient 认证客户端
func (h *Hub) authenticateClient(c *gin.Context) (*Client, error) {
	token := extractToken(c)
	if token == "" {
		return nil, errors.New("missing authentication token")
	}

	sess, err := h.resolver.Resolve(token)
	if err != nil {
		return nil, err
	}

	return &Client{
		ID:      uuid.NewString(),
		Session: sess,
		hub:     h,
		log:     h.log,
	}, nil
}

// HandleWebSocket 处理WebSocket连接
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		client, err := hub.authenticateClient(c)
		if err != nil {
			hub.log.Warn("websocket authentication failed",
				zap.Error(err),
				zap.String("remote_addr", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "msg": "会话无效或已过期"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Error("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client.conn = conn
		client.send = make(chan []byte, sendBufferSize)

		select {
		case hub.register <- client:
		case <-hub.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// readPump 处理客户端消息
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error("websocket error", zap.Error(err))
			}
			return
		}
		c.handleMessage(&msg)
	}
}

// writePump 发送消息给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理接收到的消息
func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypePing:
		c.sendMessage(&Message{Type: MessageTypePong, Timestamp: time.Now()})
	case MessageTypePong:
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
	default:
		c.log.Warn("unknown message type", zap.String("type", string(msg.Type)))
		c.sendMessage(&Message{Type: MessageTypeError, Error: "unknown message type", Timestamp: time.Now()})
	}
}

// sendSnapshot 发送当前邮件快照，供视图初次渲染
func (c *Client) sendSnapshot() {
	data, err := json.Marshal(c.Session.Store.Snapshot())
	if err != nil {
		c.log.Error("failed to marshal snapshot", zap.Error(err))
		return
	}
	c.sendMessage(&Message{
		Type:      MessageTypeSnapshot,
		SessionID: c.Session.ID,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// sendMessage 发送消息给客户端，客户端已注销时丢弃
func (c *Client) sendMessage(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.ID]; !ok {
		return
	}

	select {
	case c.send <- data:
	default:
		c.log.Warn("client channel blocked", zap.String("clientID", c.ID))
	}
}
