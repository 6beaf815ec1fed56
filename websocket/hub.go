package websocket

import (
	"context"
	"safegate/models"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Hub tracks connected devices per user. A user may have several devices
// connected; user addressed messages go to all of them.
type Hub struct {
	clients     map[*Client]bool
	userClients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	router *MessageRouter

	// Called when the last device of a user disconnects.
	onUserOffline func(userID string)

	stats            HubStats
	messagesSent     atomic.Int64
	messagesDropped  atomic.Int64
	messagesReceived atomic.Int64
	mutex            sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc

	metricsTicker *time.Ticker
}

type HubStats struct {
	TotalConnections  int64     `json:"totalConnections"`
	ActiveConnections int       `json:"activeConnections"`
	OnlineUsers       int       `json:"onlineUsers"`
	MessagesSent      int64     `json:"messagesSent"`
	MessagesDropped   int64     `json:"messagesDropped"`
	MessagesReceived  int64     `json:"messagesReceived"`
	StartTime         time.Time `json:"startTime"`
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	hub := &Hub{
		clients:     make(map[*Client]bool),
		userClients: make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		stats: HubStats{
			StartTime: time.Now(),
		},
		ctx:    ctx,
		cancel: cancel,
	}
	hub.metricsTicker = time.NewTicker(1 * time.Minute)
	return hub
}

// SetRouter installs the handler for inbound device messages.
func (h *Hub) SetRouter(router *MessageRouter) {
	h.router = router
}

func (h *Hub) OnUserOffline(fn func(userID string)) {
	h.onUserOffline = fn
}

func (h *Hub) Run() {
	logrus.Info("WebSocket Hub starting...")

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-h.metricsTicker.C:
			stats := h.GetStats()
			logrus.WithFields(logrus.Fields{
				"connections": stats.ActiveConnections,
				"users":       stats.OnlineUsers,
				"sent":        stats.MessagesSent,
				"dropped":     stats.MessagesDropped,
			}).Debug("WebSocket hub metrics")

		case <-h.ctx.Done():
			logrus.Info("WebSocket Hub shutting down...")
			return
		}
	}
}

func (h *Hub) Stop() {
	h.metricsTicker.Stop()
	h.cancel()

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		client.cancel()
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true
	if h.userClients[client.userID] == nil {
		h.userClients[client.userID] = make(map[*Client]bool)
	}
	h.userClients[client.userID][client] = true
	h.stats.ActiveConnections++
	h.stats.TotalConnections++

	logrus.Infof("Client registered: %s (Total: %d)", client.userID, h.stats.ActiveConnections)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}

	delete(h.clients, client)
	lastDevice := false
	if devices, ok := h.userClients[client.userID]; ok {
		delete(devices, client)
		if len(devices) == 0 {
			delete(h.userClients, client.userID)
			lastDevice = true
		}
	}
	h.stats.ActiveConnections--
	close(client.send)
	h.mutex.Unlock()

	logrus.Infof("Client unregistered: %s (Total: %d)", client.userID, h.stats.ActiveConnections)

	if lastDevice && h.onUserOffline != nil {
		go h.onUserOffline(client.userID)
	}
}

// SendToUser queues message for every device of userID. It reports
// whether at least one device accepted it.
func (h *Hub) SendToUser(userID string, message models.WSMessage) bool {
	message.UserID = userID

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	delivered := false
	for client := range h.userClients[userID] {
		if h.enqueue(client, message) {
			delivered = true
		}
	}
	return delivered
}

func (h *Hub) sendToClient(client *Client, message models.WSMessage) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if !h.clients[client] {
		return false
	}
	message.UserID = client.userID
	return h.enqueue(client, message)
}

func (h *Hub) Broadcast(message models.WSMessage) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.clients {
		h.enqueue(client, message)
	}
}

// enqueue never blocks; a full buffer drops the message. Callers hold the
// read lock so the send channel cannot be closed underneath.
func (h *Hub) enqueue(client *Client, message models.WSMessage) bool {
	select {
	case client.send <- message:
		h.messagesSent.Add(1)
		return true
	default:
		h.messagesDropped.Add(1)
		logrus.Warnf("Send buffer full for user %s, dropping %s", client.userID, message.Type)
		return false
	}
}

func (h *Hub) IsUserOnline(userID string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.userClients[userID]) > 0
}

func (h *Hub) GetConnectedUsers() []string {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	users := make([]string, 0, len(h.userClients))
	for userID := range h.userClients {
		users = append(users, userID)
	}
	return users
}

func (h *Hub) GetStats() HubStats {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	stats := h.stats
	stats.OnlineUsers = len(h.userClients)
	stats.MessagesSent = h.messagesSent.Load()
	stats.MessagesDropped = h.messagesDropped.Load()
	stats.MessagesReceived = h.messagesReceived.Load()
	return stats
}
