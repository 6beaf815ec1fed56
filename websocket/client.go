package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"safegate/models"
	"safegate/utils"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Buffer size for client send channel
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Client struct {
	conn *websocket.Conn
	hub  *Hub

	userID       string
	connectionID string
	connectedAt  time.Time
	lastActivity time.Time
	ipAddress    string
	userAgent    string

	// Buffered channel of outbound messages
	send chan models.WSMessage

	rateLimiter   *utils.RateLimiter
	pingFailCount int

	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(conn *websocket.Conn, hub *Hub, r *http.Request, userID string) *Client {
	ctx, cancel := context.WithCancel(hub.ctx)

	return &Client{
		conn:         conn,
		hub:          hub,
		userID:       userID,
		send:         make(chan models.WSMessage, sendBufferSize),
		connectionID: utils.GenerateUUID(),
		connectedAt:  time.Now(),
		lastActivity: time.Now(),
		ipAddress:    getClientIP(r),
		userAgent:    r.UserAgent(),
		rateLimiter:  utils.NewRateLimiter(60, time.Minute),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// ServeWS upgrades the request and registers the device for userID.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request, userID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := NewClient(conn, hub, r, userID)
	select {
	case hub.register <- client:
	case <-hub.ctx.Done():
		conn.Close()
		return hub.ctx.Err()
	}

	logrus.WithFields(logrus.Fields{
		"userId":       userID,
		"connectionId": client.connectionID,
		"ip":           client.ipAddress,
	}).Info("WebSocket connected")

	go client.WritePump()
	go client.ReadPump()
	return nil
}

func (c *Client) ReadPump() {
	defer c.cleanup()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, messageData, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Errorf("WebSocket error for user %s: %v", c.userID, err)
			}
			return
		}
		if c.ctx.Err() != nil {
			return
		}

		c.lastActivity = time.Now()
		c.hub.messagesReceived.Add(1)

		if !c.rateLimiter.Allow() {
			c.sendError("", models.WSErrorRateLimit, "Rate limit exceeded")
			continue
		}

		c.handleMessage(messageData)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				logrus.Errorf("Write error for user %s: %v", c.userID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.pingFailCount++
				if c.pingFailCount > 3 {
					logrus.Warnf("Ping failed for user %s, disconnecting", c.userID)
					return
				}
			}
		}
	}
}

func (c *Client) handleMessage(messageData []byte) {
	var request models.WSRequest
	if err := json.Unmarshal(messageData, &request); err != nil {
		c.sendError("", models.WSErrorInvalidMessage, "Invalid message format")
		return
	}

	if c.hub.router == nil {
		c.sendError(request.RequestID, models.WSErrorUnknownType, "No handler for "+request.Type)
		return
	}

	reply, err := c.hub.router.Route(c.ctx, c.userID, request)
	if err != nil {
		var routeErr *RouteError
		if errors.As(err, &routeErr) {
			c.sendError(request.RequestID, routeErr.Code, routeErr.Message)
			return
		}
		c.sendError(request.RequestID, models.WSErrorInvalidMessage, err.Error())
		return
	}
	if reply != nil {
		reply.RequestID = request.RequestID
		c.hub.sendToClient(c, *reply)
	}
}

func (c *Client) sendError(requestID, code, message string) {
	c.hub.sendToClient(c, utils.WSErrorEvent(requestID, code, message))
}

func (c *Client) cleanup() {
	c.cancel()
	select {
	case c.hub.unregister <- c:
	case <-c.hub.ctx.Done():
	}
	c.conn.Close()

	logrus.WithFields(logrus.Fields{
		"userId":       c.userID,
		"connectionId": c.connectionID,
		"duration":     utils.FormatDuration(time.Since(c.connectedAt)),
	}).Info("WebSocket disconnected")
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
