package websocket

import (
	"fmt"
	"time"

	"welfare-receipts-backend/config"
	"welfare-receipts-backend/token"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 16 * 1024
	clientQueue    = 64
)

// AuthService verifies the access token presented on upgrade
type AuthService interface {
	VerifyToken(token string) (*token.Payload, error)
}

type WsHandler struct {
	hub  *Hub
	auth AuthService
}

func NewWsHandler(hub *Hub, auth AuthService) *WsHandler {
	return &WsHandler{hub: hub, auth: auth}
}

// HandleWebSocket upgrades an authenticated request to a workflow event stream. The
// optional batch query parameter narrows the feed to one batch.
func (h *WsHandler) HandleWebSocket(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	tokenStr := c.Cookies("access_token")
	if tokenStr == "" {
		tokenStr = c.Query("token")
	}
	if tokenStr == "" {
		config.Logger.Warn("WebSocket connection attempted without access token")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	payload, err := h.auth.VerifyToken(tokenStr)
	if err != nil {
		config.Logger.Warn("Invalid access token for WebSocket", zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid or expired token",
		})
	}

	batchID := c.Query("batch")
	if batchID != "" {
		if _, err := uuid.Parse(batchID); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid batch ID format",
			})
		}
	}

	config.Logger.Info("WebSocket connection authenticated",
		zap.String("identity", payload.Identity),
		zap.String("role", string(payload.Role)),
		zap.String("batchID", batchID),
	)

	return websocket.New(func(conn *websocket.Conn) {
		client := &Client{
			ID:       uuid.New(),
			Identity: payload.Identity,
			Conn:     conn,
			Hub:      h.hub,
			Send:     make(chan WebSocketMessage, clientQueue),
			Batches:  make(map[string]bool),
		}
		if batchID != "" {
			client.Batches[batchID] = true
		}

		h.hub.register <- client

		go client.writePump()
		client.readPump()
	})(c)
}

// readPump handles subscription changes sent by the client
func (c *Client) readPump() {
	defer func() {
		config.Logger.Info("WebSocket client disconnecting",
			zap.String("clientID", c.ID.String()),
			zap.String("identity", c.Identity),
		)
		c.Hub.unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg WebSocketMessage
		if err := c.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				config.Logger.Warn("WebSocket unexpected close",
					zap.String("clientID", c.ID.String()),
					zap.Error(err),
				)
			}
			break
		}

		switch msg.Type {
		case MessageTypeSubscribe:
			if _, err := uuid.Parse(msg.BatchID); err != nil {
				c.sendError("Invalid batch ID format")
				continue
			}
			c.SubscribeToBatch(msg.BatchID)
		case MessageTypeUnsubscribe:
			c.UnsubscribeFromBatch(msg.BatchID)
		default:
			c.sendError("Unknown message type: " + string(msg.Type))
		}
	}
}

// writePump sends queued messages and keeps the connection alive
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(message); err != nil {
				config.Logger.Debug("WebSocket write error",
					zap.String("clientID", c.ID.String()),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendError(message string) {
	if err := c.SendMessage(WebSocketMessage{
		Type:      MessageTypeError,
		Payload:   map[string]interface{}{"message": message},
		Timestamp: time.Now(),
	}); err != nil {
		config.Logger.Debug("Dropped websocket error message", zap.String("clientID", c.ID.String()))
	}
}

// SendMessage queues msg without blocking; a full queue is an error
func (c *Client) SendMessage(msg WebSocketMessage) error {
	select {
	case c.Send <- msg:
		return nil
	default:
		return fmt.Errorf("send queue of client %s is full", c.ID)
	}
}
