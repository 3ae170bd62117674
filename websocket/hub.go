// websocket/hub.go
package websocket

import (
	"sync"
	"time"

	"welfare-receipts-backend/config"
	"welfare-receipts-backend/db/models"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type MessageType string

const (
	MessageTypeWorkflow    MessageType = "WORKFLOW_EVENT"
	MessageTypeSubscribe   MessageType = "SUBSCRIBE"
	MessageTypeUnsubscribe MessageType = "UNSUBSCRIBE"
	MessageTypeError       MessageType = "ERROR"
)

type WebSocketMessage struct {
	Type      MessageType `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
	BatchID   string      `json:"batchId,omitempty"`
}

// Client is one connected operator. A client with no batch subscriptions receives every
// workflow event.
type Client struct {
	ID       uuid.UUID
	Identity string
	Conn     *websocket.Conn
	Hub      *Hub
	Send     chan WebSocketMessage
	Batches  map[string]bool
	mu       sync.RWMutex
}

type Hub struct {
	clients    map[*Client]bool
	broadcast  chan WebSocketMessage
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan WebSocketMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

// Publish queues a workflow event for delivery. It never blocks the caller; when the
// queue is full the event is dropped and logged.
func (h *Hub) Publish(event models.WorkflowEvent) {
	msg := WebSocketMessage{
		Type:      MessageTypeWorkflow,
		Payload:   event,
		Timestamp: event.OccurredAt,
		BatchID:   event.BatchID,
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	select {
	case h.broadcast <- msg:
	default:
		config.Logger.Warn("Workflow event dropped, hub queue full",
			zap.String("type", string(event.Type)),
			zap.String("reference", event.Reference),
		)
	}
}

// deliver sends message to every client interested in its batch
func (h *Hub) deliver(message WebSocketMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if !client.Wants(message.BatchID) {
			continue
		}
		select {
		case client.Send <- message:
		default:
			close(client.Send)
			delete(h.clients, client)
		}
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscribeToBatch narrows the client's feed to the given batch
func (c *Client) SubscribeToBatch(batchID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Batches == nil {
		c.Batches = make(map[string]bool)
	}
	c.Batches[batchID] = true
}

func (c *Client) UnsubscribeFromBatch(batchID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.Batches, batchID)
}

// Wants reports whether an event for batchID should reach this client
func (c *Client) Wants(batchID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.Batches) == 0 || batchID == "" {
		return true
	}
	return c.Batches[batchID]
}
