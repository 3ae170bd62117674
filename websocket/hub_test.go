package websocket

import (
	"testing"
	"time"

	"welfare-receipts-backend/db/models"

	"github.com/google/uuid"
)

func TestHubDeliversToSubscribedClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	batch := uuid.NewString()
	everything := &Client{ID: uuid.New(), Send: make(chan WebSocketMessage, 4)}
	scoped := &Client{ID: uuid.New(), Send: make(chan WebSocketMessage, 4), Batches: map[string]bool{batch: true}}
	hub.register <- everything
	hub.register <- scoped

	hub.Publish(models.WorkflowEvent{Type: models.BatchValidatedEvent, BatchID: uuid.NewString(), Reference: "other"})
	hub.Publish(models.WorkflowEvent{Type: models.ReceiptGeneratedEvent, BatchID: batch, Reference: "RCP-1"})

	for i := 0; i < 2; i++ {
		select {
		case <-everything.Send:
		case <-time.After(time.Second):
			t.Fatalf("unscoped client missed event %d", i)
		}
	}

	select {
	case msg := <-scoped.Send:
		ev, ok := msg.Payload.(models.WorkflowEvent)
		if !ok || ev.Reference != "RCP-1" {
			t.Fatalf("scoped client received wrong event: %+v", msg.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("scoped client missed its batch event")
	}

	select {
	case msg := <-scoped.Send:
		t.Fatalf("scoped client received unrelated event: %+v", msg.Payload)
	case <-time.After(50 * time.Millisecond):
	}

	if n := hub.GetClientCount(); n != 2 {
		t.Fatalf("expected 2 connected clients, got %d", n)
	}
}

func TestClientWants(t *testing.T) {
	c := &Client{}
	if !c.Wants("any") {
		t.Fatal("client without subscriptions should want every batch")
	}
	c.SubscribeToBatch("a")
	if c.Wants("b") || !c.Wants("a") || !c.Wants("") {
		t.Fatal("subscription filter not applied")
	}
	c.UnsubscribeFromBatch("a")
	if !c.Wants("b") {
		t.Fatal("unsubscribing the last batch should restore the full feed")
	}
}
