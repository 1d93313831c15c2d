package hub

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})
	return h, cancel
}

func register(h *Hub, buffer int) *Client {
	c := &Client{hub: h, send: make(chan Message, buffer)}
	h.register <- c
	return c
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
	return Message{}
}

func TestHub_BroadcastFansOut(t *testing.T) {
	h, _ := testHub(t)
	a := register(h, 4)
	b := register(h, 4)

	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected 2 clients, got %d", h.ClientCount())
		}
		time.Sleep(time.Millisecond)
	}

	if err := h.BroadcastJSON(map[string]string{"type": "connection"}); err != nil {
		t.Fatalf("BroadcastJSON failed: %v", err)
	}

	for _, c := range []*Client{a, b} {
		var got map[string]string
		if err := json.Unmarshal(receive(t, c).Data, &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got["type"] != "connection" {
			t.Errorf("Unexpected payload %v", got)
		}
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	h, _ := testHub(t)
	slow := register(h, 1)

	h.Broadcast(NewJSONMessage([]byte(`1`)))
	h.Broadcast(NewJSONMessage([]byte(`2`)))

	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("slow client was not dropped")
		}
		time.Sleep(time.Millisecond)
	}

	<-slow.send
	if _, ok := <-slow.send; ok {
		t.Error("Expected slow client's channel to be closed")
	}
}

func TestHub_UnregisterAndShutdown(t *testing.T) {
	h, cancel := testHub(t)
	a := register(h, 1)
	b := register(h, 1)

	h.unregister <- a
	if _, ok := <-a.send; ok {
		t.Error("Expected unregistered client's channel to be closed")
	}

	cancel()
	<-h.Done()
	if _, ok := <-b.send; ok {
		t.Error("Expected shutdown to close remaining clients")
	}
	if c := NewClient(h, nil); c != nil {
		t.Error("Expected NewClient to fail on a stopped hub")
	}
}
