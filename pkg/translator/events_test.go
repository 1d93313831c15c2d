package translator

import (
	"testing"
	"time"

	"github.com/teslashibe/go-livetranslate/pkg/live"
)

func TestEventQueue_Order(t *testing.T) {
	q := newEventQueue()
	for i := 0; i < 100; i++ {
		q.post(event{kind: eventMessage, msg: live.Message{OutputTranscript: string(rune('a' + i%26))}})
	}
	if q.len() != 100 {
		t.Fatalf("Expected 100 queued events, got %d", q.len())
	}
	for i := 0; i < 100; i++ {
		e, ok := q.next()
		if !ok {
			t.Fatal("queue closed early")
		}
		if want := string(rune('a' + i%26)); e.msg.OutputTranscript != want {
			t.Fatalf("event %d: got %q, want %q", i, e.msg.OutputTranscript, want)
		}
	}
}

func TestEventQueue_NextBlocksUntilPost(t *testing.T) {
	q := newEventQueue()
	got := make(chan eventKind, 1)
	go func() {
		e, _ := q.next()
		got <- e.kind
	}()

	select {
	case <-got:
		t.Fatal("next returned before any post")
	case <-time.After(20 * time.Millisecond):
	}

	q.post(event{kind: eventClose})
	select {
	case k := <-got:
		if k != eventClose {
			t.Errorf("Expected close event, got %s", k)
		}
	case <-time.After(time.Second):
		t.Fatal("next did not wake up")
	}
}

func TestEventQueue_Close(t *testing.T) {
	q := newEventQueue()
	q.post(event{kind: eventOpen})
	q.close()
	q.close()

	if _, ok := q.next(); ok {
		t.Error("Expected closed queue to discard pending events")
	}
	if q.post(event{kind: eventOpen}) {
		t.Error("Expected post to fail after close")
	}
}
