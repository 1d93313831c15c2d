package live

import (
	"context"
	"errors"
	"testing"

	"github.com/teslashibe/go-livetranslate/pkg/pcm"
)

func TestMock_DialRecordsConfig(t *testing.T) {
	m := NewMock()
	rec := newRecorder()

	sess, err := m.Dial(context.Background(), SessionConfig{SystemInstruction: "x"}, rec.callbacks())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	if opened, _ := rec.snapshot(); opened != 1 {
		t.Errorf("Expected AutoOpen to fire OnOpen, got %d", opened)
	}
	if len(m.Configs) != 1 || m.Configs[0].SystemInstruction != "x" {
		t.Errorf("Unexpected configs: %+v", m.Configs)
	}
	if m.Last() != sess {
		t.Error("Expected Last to return the dialed session")
	}
}

func TestMock_DialError(t *testing.T) {
	m := NewMock()
	boom := errors.New("boom")
	m.DialFunc = func(context.Context, SessionConfig) error { return boom }

	if _, err := m.Dial(context.Background(), SessionConfig{}, Callbacks{}); !errors.Is(err, boom) {
		t.Errorf("Expected dial error, got %v", err)
	}
	if m.Last() != nil || m.Dials() != 0 {
		t.Error("Expected no session after failed dial")
	}
}

func TestMockSession_SendAndClose(t *testing.T) {
	m := NewMock()
	m.AutoOpen = false
	rec := newRecorder()
	sess, _ := m.Dial(context.Background(), SessionConfig{}, rec.callbacks())
	ms := m.Last()

	if opened, _ := rec.snapshot(); opened != 0 {
		t.Error("Expected no OnOpen without AutoOpen")
	}
	ms.Open()
	ms.Deliver(Message{TurnComplete: true})

	if err := sess.Send(pcm.Encode([]float32{0.5}, 16000)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(ms.Sent()) != 1 {
		t.Errorf("Expected 1 sent blob, got %d", len(ms.Sent()))
	}

	sess.Close()
	if !ms.Closed() {
		t.Error("Expected session closed")
	}
	if err := sess.Send(pcm.Blob{}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}

	ms.Deliver(Message{Interrupted: true})
	if _, messages := rec.snapshot(); len(messages) != 1 {
		t.Errorf("Expected delivery to stop after Close, got %d messages", len(messages))
	}
}
