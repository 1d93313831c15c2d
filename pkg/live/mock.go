package live

import (
	"context"
	"sync"

	"github.com/teslashibe/go-livetranslate/pkg/pcm"
)

// Mock is a mock Dialer for testing.
type Mock struct {
	mu sync.Mutex

	// AutoOpen fires OnOpen synchronously before Dial returns control to
	// the caller's event loop. When false, call MockSession.Open.
	AutoOpen bool

	// Configurable behavior
	DialFunc  func(ctx context.Context, cfg SessionConfig) error
	SendFunc  func(blob pcm.Blob) error
	CloseFunc func() error

	// Captured calls for assertions
	Configs  []SessionConfig
	sessions []*MockSession
}

// NewMock creates a new Mock dialer that opens sessions immediately.
func NewMock() *Mock {
	return &Mock{AutoOpen: true}
}

// Dial implements Dialer.
func (m *Mock) Dial(ctx context.Context, cfg SessionConfig, cb Callbacks) (Session, error) {
	if m.DialFunc != nil {
		if err := m.DialFunc(ctx, cfg); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &MockSession{cb: cb, sendFunc: m.SendFunc, closeFunc: m.CloseFunc}

	m.mu.Lock()
	m.Configs = append(m.Configs, cfg)
	m.sessions = append(m.sessions, s)
	autoOpen := m.AutoOpen
	m.mu.Unlock()

	if autoOpen {
		s.Open()
	}
	return s, nil
}

// Last returns the most recently dialed session, or nil.
func (m *Mock) Last() *MockSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sessions) == 0 {
		return nil
	}
	return m.sessions[len(m.sessions)-1]
}

// Dials returns the number of successful Dial calls.
func (m *Mock) Dials() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// MockSession is a scriptable Session.
type MockSession struct {
	mu       sync.Mutex
	cb       Callbacks
	sendFunc  func(blob pcm.Blob) error
	closeFunc func() error
	sent      []pcm.Blob
	closed    bool
}

// Send implements Session.
func (s *MockSession) Send(blob pcm.Blob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNotConnected
	}
	if s.sendFunc != nil {
		if err := s.sendFunc(blob); err != nil {
			return err
		}
	}
	s.sent = append(s.sent, blob)
	return nil
}

// Close implements Session. Callbacks are suppressed before CloseFunc runs.
func (s *MockSession) Close() error {
	s.mu.Lock()
	s.closed = true
	closeFunc := s.closeFunc
	s.mu.Unlock()

	if closeFunc != nil {
		return closeFunc()
	}
	return nil
}

// Closed reports whether Close was called.
func (s *MockSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Sent returns a copy of the blobs sent so far.
func (s *MockSession) Sent() []pcm.Blob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]pcm.Blob, len(s.sent))
	copy(out, s.sent)
	return out
}

// Test helpers

// Open fires OnOpen.
func (s *MockSession) Open() {
	if cb, ok := s.callbacks(); ok && cb.OnOpen != nil {
		cb.OnOpen()
	}
}

// Deliver fires OnMessage with msg.
func (s *MockSession) Deliver(msg Message) {
	if cb, ok := s.callbacks(); ok && cb.OnMessage != nil {
		cb.OnMessage(msg)
	}
}

// CloseRemote simulates the server closing the session.
func (s *MockSession) CloseRemote(err error) {
	if cb, ok := s.callbacks(); ok && cb.OnClose != nil {
		cb.OnClose(err)
	}
}

// Fail simulates a transport error.
func (s *MockSession) Fail(err error) {
	if cb, ok := s.callbacks(); ok && cb.OnError != nil {
		cb.OnError(err)
	}
}

func (s *MockSession) callbacks() (Callbacks, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cb, !s.closed
}

var _ Dialer = (*Mock)(nil)
