package translator

import (
	"sync"

	"github.com/teslashibe/go-livetranslate/pkg/live"
)

type eventKind int

const (
	eventOpen eventKind = iota
	eventMessage
	eventClose
	eventError
)

func (k eventKind) String() string {
	switch k {
	case eventOpen:
		return "open"
	case eventMessage:
		return "message"
	case eventClose:
		return "close"
	case eventError:
		return "error"
	default:
		return "unknown"
	}
}

type event struct {
	kind eventKind
	msg  live.Message
	err  error
}

// eventQueue is an unbounded FIFO. Posting never blocks, so the session
// reader is never held up by playback work.
type eventQueue struct {
	mu     sync.Mutex
	items  []event
	closed bool
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{signal: make(chan struct{}, 1)}
}

// post appends e. It reports false once the queue is closed.
func (q *eventQueue) post(e event) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, e)
	select {
	case q.signal <- struct{}{}:
	default:
	}
	q.mu.Unlock()
	return true
}

// next blocks until an event is available. It returns false once the queue
// is closed; events still pending at that point are discarded.
func (q *eventQueue) next() (event, bool) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return event{}, false
		}
		if len(q.items) > 0 {
			e := q.items[0]
			q.items[0] = event{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return e, true
		}
		q.mu.Unlock()
		<-q.signal
	}
}

func (q *eventQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.items = nil
	q.mu.Unlock()
	close(q.signal)
}

func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
