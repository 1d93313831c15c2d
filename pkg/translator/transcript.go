package translator

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// transcript keeps the most recent items, oldest first.
type transcript struct {
	mu    sync.Mutex
	limit int
	items []TranscriptionItem
}

func newTranscript(limit int) *transcript {
	if limit <= 0 {
		limit = DefaultTranscriptLimit
	}
	return &transcript{limit: limit}
}

func (t *transcript) add(text string, isUser bool, now time.Time) TranscriptionItem {
	item := TranscriptionItem{
		ID:        uuid.New(),
		Text:      text,
		IsUser:    isUser,
		Timestamp: now,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, item)
	if over := len(t.items) - t.limit; over > 0 {
		t.items = append(t.items[:0], t.items[over:]...)
	}
	return item
}

func (t *transcript) list() []TranscriptionItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TranscriptionItem, len(t.items))
	copy(out, t.items)
	return out
}

func (t *transcript) clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = nil
}
