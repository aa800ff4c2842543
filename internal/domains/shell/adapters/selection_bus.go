package adapters

import (
	"sync"
)

// SelectionBus is the in-process ports.SelectionBus.
type SelectionBus struct {
	mu   sync.Mutex
	last string
	sub  func(string)
	// subID lets a stale unsubscribe leave a newer subscriber alone.
	subID int
}

func NewSelectionBus() *SelectionBus { return &SelectionBus{} }

// Publish delivers text to the subscriber when it differs from the previous
// value. The subscriber runs on the publisher's goroutine, outside the lock.
func (b *SelectionBus) Publish(text string) {
	b.mu.Lock()
	if text == b.last {
		b.mu.Unlock()
		return
	}
	b.last = text
	fn := b.sub
	b.mu.Unlock()

	if fn != nil {
		fn(text)
	}
}

func (b *SelectionBus) Subscribe(fn func(string)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subID++
	id := b.subID
	b.sub = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.subID == id {
			b.sub = nil
		}
	}
}
