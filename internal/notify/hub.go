package notify

import (
	"context"
	"sync"
)

// Hub fans events out to in-process subscribers such as SSE streams.
// A subscriber that falls behind misses events rather than stalling others.
type Hub struct {
	mu     sync.RWMutex
	buffer int
	subs   map[chan PostVoted]struct{}
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		buffer: buffer,
		subs:   make(map[chan PostVoted]struct{}),
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called exactly once; it closes the channel.
func (h *Hub) Subscribe() (<-chan PostVoted, func()) {
	ch := make(chan PostVoted, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Publish(_ context.Context, event PostVoted) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
