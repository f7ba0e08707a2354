// Package broker fans "grid changed" signals out to live feed
// subscribers, either inside one process or across processes through
// Redis pub/sub.
package broker

import (
	"context"
	"sync"
)

// Local delivers signals to subscribers in the same process.  Signals
// coalesce: a subscriber that has not consumed the previous one does not
// queue another.
type Local struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewLocal returns an empty broker.
func NewLocal() *Local {
	return &Local{subs: map[string]map[chan struct{}]struct{}{}}
}

func (b *Local) Publish(_ context.Context, gameID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[gameID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (b *Local) Subscribe(_ context.Context, gameID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	b.mu.Lock()
	set, ok := b.subs[gameID]
	if !ok {
		set = map[chan struct{}]struct{}{}
		b.subs[gameID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[gameID], ch)
			if len(b.subs[gameID]) == 0 {
				delete(b.subs, gameID)
			}
		})
	}
}

// Subscribers reports how many subscriptions are open for a game.
func (b *Local) Subscribers(gameID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[gameID])
}
