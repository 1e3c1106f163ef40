package docstore

import (
	"context"
	"sync"
)

// subscriberBuffer bounds how many snapshots a slow subscriber can lag.
const subscriberBuffer = 16

// Broker fans serialised documents out to subscribers of a document id.
type Broker interface {
	Publish(ctx context.Context, id string, payload []byte) error
	// Subscribe returns a channel of payloads and a cancel func that
	// closes it.
	Subscribe(id string) (<-chan []byte, func())
	Close() error
}

type subscriber struct {
	ch chan []byte
}

// offer delivers without blocking. A full buffer loses its oldest entry.
func (s *subscriber) offer(payload []byte) {
	select {
	case s.ch <- payload:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- payload:
	default:
	}
}

// LocalBroker is an in-process hub for single-instance deployments.
type LocalBroker struct {
	mu     sync.RWMutex
	topics map[string]map[*subscriber]struct{}
	closed bool
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{topics: make(map[string]map[*subscriber]struct{})}
}

func (b *LocalBroker) Publish(_ context.Context, id string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.topics[id] {
		s.offer(payload)
	}
	return nil
}

func (b *LocalBroker) Subscribe(id string) (<-chan []byte, func()) {
	s := &subscriber{ch: make(chan []byte, subscriberBuffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	if b.topics[id] == nil {
		b.topics[id] = make(map[*subscriber]struct{})
	}
	b.topics[id][s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.topics[id]; ok {
				if _, ok := subs[s]; ok {
					delete(subs, s)
					close(s.ch)
				}
				if len(subs) == 0 {
					delete(b.topics, id)
				}
			}
		})
	}
}

// Subscribers returns the number of open subscriptions for id.
func (b *LocalBroker) Subscribers(id string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[id])
}

func (b *LocalBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, subs := range b.topics {
		for s := range subs {
			close(s.ch)
		}
		delete(b.topics, id)
	}
	b.closed = true
	return nil
}
