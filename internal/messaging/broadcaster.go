package messaging

import (
	"context"
	"sync"

	"solana-token-ledger/internal/domain"
)

// DefaultSubscriptionBuffer is the per-subscriber queue length.
const DefaultSubscriptionBuffer = 64

// Subscription receives receipts from a Broadcaster.
type Subscription struct {
	C <-chan *domain.Receipt

	ch     chan *domain.Receipt
	mint   domain.OptionalAddress
	b      *Broadcaster
	closed bool
}

// Close detaches the subscription and closes C.
func (s *Subscription) Close() {
	s.b.unsubscribe(s)
}

// Broadcaster fans receipts out to in-process subscribers. A subscriber whose
// queue is full misses the receipt rather than blocking the publisher.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool

	// OnDrop is called for every receipt a slow subscriber missed.
	OnDrop func()
	// OnSubscribers is called with the subscriber count after every change.
	OnSubscribers func(n int)
}

var _ Publisher = (*Broadcaster)(nil)

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a subscriber. With mint set, only receipts of that mint
// are delivered. buffer <= 0 uses DefaultSubscriptionBuffer.
func (b *Broadcaster) Subscribe(mint domain.OptionalAddress, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultSubscriptionBuffer
	}
	ch := make(chan *domain.Receipt, buffer)
	s := &Subscription{C: ch, ch: ch, mint: mint, b: b}

	b.mu.Lock()
	if b.closed {
		s.closed = true
		close(ch)
		b.mu.Unlock()
		return s
	}
	b.subs[s] = struct{}{}
	n := len(b.subs)
	b.mu.Unlock()

	b.notify(n)
	return s
}

func (b *Broadcaster) unsubscribe(s *Subscription) {
	b.mu.Lock()
	if s.closed {
		b.mu.Unlock()
		return
	}
	s.closed = true
	delete(b.subs, s)
	close(s.ch)
	n := len(b.subs)
	b.mu.Unlock()

	b.notify(n)
}

// Publish delivers r to every matching subscriber without blocking.
func (b *Broadcaster) Publish(_ context.Context, r *domain.Receipt) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs {
		if m, ok := s.mint.Get(); ok && m != r.Mint {
			continue
		}
		select {
		case s.ch <- r:
		default:
			if b.OnDrop != nil {
				b.OnDrop()
			}
		}
	}
	return nil
}

// Len returns the number of live subscriptions.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscription. Later subscriptions are closed immediately.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for s := range b.subs {
		s.closed = true
		close(s.ch)
	}
	b.subs = make(map[*Subscription]struct{})
	b.mu.Unlock()

	b.notify(0)
}

func (b *Broadcaster) notify(n int) {
	if b.OnSubscribers != nil {
		b.OnSubscribers(n)
	}
}
