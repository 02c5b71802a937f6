package broadcast

import (
	"context"
	"sync"
)

// Message wraps data of type T for type-safe broadcasting.
type Message[T any] struct {
	Data T
}

// Subscriber receives messages from a broadcaster. Safe for concurrent
// use. After Close the receive channel is closed and no more messages
// arrive; Close is idempotent.
type Subscriber[T any] interface {
	Receive() <-chan Message[T]
	Close() error
}

// MemoryBroadcaster fans messages out to all current subscribers.
// Slow consumers are dropped rather than blocking Broadcast. All
// methods are safe for concurrent use.
type MemoryBroadcaster[T any] struct {
	mu          sync.RWMutex
	subscribers map[*subscriber[T]]struct{}
	bufferSize  int
	closed      bool
	cleanupWg   sync.WaitGroup
}

type subscriber[T any] struct {
	ch     chan Message[T]
	closed bool
	mu     sync.Mutex
}

func (s *subscriber[T]) Receive() <-chan Message[T] {
	return s.ch
}

func (s *subscriber[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.ch)
		s.closed = true
	}
	return nil
}

// send delivers msg without blocking; false means the subscriber is
// closed or its buffer is full.
func (s *subscriber[T]) send(msg Message[T]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

// NewMemoryBroadcaster creates an in-memory broadcaster. bufferSize is
// each subscriber's channel capacity; a minimum of 1 is enforced so
// sends stay non-blocking.
func NewMemoryBroadcaster[T any](bufferSize int) *MemoryBroadcaster[T] {
	return &MemoryBroadcaster[T]{
		subscribers: make(map[*subscriber[T]]struct{}),
		bufferSize:  max(bufferSize, 1),
	}
}

// Subscribe registers a new subscriber. The subscription is cleaned up
// when ctx is cancelled. Subscribing to a closed broadcaster returns
// an already-closed subscriber.
func (b *MemoryBroadcaster[T]) Subscribe(ctx context.Context) Subscriber[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber[T]{ch: make(chan Message[T], b.bufferSize)}
	if b.closed {
		_ = sub.Close()
		return sub
	}
	b.subscribers[sub] = struct{}{}

	if ctx.Done() != nil {
		b.cleanupWg.Add(1)
		go func() {
			defer b.cleanupWg.Done()
			<-ctx.Done()
			b.unsubscribe(sub)
		}()
	}

	return sub
}

// Broadcast sends msg to every active subscriber. Subscribers that
// cannot accept the message are removed.
func (b *MemoryBroadcaster[T]) Broadcast(msg Message[T]) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for sub := range b.subscribers {
		if !sub.send(msg) {
			// Removal takes the write lock; do it off this goroutine
			// so one stuck consumer cannot slow the broadcast.
			go b.unsubscribe(sub)
		}
	}
}

// Close shuts down the broadcaster and closes all subscribers.
// Safe to call multiple times.
func (b *MemoryBroadcaster[T]) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for sub := range b.subscribers {
		_ = sub.Close()
	}
	clear(b.subscribers)
	b.mu.Unlock()

	b.cleanupWg.Wait()
	return nil
}

func (b *MemoryBroadcaster[T]) unsubscribe(sub *subscriber[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, sub)
	_ = sub.Close()
}
