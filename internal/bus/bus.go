// Package bus implements the single multi-producer/single-consumer command
// queue: unbounded by design, FIFO per producer, no cross-producer ordering
// guarantee.
package bus

import (
	"sync"

	"rradio/internal/messages"
)

// Bus is safe for concurrent Push from any number of goroutines; Next must
// only be called from the single consumer goroutine (the Controller). Go has
// no unbounded channel primitive, so the queue is a mutex-guarded slice with
// a capacity-1 wake channel the consumer blocks on between polls.
type Bus struct {
	mu     sync.Mutex
	queue  []messages.Command
	wake   chan struct{}
	closed bool
}

// New returns an empty, open bus.
func New() *Bus {
	return &Bus{wake: make(chan struct{}, 1)}
}

// Push enqueues a command. Safe to call from any goroutine, including after
// the consumer has stopped reading (it simply grows the backlog, which the
// burst test bounds).
func (b *Bus) Push(cmd messages.Command) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, cmd)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Next blocks until a command is available or ctx-equivalent done channel
// fires, returning ok=false in the latter case.
func (b *Bus) Next(done <-chan struct{}) (messages.Command, bool) {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			cmd := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return cmd, true
		}
		b.mu.Unlock()

		select {
		case <-b.wake:
		case <-done:
			return messages.Command{}, false
		}
	}
}

// Wake exposes the bus's notification channel for use in a select alongside
// other event sources: the Controller selects on Wake and, when it fires,
// drains with TryNext in a loop.
func (b *Bus) Wake() <-chan struct{} {
	return b.wake
}

// TryNext returns the next queued command without blocking.
func (b *Bus) TryNext() (messages.Command, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return messages.Command{}, false
	}
	cmd := b.queue[0]
	b.queue = b.queue[1:]
	return cmd, true
}

// Len reports the current backlog size, used by the burst test to assert
// bounded memory.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Close marks the bus closed; further Push calls are dropped silently
// rather than returned as an error — the bus never errors.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}
