// Package eventbus fans the records of a running world out to watchers.
package eventbus

import (
	"sync"
	"sync/atomic"
)

// Bus delivers every published value to each subscriber.
//
// A Lossy subscriber whose buffer is full misses the value and the miss is
// counted. A Lossless subscriber makes Publish wait for buffer space, so it
// must keep reading until it unsubscribes.
type Bus[T any] struct {
	mu   sync.RWMutex
	subs map[uint64]*sub[T]
	seq  uint64

	dropped atomic.Uint64
}

// Mode selects what Publish does when a subscriber is behind.
type Mode uint8

const (
	Lossy Mode = iota
	Lossless
)

type sub[T any] struct {
	ch   chan T
	done chan struct{}
	mode Mode
}

func New[T any]() *Bus[T] {
	return &Bus[T]{subs: map[uint64]*sub[T]{}}
}

// Publish hands v to every subscriber. It holds the read lock while
// sending, so Unsubscribe waits for in-flight deliveries.
func (b *Bus[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if s.mode == Lossless {
			select {
			case s.ch <- v:
			case <-s.done:
			}
			continue
		}
		select {
		case s.ch <- v:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe registers a subscriber and returns its channel and an
// unsubscribe func. Unsubscribing closes the channel and is idempotent.
func (b *Bus[T]) Subscribe(buffer int, mode Mode) (<-chan T, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	s := &sub[T]{ch: make(chan T, buffer), done: make(chan struct{}), mode: mode}

	b.mu.Lock()
	b.seq++
	id := b.seq
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			close(s.done)
			b.mu.Lock()
			delete(b.subs, id)
			close(s.ch)
			b.mu.Unlock()
		})
	}
}

func (b *Bus[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped counts values Lossy subscribers missed.
func (b *Bus[T]) Dropped() uint64 { return b.dropped.Load() }
