// Package bus is a small publish/subscribe registry.
//
// Listeners are stored in a copy-on-write slice, so Subscribe and the
// returned unsubscribe func may be called from inside a listener while a
// notification is being delivered. A listener removed mid-delivery is not
// called again, and a listener added mid-delivery first sees the next value.
//
// Publish calls made while a delivery is in progress (from a listener, or
// from another goroutine) are queued and delivered in order by the goroutine
// that is already delivering. Listeners therefore never run concurrently
// with each other for the same Bus.
package bus

import (
	"slices"
	"sync"
	"sync/atomic"
)

type listener[T any] struct {
	id     uint64
	fn     func(T)
	active atomic.Bool
}

// Bus fans values out to subscribed listeners. The zero value is ready to use.
type Bus[T any] struct {
	mu        sync.Mutex
	listeners []*listener[T]
	nextID    uint64
	queue     []T
	draining  bool
}

// New returns an empty bus
func New[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers fn and returns a func that removes it. The returned
// func is safe to call more than once.
func (b *Bus[T]) Subscribe(fn func(T)) func() {
	b.mu.Lock()
	b.nextID++
	l := &listener[T]{id: b.nextID, fn: fn}
	l.active.Store(true)
	next := slices.Clone(b.listeners)
	b.listeners = append(next, l)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(l) })
	}
}

func (b *Bus[T]) remove(l *listener[T]) {
	l.active.Store(false)

	b.mu.Lock()
	defer b.mu.Unlock()

	i := slices.IndexFunc(b.listeners, func(x *listener[T]) bool { return x.id == l.id })
	if i < 0 {
		return
	}
	next := slices.Clone(b.listeners)
	b.listeners = slices.Delete(next, i, i+1)
}

// Len returns the number of subscribed listeners
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// Publish delivers v to every listener exactly once
func (b *Bus[T]) Publish(v T) {
	b.Queue(v)
	b.Flush()
}

// Queue appends v to the delivery queue without delivering it. Callers that
// must fix notification order under their own lock queue under that lock and
// call Flush after releasing it.
func (b *Bus[T]) Queue(v T) {
	b.mu.Lock()
	b.queue = append(b.queue, v)
	b.mu.Unlock()
}

// Flush delivers queued values unless a delivery is already running, in
// which case that delivery picks them up.
func (b *Bus[T]) Flush() {
	b.mu.Lock()
	if b.draining || len(b.queue) == 0 {
		b.mu.Unlock()
		return
	}
	b.draining = true
	b.mu.Unlock()

	b.drain()
}

func (b *Bus[T]) drain() {
	defer func() {
		if r := recover(); r != nil {
			b.mu.Lock()
			b.draining = false
			b.queue = nil
			b.mu.Unlock()
			panic(r)
		}
	}()

	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.draining = false
			b.mu.Unlock()
			return
		}
		v := b.queue[0]
		b.queue = b.queue[1:]
		current := b.listeners
		b.mu.Unlock()

		for _, l := range current {
			if l.active.Load() {
				l.fn(v)
			}
		}
	}
}
