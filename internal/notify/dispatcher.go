// Package notify delivers events to subscribers in registration order.
package notify

import "sync"

type entry[T any] struct {
	id      uint64
	fn      func(T)
	removed bool
}

type pending[T any] struct {
	ev   T
	gate func() bool
}

// Dispatcher fans events out to handlers in the order they subscribed.
// An Emit issued while a delivery round is in progress (from a handler or
// from another goroutine) is queued and delivered after the current round,
// so a handler is never invoked re-entrantly.
type Dispatcher[T any] struct {
	mu          sync.Mutex
	handlers    []*entry[T]
	nextID      uint64
	dispatching bool
	queue       []pending[T]
}

// Subscribe registers fn and returns a function that removes it.
func (d *Dispatcher[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	e := &entry[T]{id: d.nextID, fn: fn}
	d.handlers = append(d.handlers, e)
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if e.removed {
			return
		}
		e.removed = true
		for i, h := range d.handlers {
			if h == e {
				d.handlers = append(d.handlers[:i:i], d.handlers[i+1:]...)
				break
			}
		}
	}
}

// Len returns the number of live handlers.
func (d *Dispatcher[T]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handlers)
}

// Emit delivers ev to every handler.
func (d *Dispatcher[T]) Emit(ev T) {
	d.EmitGated(ev, nil)
}

// EmitGated delivers ev, consulting gate before each handler call. Once gate
// returns false the remaining handlers are skipped for this event.
func (d *Dispatcher[T]) EmitGated(ev T, gate func() bool) {
	d.mu.Lock()
	d.queue = append(d.queue, pending[T]{ev: ev, gate: gate})
	if d.dispatching {
		d.mu.Unlock()
		return
	}
	d.dispatching = true
	for len(d.queue) > 0 {
		next := d.queue[0]
		d.queue = d.queue[1:]
		handlers := append([]*entry[T](nil), d.handlers...)
		d.mu.Unlock()
		d.deliver(next, handlers)
		d.mu.Lock()
	}
	d.dispatching = false
	d.mu.Unlock()
}

func (d *Dispatcher[T]) deliver(p pending[T], handlers []*entry[T]) {
	for _, h := range handlers {
		if p.gate != nil && !p.gate() {
			return
		}
		d.mu.Lock()
		removed := h.removed
		d.mu.Unlock()
		if removed {
			continue
		}
		h.fn(p.ev)
	}
}
