package roomstate

import "sync"

// Readable is the observation half of a Value.
type Readable[T any] interface {
	Get() T
	Subscribe(fn func(T)) (unsubscribe func())
}

// Value is an observable holder. Subscribers run synchronously, in
// subscription order, after the lock is released.
type Value[T any] struct {
	mu     sync.Mutex
	notify sync.Mutex
	v      T
	subs   map[uint64]func(T)
	order  []uint64
	nextID uint64
}

// NewValue creates a Value holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{v: initial, subs: make(map[uint64]func(T))}
}

// Get returns the current value.
func (x *Value[T]) Get() T {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.v
}

// Set replaces the value and notifies subscribers.
func (x *Value[T]) Set(v T) {
	x.notify.Lock()
	defer x.notify.Unlock()

	x.mu.Lock()
	x.v = v
	subs := x.snapshotSubs()
	x.mu.Unlock()

	for _, fn := range subs {
		fn(v)
	}
}

// Subscribe registers fn and calls it immediately with the current value.
func (x *Value[T]) Subscribe(fn func(T)) func() {
	x.notify.Lock()
	x.mu.Lock()
	id := x.nextID
	x.nextID++
	if x.subs == nil {
		x.subs = make(map[uint64]func(T))
	}
	x.subs[id] = fn
	x.order = append(x.order, id)
	current := x.v
	x.mu.Unlock()

	fn(current)
	x.notify.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			x.mu.Lock()
			defer x.mu.Unlock()
			delete(x.subs, id)
			for i, sid := range x.order {
				if sid == id {
					x.order = append(x.order[:i], x.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (x *Value[T]) snapshotSubs() []func(T) {
	subs := make([]func(T), 0, len(x.order))
	for _, id := range x.order {
		subs = append(subs, x.subs[id])
	}
	return subs
}
