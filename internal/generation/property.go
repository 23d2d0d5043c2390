package generation

import "sync"

// Property is a mutable field with synchronous change notification.
// Subscribers fire only on a net change: setting the current value again is
// a no-op. Callbacks run outside the lock so they may read or set other
// properties.
type Property[T comparable] struct {
	mu    sync.Mutex
	value T
	subs  []func(T)
}

func NewProperty[T comparable](initial T) *Property[T] {
	return &Property[T]{value: initial}
}

func (p *Property[T]) Value() T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Set updates the value and notifies subscribers. Returns false when the
// value was unchanged and no notification fired.
func (p *Property[T]) Set(value T) bool {
	p.mu.Lock()
	if p.value == value {
		p.mu.Unlock()
		return false
	}
	p.value = value
	subs := p.subs
	p.mu.Unlock()
	for _, fn := range subs {
		fn(value)
	}
	return true
}

func (p *Property[T]) Subscribe(fn func(T)) {
	p.mu.Lock()
	p.subs = append(p.subs, fn)
	p.mu.Unlock()
}
