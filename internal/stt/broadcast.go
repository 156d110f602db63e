package stt

import "sync"

// Broadcaster fans listening-state changes out to attached observers.
// An observer that returns an error is dropped, so one broken connection
// cannot keep the rest from being notified.
type Broadcaster struct {
	mu        sync.Mutex
	next      int
	observers map[int]func(listening bool) error
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{observers: make(map[int]func(bool) error)}
}

// Attach registers an observer and returns its detach function.
func (b *Broadcaster) Attach(fn func(listening bool) error) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.observers[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.observers, id)
	}
}

func (b *Broadcaster) Broadcast(listening bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, fn := range b.observers {
		if err := fn(listening); err != nil {
			delete(b.observers, id)
		}
	}
}

func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.observers)
}
