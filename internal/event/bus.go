package event

import "sync"

// Handler receives every published event. Handlers must not block: the bus
// dispatches synchronously so that events from one domain transition reach the
// fabric in emission order.
type Handler func(Event)

// Bus is the in-process event dispatcher. Subscription happens at wiring
// time; publishing is safe from any goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish dispatches to all handlers in subscription order.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
