package rews

import (
	"sync"
)

type handlerFunc[V any] func(V)

// Dispatcher maps event kinds (of type K) to ordered lists of handlers.
// Registering the same handler twice makes it fire twice; there is no
// removal operation. Each invocation is isolated: a panicking handler is
// logged and the remaining handlers still run.
type Dispatcher[K comparable, V any] struct {
	logger   Logger
	handlers map[K][]handlerFunc[V]
	lock     sync.RWMutex
}

// NewDispatcher creates a new Dispatcher and returns a pointer to it.
func NewDispatcher[K comparable, V any](logger Logger) *Dispatcher[K, V] {
	return &Dispatcher[K, V]{
		logger:   logger,
		handlers: make(map[K][]handlerFunc[V]),
	}
}

// On appends a handler to the given event kind. Insertion order is
// invocation order.
func (d *Dispatcher[K, V]) On(kind K, handler handlerFunc[V]) {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.handlers[kind] = append(d.handlers[kind], handler)
}

// Emit invokes every handler registered for the given kind, in registration
// order, passing the payload through unmodified. Handlers registered while
// an emission is in flight do not take part in it.
func (d *Dispatcher[K, V]) Emit(kind K, data V) {
	d.lock.RLock()
	registered, found := d.handlers[kind]
	if !found {
		d.lock.RUnlock()
		return
	}
	handlers := make([]handlerFunc[V], len(registered))
	copy(handlers, registered)
	d.lock.RUnlock()

	for _, handler := range handlers {
		d.invoke(kind, handler, data)
	}
}

func (d *Dispatcher[K, V]) invoke(kind K, handler handlerFunc[V], data V) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorf("handler for event %v panicked: %v", kind, r)
		}
	}()

	handler(data)
}

// Close removes all handlers to prevent memory leaks.
func (d *Dispatcher[K, V]) Close() {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.handlers = make(map[K][]handlerFunc[V])
}
