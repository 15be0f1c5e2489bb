package events

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Listener receives engine events. Listeners run synchronously on the
// emitting goroutine and must not block for long.
type Listener func(Event)

// Subscription is the handle returned by Subscribe; pass it to Unsubscribe
// to deregister the listener.
type Subscription struct {
	id string
}

type registration struct {
	id       string
	listener Listener
}

// Dispatcher is the in-process publish/subscribe registry. Listeners are
// invoked synchronously in registration order; a panic in one listener is
// recovered and logged so it cannot suppress delivery to the others or
// destabilize the emitting operation.
type Dispatcher struct {
	mu            sync.RWMutex
	registrations []registration
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe registers a listener and returns its subscription handle.
func (d *Dispatcher) Subscribe(listener Listener) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	reg := registration{id: uuid.NewString(), listener: listener}
	d.registrations = append(d.registrations, reg)
	return Subscription{id: reg.id}
}

// Unsubscribe removes a previously registered listener. Unknown handles are
// ignored.
func (d *Dispatcher) Unsubscribe(sub Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.registrations {
		if d.registrations[i].id == sub.id {
			d.registrations = append(d.registrations[:i], d.registrations[i+1:]...)
			return
		}
	}
}

// Publish delivers the event to every listener in registration order.
func (d *Dispatcher) Publish(event Event) {
	d.mu.RLock()
	regs := make([]registration, len(d.registrations))
	copy(regs, d.registrations)
	d.mu.RUnlock()

	for _, reg := range regs {
		d.deliver(reg, event)
	}
}

func (d *Dispatcher) deliver(reg registration, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Dispatcher] listener %s panicked on event %s: %v", reg.id, event.Kind, r)
		}
	}()
	reg.listener(event)
}

// Len returns the number of registered listeners.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.registrations)
}
