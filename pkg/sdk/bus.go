package sdk

// Filter decides whether a subscription sees an event. Filters must not
// have side effects; an error drops the event.
type Filter func(ev Event) (bool, error)

// Handler receives the events that passed a subscription's filter.
type Handler func(ev Event)

// Subscription is the handle returned by Bus.Subscribe.
type Subscription interface {
	ID() string
	Kind() Kind
	// Cancel removes the subscription. It is safe to call more than once
	// and from inside the handler.
	Cancel()
}

// Bus is the public surface of the event bus.
type Bus interface {
	Publish(ev Event)
	Subscribe(kind Kind, filter Filter, handler Handler) (Subscription, error)
}
