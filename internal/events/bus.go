package events

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/EchoPBX/trackbus-gateway/pkg/sdk"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrBusClosed   = errors.New("events: bus closed")
	ErrNilHandler  = errors.New("events: nil handler")
	ErrUnknownKind = errors.New("events: unknown event kind")
)

// Bus fans events out to per-kind subscriptions. Delivery is synchronous
// on the publishing goroutine, in registration order. A handler must not
// publish onto its own kind.
type Bus struct {
	log    *zap.Logger
	mu     sync.RWMutex
	subs   map[sdk.Kind][]*subscription
	closed bool
}

func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		log:  log,
		subs: make(map[sdk.Kind][]*subscription),
	}
}

func (b *Bus) Subscribe(kind sdk.Kind, filter sdk.Filter, handler sdk.Handler) (sdk.Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if !knownKind(kind) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	s := &subscription{
		id:      uuid.NewString(),
		kind:    kind,
		filter:  filter,
		handler: handler,
		bus:     b,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	b.subs[kind] = append(b.subs[kind], s)
	return s, nil
}

// Publish delivers ev to every live subscription of its kind. Events of
// a kind nobody listens to are dropped silently.
func (b *Bus) Publish(ev sdk.Event) {
	kind, ok := b.kindOf(ev)
	if !ok {
		return
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	// Snapshot so handlers may subscribe or cancel while we deliver.
	subs := append([]*subscription(nil), b.subs[kind]...)
	b.mu.RUnlock()

	for _, s := range subs {
		s.deliver(ev)
	}
}

// kindOf reads the event's kind. A nil event, or a typed nil pointer
// whose Kind dereferences it, is dropped with a diagnostic.
func (b *Bus) kindOf(ev sdk.Event) (kind sdk.Kind, ok bool) {
	if ev == nil {
		return "", false
	}
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn("invalid event, dropping",
				zap.String("type", fmt.Sprintf("%T", ev)),
				zap.Any("panic", r))
			kind, ok = "", false
		}
	}()
	return ev.Kind(), true
}

// Len reports the number of live subscriptions for kind.
func (b *Bus) Len(kind sdk.Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}

// Close cancels every subscription. Publishing afterwards is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	all := b.subs
	b.subs = make(map[sdk.Kind][]*subscription)
	b.closed = true
	b.mu.Unlock()

	for _, subs := range all {
		for _, s := range subs {
			s.cancelled.Store(true)
		}
	}
}

func (b *Bus) remove(s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[s.kind]
	for i, cur := range subs {
		if cur == s {
			b.subs[s.kind] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

func knownKind(k sdk.Kind) bool {
	for _, known := range sdk.Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

type subscription struct {
	id      string
	kind    sdk.Kind
	filter  sdk.Filter
	handler sdk.Handler
	bus     *Bus

	// mu keeps handler invocations of this subscription from overlapping.
	mu        sync.Mutex
	cancelled atomic.Bool
}

func (s *subscription) ID() string     { return s.id }
func (s *subscription) Kind() sdk.Kind { return s.kind }

func (s *subscription) Cancel() {
	if s.cancelled.Swap(true) {
		return
	}
	s.bus.remove(s)
}

func (s *subscription) deliver(ev sdk.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled.Load() {
		return
	}
	if !s.keep(ev) {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.bus.log.Error("handler panic",
				zap.String("subscription", s.id),
				zap.String("kind", string(s.kind)),
				zap.Any("panic", r))
		}
	}()
	s.handler(ev)
}

func (s *subscription) keep(ev sdk.Event) (ok bool) {
	if s.filter == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			s.bus.log.Error("filter panic, dropping event",
				zap.String("subscription", s.id),
				zap.String("kind", string(s.kind)),
				zap.Any("panic", r))
			ok = false
		}
	}()
	keep, err := s.filter(ev)
	if err != nil {
		s.bus.log.Warn("filter failed, dropping event",
			zap.String("subscription", s.id),
			zap.String("kind", string(s.kind)),
			zap.Error(err))
		return false
	}
	return keep
}
