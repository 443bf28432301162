package sdk

// Command is one call into a backend's native API, for example
// gtag('event', 'timing_complete', {...}).
type Command struct {
	Name   string         `json:"command"`
	Target string         `json:"target"`
	Params map[string]any `json:"params,omitempty"`
}

// Sender is the external send primitive. A nil Sender means the backend
// is not loaded and every send is skipped.
type Sender interface {
	Send(cmd Command)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(cmd Command)

func (f SenderFunc) Send(cmd Command) { f(cmd) }

// Provider is the per-event-kind transformation contract every analytics
// backend implements. Methods never fail; malformed input is reported on
// the adapter's logger.
type Provider interface {
	PageTrack(path string)
	EventTrack(action string, props *InteractionProperties)
	ExceptionTrack(props *Exception)
	UserTimings(view *TimingView)
}

// Adapter is a Provider that wires itself onto the bus once.
type Adapter interface {
	Provider
	StartTracking(ctx Context) error
	Stop() error
}
