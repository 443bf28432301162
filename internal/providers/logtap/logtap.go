// Package logtap is a provider that writes every event it receives to the
// gateway log. It is useful to see what reaches the backends.
package logtap

import (
	"fmt"
	"sync"

	"github.com/EchoPBX/trackbus-gateway/internal/settings"
	"github.com/EchoPBX/trackbus-gateway/pkg/sdk"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const Name = "logtap"

type options struct {
	Level string `yaml:"level"`
}

type Adapter struct {
	log   *zap.Logger
	level zapcore.Level

	mu   sync.Mutex
	subs []sdk.Subscription
}

func New(log *zap.Logger, overrides map[string]any) (*Adapter, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s, err := settings.New(nil, overrides)
	if err != nil {
		return nil, fmt.Errorf("logtap: %w", err)
	}
	opts := options{Level: "debug"}
	if err := s.Decode(&opts); err != nil {
		return nil, fmt.Errorf("logtap: %w", err)
	}
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		return nil, fmt.Errorf("logtap: %w", err)
	}
	return &Adapter{log: log, level: level}, nil
}

func (a *Adapter) StartTracking(ctx sdk.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, kind := range sdk.Kinds() {
		sub, err := ctx.Bus().Subscribe(kind, ctx.Filter(), a.handle)
		if err != nil {
			for _, s := range a.subs {
				s.Cancel()
			}
			a.subs = nil
			return fmt.Errorf("logtap: subscribe %s: %w", kind, err)
		}
		a.subs = append(a.subs, sub)
	}
	return nil
}

func (a *Adapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range a.subs {
		s.Cancel()
	}
	a.subs = nil
	return nil
}

func (a *Adapter) handle(ev sdk.Event) {
	switch e := ev.(type) {
	case sdk.PageView:
		a.PageTrack(e.Path)
	case *sdk.PageView:
		if e == nil {
			a.log.Warn("nil page view, dropping")
			return
		}
		a.PageTrack(e.Path)
	case sdk.Interaction:
		a.EventTrack(e.Action, e.Properties)
	case *sdk.Interaction:
		if e == nil {
			a.log.Warn("nil interaction, dropping")
			return
		}
		a.EventTrack(e.Action, e.Properties)
	case sdk.Exception:
		a.ExceptionTrack(&e)
	case *sdk.Exception:
		a.ExceptionTrack(e)
	case sdk.Timing:
		a.UserTimings(timingView(&e))
	case *sdk.Timing:
		a.UserTimings(timingView(e))
	default:
		a.log.Log(a.level, "event", zap.String("type", fmt.Sprintf("%T", ev)), zap.Any("payload", ev))
	}
}

func timingView(t *sdk.Timing) *sdk.TimingView {
	if t == nil {
		return nil
	}
	return &sdk.TimingView{Name: t.TimingVar, Value: t.TimingValue, Category: t.TimingCategory, Label: t.TimingLabel}
}

func (a *Adapter) PageTrack(path string) {
	a.log.Log(a.level, "page view", zap.String("path", path))
}

func (a *Adapter) EventTrack(action string, props *sdk.InteractionProperties) {
	fields := []zap.Field{zap.String("action", action)}
	if props != nil {
		fields = append(fields, zap.String("category", props.Category))
		if props.Label != nil {
			fields = append(fields, zap.String("label", *props.Label))
		}
		if props.Value != nil {
			fields = append(fields, zap.Float64("value", *props.Value))
		}
	}
	a.log.Log(a.level, "interaction", fields...)
}

func (a *Adapter) ExceptionTrack(props *sdk.Exception) {
	if props == nil {
		props = &sdk.Exception{}
	}
	fields := []zap.Field{zap.String("description", props.Description)}
	if props.Fatal != nil {
		fields = append(fields, zap.Bool("fatal", *props.Fatal))
	}
	if props.SourceEvent != nil {
		fields = append(fields, zap.NamedError("source", props.SourceEvent))
	}
	a.log.Log(a.level, "exception", fields...)
}

func (a *Adapter) UserTimings(view *sdk.TimingView) {
	if view == nil {
		a.log.Error(`user timings: "properties" parameter is required`)
		return
	}
	a.log.Log(a.level, "timing",
		zap.String("name", view.Name),
		zap.Float64("value", view.Value),
		zap.String("category", view.Category),
		zap.String("label", view.Label))
}
