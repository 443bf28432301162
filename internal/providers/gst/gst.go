// Package gst ships bus events to the Google global site tag (gtag.js).
//
// Page views become gtag('config', id, {page_path}) for every configured
// tracking ID; interactions, exceptions and timings become a single
// gtag('event', action, params) call.
package gst

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/EchoPBX/trackbus-gateway/internal/settings"
	"github.com/EchoPBX/trackbus-gateway/pkg/sdk"
	"go.uber.org/zap"
)

const (
	Name = "gst"

	defaultCategory = "interaction"
)

var ErrAlreadyTracking = errors.New("gst: already tracking")

type Adapter struct {
	settings settings.Settings
	send     sdk.Sender
	log      *zap.Logger

	mu   sync.Mutex
	subs []sdk.Subscription
}

// New builds the adapter. send may be nil when gtag is not loaded; every
// method then does nothing. Tracking IDs default to whatever discover
// reports and are replaced by overrides["trackingIds"] when present.
func New(log *zap.Logger, overrides map[string]any, send sdk.Sender, discover settings.Discoverer) (*Adapter, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s, err := settings.New(settings.Discover(discover), overrides)
	if err != nil {
		return nil, fmt.Errorf("gst: %w", err)
	}
	return &Adapter{settings: s, send: send, log: log}, nil
}

func (a *Adapter) Settings() settings.Settings { return a.settings }

// StartTracking subscribes the adapter to all four streams through the
// context's filter.
func (a *Adapter) StartTracking(ctx sdk.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.subs) > 0 {
		return ErrAlreadyTracking
	}

	for _, kind := range sdk.Kinds() {
		sub, err := ctx.Bus().Subscribe(kind, ctx.Filter(), a.handle)
		if err != nil {
			for _, s := range a.subs {
				s.Cancel()
			}
			a.subs = nil
			return fmt.Errorf("gst: subscribe %s: %w", kind, err)
		}
		a.subs = append(a.subs, sub)
	}
	a.log.Info("tracking started", zap.Strings("tracking_ids", a.settings.TrackingIDs()))
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
		v := ConvertTimings(e)
		a.UserTimings(&v)
	case *sdk.Timing:
		if e == nil {
			a.UserTimings(nil)
			return
		}
		v := ConvertTimings(*e)
		a.UserTimings(&v)
	default:
		a.log.Warn("unsupported event payload", zap.String("type", fmt.Sprintf("%T", ev)))
	}
}

// PageTrack sends a virtual page view to every tracking ID. Provider
// options from the settings ride along in the config payload.
func (a *Adapter) PageTrack(path string) {
	if a.send == nil {
		return
	}
	for _, id := range a.settings.TrackingIDs() {
		params := a.settings.Options()
		if params == nil {
			params = make(map[string]any, 1)
		}
		params["page_path"] = path
		a.send.Send(sdk.Command{Name: "config", Target: id, Params: params})
	}
}

// EventTrack sends an interaction. Category falls back to "interaction";
// ProviderCustom keys are applied last and win.
func (a *Adapter) EventTrack(action string, props *sdk.InteractionProperties) {
	if props == nil {
		props = &sdk.InteractionProperties{}
	}

	category := props.Category
	if category == "" {
		category = defaultCategory
	}
	params := map[string]any{"event_category": category}
	if props.Label != nil {
		params["event_label"] = *props.Label
	}
	if props.Value != nil {
		params["value"] = *props.Value
	}
	if props.NonInteraction != nil {
		params["non_interaction"] = *props.NonInteraction
	}
	maps.Copy(params, props.ProviderCustom)

	a.eventTrackInternal(action, params)
}

// ExceptionTrack sends an "exception" interaction. A missing fatal flag
// is sent as true.
func (a *Adapter) ExceptionTrack(props *sdk.Exception) {
	if props == nil {
		props = &sdk.Exception{}
	}

	fatal := true
	if props.Fatal == nil {
		a.log.Warn(`no "fatal" provided, sending with fatal=true`)
	} else {
		fatal = *props.Fatal
	}

	description := props.Description
	if props.SourceEvent != nil {
		description = fmt.Sprintf("%+v", props.SourceEvent)
	}

	custom := map[string]any{
		"description": description,
		"fatal":       fatal,
	}
	maps.Copy(custom, props.ProviderCustom)

	a.EventTrack("exception", &sdk.InteractionProperties{ProviderCustom: custom})
}

// UserTimings sends a timing_complete event. Name and value are
// required by gtag; a nil view is reported and dropped.
func (a *Adapter) UserTimings(view *sdk.TimingView) {
	if view == nil {
		a.log.Error(`user timings: "properties" parameter is required`)
		return
	}

	params := map[string]any{
		"name":  view.Name,
		"value": view.Value,
	}
	if view.Category != "" {
		params["event_category"] = view.Category
	}
	if view.Label != "" {
		params["event_label"] = view.Label
	}
	a.eventTrackInternal("timing_complete", params)
}

func (a *Adapter) eventTrackInternal(action string, params map[string]any) {
	if a.send == nil {
		return
	}
	a.send.Send(sdk.Command{Name: "event", Target: action, Params: params})
}
