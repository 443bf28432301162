// Package settings builds the immutable per-provider configuration an
// adapter consults for every event.
package settings

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"
)

// KeyTrackingIDs is the recognized key holding the ordered tracking IDs.
const KeyTrackingIDs = "trackingIds"

var ErrTrackingIDs = errors.New("settings: trackingIds must be a list of strings")

// Discoverer yields the tracking IDs the backend already knows about.
type Discoverer interface {
	Trackers() []string
}

// Discover returns the defaults found through d. A nil discoverer, or
// one that knows nothing, gives an empty ID list.
func Discover(d Discoverer) map[string]any {
	ids := []string{}
	if d != nil {
		for _, id := range d.Trackers() {
			if id != "" {
				ids = append(ids, id)
			}
		}
	}
	return map[string]any{KeyTrackingIDs: ids}
}

// Merge overlays overrides onto defaults one level deep. Keys present in
// overrides win. Neither input is modified.
func Merge(defaults, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(defaults)+len(overrides))
	maps.Copy(out, defaults)
	maps.Copy(out, overrides)
	return out
}

// Settings is a merged snapshot. The zero value has no IDs and no options.
type Settings struct {
	trackingIDs []string
	options     map[string]any
}

// New merges overrides onto defaults and freezes the result.
func New(defaults, overrides map[string]any) (Settings, error) {
	merged := Merge(defaults, overrides)

	ids, err := toStrings(merged[KeyTrackingIDs])
	if err != nil {
		return Settings{}, err
	}
	delete(merged, KeyTrackingIDs)
	return Settings{trackingIDs: ids, options: merged}, nil
}

func (s Settings) TrackingIDs() []string {
	return slices.Clone(s.trackingIDs)
}

// Options returns a copy of every key other than trackingIds.
func (s Settings) Options() map[string]any {
	return maps.Clone(s.options)
}

func (s Settings) Option(key string) (any, bool) {
	v, ok := s.options[key]
	return v, ok
}

// Decode fills out from the provider options, using yaml field tags.
func (s Settings) Decode(out any) error {
	b, err := yaml.Marshal(s.options)
	if err != nil {
		return fmt.Errorf("settings: encode options: %w", err)
	}
	if err := yaml.Unmarshal(b, out); err != nil {
		return fmt.Errorf("settings: decode options: %w", err)
	}
	return nil
}

func toStrings(v any) ([]string, error) {
	switch ids := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{ids}, nil
	case []string:
		return slices.Clone(ids), nil
	case []any:
		out := make([]string, 0, len(ids))
		for _, id := range ids {
			s, ok := id.(string)
			if !ok {
				return nil, fmt.Errorf("%w: got element %T", ErrTrackingIDs, id)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrTrackingIDs, v)
	}
}
