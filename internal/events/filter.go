package events

import (
	"strings"

	"github.com/EchoPBX/trackbus-gateway/pkg/sdk"
)

// All combines filters with AND, stopping at the first drop or error.
// Nil filters are skipped.
func All(filters ...sdk.Filter) sdk.Filter {
	return func(ev sdk.Event) (bool, error) {
		for _, f := range filters {
			if f == nil {
				continue
			}
			keep, err := f(ev)
			if err != nil || !keep {
				return false, err
			}
		}
		return true, nil
	}
}

// Not negates a filter. Errors pass through unchanged.
func Not(f sdk.Filter) sdk.Filter {
	return func(ev sdk.Event) (bool, error) {
		keep, err := f(ev)
		if err != nil {
			return false, err
		}
		return !keep, nil
	}
}

// Pass keeps every event.
func Pass() sdk.Filter {
	return func(sdk.Event) (bool, error) { return true, nil }
}

// DeveloperMode drops every event while enabled reports true.
func DeveloperMode(enabled func() bool) sdk.Filter {
	return func(sdk.Event) (bool, error) {
		return !enabled(), nil
	}
}

// ExcludePaths drops page views whose path starts with one of prefixes.
// Other kinds pass.
func ExcludePaths(prefixes ...string) sdk.Filter {
	return func(ev sdk.Event) (bool, error) {
		var path string
		switch pv := ev.(type) {
		case sdk.PageView:
			path = pv.Path
		case *sdk.PageView:
			if pv == nil {
				return true, nil
			}
			path = pv.Path
		default:
			return true, nil
		}
		for _, p := range prefixes {
			if p != "" && strings.HasPrefix(path, p) {
				return false, nil
			}
		}
		return true, nil
	}
}
