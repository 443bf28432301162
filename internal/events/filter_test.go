package events_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/EchoPBX/trackbus-gateway/internal/events"
	"github.com/EchoPBX/trackbus-gateway/pkg/sdk"
)

func Test_Filters(t *testing.T) {
	drop := func(sdk.Event) (bool, error) { return false, nil }
	fail := func(sdk.Event) (bool, error) { return true, errors.New("nope") }
	devMode := false

	tests := []struct {
		name    string
		filter  sdk.Filter
		event   sdk.Event
		keep    bool
		wantErr bool
	}{
		{name: "pass", filter: events.Pass(), event: sdk.PageView{}, keep: true},
		{name: "all_empty", filter: events.All(), event: sdk.PageView{}, keep: true},
		{name: "all_skips_nil", filter: events.All(nil, events.Pass()), event: sdk.PageView{}, keep: true},
		{name: "all_drop", filter: events.All(events.Pass(), drop), event: sdk.PageView{}, keep: false},
		{name: "all_error", filter: events.All(fail, events.Pass()), event: sdk.PageView{}, keep: false, wantErr: true},
		{name: "not", filter: events.Not(drop), event: sdk.PageView{}, keep: true},
		{name: "not_error", filter: events.Not(fail), event: sdk.PageView{}, keep: false, wantErr: true},
		{name: "developer_mode_off", filter: events.DeveloperMode(func() bool { return devMode }), event: sdk.Timing{}, keep: true},
		{name: "exclude_match", filter: events.ExcludePaths("/healthz"), event: sdk.PageView{Path: "/healthz/live"}, keep: false},
		{name: "exclude_miss", filter: events.ExcludePaths("/healthz", ""), event: sdk.PageView{Path: "/home"}, keep: true},
		{name: "exclude_pointer_match", filter: events.ExcludePaths("/healthz"), event: &sdk.PageView{Path: "/healthz"}, keep: false},
		{name: "exclude_pointer_miss", filter: events.ExcludePaths("/healthz"), event: &sdk.PageView{Path: "/home"}, keep: true},
		{name: "exclude_nil_pointer", filter: events.ExcludePaths("/"), event: (*sdk.PageView)(nil), keep: true},
		{name: "exclude_other_kind", filter: events.ExcludePaths("/"), event: sdk.Interaction{Action: "x"}, keep: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keep, err := tt.filter(tt.event)
			assert.Equal(t, tt.keep, keep)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func Test_DeveloperMode_TracksPredicate(t *testing.T) {
	enabled := true
	f := events.DeveloperMode(func() bool { return enabled })

	keep, _ := f(sdk.PageView{})
	assert.False(t, keep)

	enabled = false
	keep, _ = f(sdk.PageView{})
	assert.True(t, keep)
}
