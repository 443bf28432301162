package gst_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/EchoPBX/trackbus-gateway/internal/providers/gst"
	"github.com/EchoPBX/trackbus-gateway/pkg/sdk"
)

func Test_ConvertTimings(t *testing.T) {
	tests := []struct {
		name string
		in   sdk.Timing
		want sdk.TimingView
	}{
		{
			name: "all_fields",
			in:   sdk.Timing{TimingVar: "load", TimingValue: 42, TimingCategory: "assets", TimingLabel: "hero"},
			want: sdk.TimingView{Name: "load", Value: 42, Category: "assets", Label: "hero"},
		},
		{
			name: "optional_absent",
			in:   sdk.Timing{TimingVar: "paint", TimingValue: 1.5},
			want: sdk.TimingView{Name: "paint", Value: 1.5},
		},
		{
			name: "zero_value",
			in:   sdk.Timing{},
			want: sdk.TimingView{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gst.ConvertTimings(tt.in))
		})
	}
}
