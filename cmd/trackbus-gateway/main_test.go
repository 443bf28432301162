package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EchoPBX/trackbus-gateway/internal/config"
)

func Test_DiscoveryWait(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want time.Duration
	}{
		{name: "relay_disabled", yaml: "analytics:\n  relay:\n    discovery_wait: 5s\n", want: 0},
		{name: "relay_enabled", yaml: "analytics:\n  relay:\n    enabled: true\n    discovery_wait: 5s\n", want: 5 * time.Second},
		{name: "negative", yaml: "analytics:\n  relay:\n    enabled: true\n    discovery_wait: -1s\n", want: 0},
		{name: "unset", yaml: "analytics:\n  relay:\n    enabled: true\n", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Parse([]byte(tt.yaml))
			require.NoError(t, err)
			assert.Equal(t, tt.want, discoveryWait(cfg))
		})
	}
}
