package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "/etc/trackbus/config.yaml"

type Config struct {
	HTTP struct {
		Bind string `yaml:"bind"`
		Port int    `yaml:"port"`
		TLS  struct {
			Enabled bool   `yaml:"enabled"`
			Cert    string `yaml:"cert"`
			Key     string `yaml:"key"`
		} `yaml:"tls"`
	} `yaml:"http"`
	Auth struct {
		JWTPublicKeys []string `yaml:"jwt_public_keys"` // PEM certificate paths
		Issuer        string   `yaml:"issuer"`
		Audience      string   `yaml:"audience"`
	} `yaml:"auth"`
	Logging struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"logging"`
	Analytics Analytics `yaml:"analytics"`
}

type Analytics struct {
	DeveloperMode bool     `yaml:"developer_mode"`
	ExcludePaths  []string `yaml:"exclude_paths"`
	Relay         struct {
		Enabled bool `yaml:"enabled"`
		Queue   int  `yaml:"queue"`
		// DiscoveryWait delays provider start after the server begins
		// listening so relay clients can announce their trackers first.
		// Trackers announced later are only seen by providers started on
		// a later reload.
		DiscoveryWait time.Duration `yaml:"discovery_wait"`
	} `yaml:"relay"`
	// Providers maps a provider name to its raw settings, passed through
	// untouched to the provider.
	Providers map[string]map[string]any `yaml:"providers"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if c.HTTP.Bind == "" {
		c.HTTP.Bind = "0.0.0.0"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Analytics.Relay.Queue == 0 {
		c.Analytics.Relay.Queue = 64
	}
	if c.Analytics.Providers == nil {
		c.Analytics.Providers = map[string]map[string]any{}
	}
	return &c, nil
}
