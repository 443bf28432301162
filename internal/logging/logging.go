package logging

import "go.uber.org/zap"

type Cfg struct {
	Level string
	JSON  bool
}

// New builds the gateway logger. The returned level can be changed at
// runtime, e.g. on config reload.
func New(c Cfg) (*zap.Logger, zap.AtomicLevel) {
	cfg := zap.NewProductionConfig()
	if !c.JSON {
		cfg.Encoding = "console"
	}
	SetLevel(cfg.Level, c.Level)
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop(), cfg.Level
	}
	return l, cfg.Level
}

// SetLevel applies a textual level; unknown levels leave lvl unchanged.
func SetLevel(lvl zap.AtomicLevel, level string) bool {
	if level == "" {
		return false
	}
	return lvl.UnmarshalText([]byte(level)) == nil
}
