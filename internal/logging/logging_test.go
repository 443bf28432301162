package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/EchoPBX/trackbus-gateway/internal/logging"
)

func Test_New_Level(t *testing.T) {
	l, lvl := logging.New(logging.Cfg{Level: "debug"})
	assert.NotNil(t, l)
	assert.Equal(t, zapcore.DebugLevel, lvl.Level())

	assert.True(t, logging.SetLevel(lvl, "warn"))
	assert.Equal(t, zapcore.WarnLevel, lvl.Level())

	assert.False(t, logging.SetLevel(lvl, "shouting"))
	assert.False(t, logging.SetLevel(lvl, ""))
	assert.Equal(t, zapcore.WarnLevel, lvl.Level())
}

func Test_New_DefaultsToInfo(t *testing.T) {
	_, lvl := logging.New(logging.Cfg{JSON: true})
	assert.Equal(t, zapcore.InfoLevel, lvl.Level())
}
