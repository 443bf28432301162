package providers

import (
	"github.com/EchoPBX/trackbus-gateway/pkg/sdk"
	"go.uber.org/zap"
)

type providerContext struct {
	log    *zap.Logger
	bus    sdk.Bus
	filter sdk.Filter
}

func newProviderContext(log *zap.Logger, bus sdk.Bus, filter sdk.Filter) sdk.Context {
	return &providerContext{log: log, bus: bus, filter: filter}
}

func (c *providerContext) Log() *zap.Logger   { return c.log }
func (c *providerContext) Bus() sdk.Bus       { return c.bus }
func (c *providerContext) Filter() sdk.Filter { return c.filter }
