package sdk

import "go.uber.org/zap"

// Context is what an adapter gets when it starts tracking.
type Context interface {
	Log() *zap.Logger
	Bus() Bus
	// Filter is applied to every subscription the adapter makes.
	Filter() Filter
}
