package reloader

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// OnSIGHUP runs fn for every SIGHUP until ctx is done.
func OnSIGHUP(ctx context.Context, fn func()) {
	On(ctx, fn, syscall.SIGHUP)
}

// On runs fn each time one of sigs arrives, one call at a time.
func On(ctx context.Context, fn func(), sigs ...os.Signal) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				fn()
			}
		}
	}()
}
