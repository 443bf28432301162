package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/EchoPBX/trackbus-gateway/internal/config"
	"github.com/EchoPBX/trackbus-gateway/internal/events"
	"github.com/EchoPBX/trackbus-gateway/internal/httpserver"
	"github.com/EchoPBX/trackbus-gateway/internal/logging"
	"github.com/EchoPBX/trackbus-gateway/internal/providers"
	"github.com/EchoPBX/trackbus-gateway/internal/relay"
	"github.com/EchoPBX/trackbus-gateway/internal/reloader"
	"go.uber.org/zap"
)

func main() {
	cfgPath := os.Getenv("TRACKBUS_CONFIG")
	if cfgPath == "" {
		cfgPath = config.DefaultPath
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	logger, level := logging.New(logging.Cfg{
		Level: cfg.Logging.Level,
		JSON:  cfg.Logging.JSON,
	})
	defer logger.Sync()

	fmt.Println(`
 _                  _    _
| |_ _ __ __ _  ___| | _| |__  _   _ ___
| __| '__/ _' |/ __| |/ / '_ \| | | / __|
| |_| | | (_| | (__|   <| |_) | |_| \__ \
 \__|_|  \__,_|\___|_|\_\_.__/ \__,_|___/

trackbus gateway — analytics event bus
--------------------------------------
Config:  ` + cfgPath + `
`)

	bus := events.NewBus(logger.Named("bus"))

	var env providers.Env
	var hub *relay.Hub
	if cfg.Analytics.Relay.Enabled {
		hub = relay.NewHub(logger.Named("relay"), cfg.Analytics.Relay.Queue)
		env = providers.Env{Sender: hub, Discoverer: hub}
	}

	var relayHandler http.Handler
	if hub != nil {
		relayHandler = hub
	}
	srv, err := httpserver.New(cfg, logger, bus, relayHandler)
	if err != nil {
		logger.Fatal("http server", zap.Error(err))
	}

	mgr := providers.NewManager(logger, bus, env, providers.Builtin())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// hot reload: developer mode, excluded paths, log level, new providers
	reloader.OnSIGHUP(ctx, func() {
		newCfg, err := config.Load(cfgPath)
		if err != nil {
			logger.Warn("config reload failed", zap.Error(err))
			return
		}
		logging.SetLevel(level, newCfg.Logging.Level)
		srv.Reload(newCfg)
		if err := mgr.Start(newCfg.Analytics); err != nil {
			logger.Warn("provider reload failed", zap.Error(err))
		}
		logger.Info("reloaded config",
			zap.Bool("developer_mode", mgr.DeveloperMode()),
			zap.Strings("providers", mgr.Names()))
	})

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Bind, cfg.HTTP.Port)
	httpSrv := &http.Server{
		Addr:    addr,
		Handler: srv.Router(),
	}

	go func() {
		logger.Info("listening", zap.String("addr", addr))
		if cfg.HTTP.TLS.Enabled {
			if err := httpSrv.ListenAndServeTLS(cfg.HTTP.TLS.Cert, cfg.HTTP.TLS.Key); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("http tls", zap.Error(err))
			}
		} else {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("http", zap.Error(err))
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Providers read discovered trackers once, at construction; give relay
	// clients a chance to announce theirs before that happens.
	wait := time.NewTimer(discoveryWait(cfg))
	select {
	case <-stop:
		wait.Stop()
	case <-wait.C:
		if err := mgr.Start(cfg.Analytics); err != nil {
			logger.Warn("some providers did not start", zap.Error(err))
		}
		logger.Info("providers running", zap.Strings("providers", mgr.Names()))
		<-stop
	}

	logger.Info("shutting down...")
	cancel()

	ctxTimeout, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = httpSrv.Shutdown(ctxTimeout)
	if hub != nil {
		hub.Close()
	}
	mgr.Shutdown()
	bus.Close()
	logger.Info("bye")
}

func discoveryWait(cfg *config.Config) time.Duration {
	if !cfg.Analytics.Relay.Enabled || cfg.Analytics.Relay.DiscoveryWait < 0 {
		return 0
	}
	return cfg.Analytics.Relay.DiscoveryWait
}
