package httpserver

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/EchoPBX/trackbus-gateway/internal/config"
	"github.com/EchoPBX/trackbus-gateway/internal/jwt"
	"github.com/EchoPBX/trackbus-gateway/pkg/sdk"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	maxBody  = 64 << 10
	tapQueue = 64

	tokenParam = "access_token"
)

type Server struct {
	cfg   *config.Config
	log   *zap.Logger
	bus   sdk.Bus
	relay http.Handler
	r     *chi.Mux
	jwt   *jwt.Validator
}

// New builds the collector. relay may be nil when relaying is disabled.
func New(cfg *config.Config, log *zap.Logger, bus sdk.Bus, relay http.Handler) (*Server, error) {
	v, err := jwt.NewValidator(cfg.Auth.JWTPublicKeys, cfg.Auth.Issuer, cfg.Auth.Audience)
	if err != nil {
		return nil, err
	}
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	s := &Server{cfg: cfg, log: log, bus: bus, relay: relay, r: r, jwt: v}
	s.routes()
	return s, nil
}

func (s *Server) Router() http.Handler      { return s.r }
func (s *Server) Reload(cfg *config.Config) { s.cfg = cfg }

func (s *Server) routes() {
	s.r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.r.Route("/v1/track", func(r chi.Router) {
		r.Post("/page", s.auth(track(s, func(req pageRequest) sdk.Event {
			return sdk.PageView{Path: req.Path}
		})))
		r.Post("/event", s.auth(track(s, func(req sdk.Interaction) sdk.Event {
			return req
		})))
		r.Post("/exception", s.auth(track(s, func(req exceptionRequest) sdk.Event {
			return req.event()
		})))
		r.Post("/timing", s.auth(track(s, func(req sdk.Timing) sdk.Event {
			return req
		})))
	})

	if s.relay != nil {
		s.r.Get("/v1/relay", s.auth(s.relay.ServeHTTP))
	}
	s.r.Get("/v1/events", s.auth(s.tap))
}

type pageRequest struct {
	Path string `json:"path"`
}

type exceptionRequest struct {
	Description string         `json:"description"`
	Fatal       *bool          `json:"fatal"`
	Stack       string         `json:"stack"`
	Custom      map[string]any `json:"custom"`
}

func (r exceptionRequest) event() sdk.Exception {
	ev := sdk.Exception{Description: r.Description, Fatal: r.Fatal, ProviderCustom: r.Custom}
	if r.Stack != "" {
		ev.SourceEvent = errors.New(r.Stack)
	}
	return ev
}

// track decodes a JSON body into T and publishes the resulting event.
func track[T any](s *Server, toEvent func(T) sdk.Event) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
		if err != nil {
			http.Error(w, "read error", http.StatusBadRequest)
			return
		}
		var req T
		if err := json.Unmarshal(body, &req); err != nil {
			s.log.Debug("bad track request", zap.String("path", r.URL.Path), zap.Error(err))
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		s.bus.Publish(toEvent(req))
		w.WriteHeader(http.StatusAccepted)
	}
}

type tapMessage struct {
	Kind  sdk.Kind  `json:"kind"`
	Event sdk.Event `json:"event"`
}

// tap streams every event on the bus to a websocket client.
func (s *Server) tap(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	ch := make(chan sdk.Event, tapQueue)
	done := make(chan struct{})
	var subs []sdk.Subscription
	for _, kind := range sdk.Kinds() {
		sub, err := s.bus.Subscribe(kind, nil, func(ev sdk.Event) {
			select {
			case ch <- ev:
			case <-done:
			default:
			}
		})
		if err != nil {
			s.log.Warn("tap subscribe failed", zap.Error(err))
			continue
		}
		subs = append(subs, sub)
	}

	// writer: pushes events to the client
	go func() {
		defer func() {
			for _, sub := range subs {
				sub.Cancel()
			}
			_ = conn.Close()
		}()
		for {
			select {
			case <-done:
				return
			case ev := <-ch:
				b, err := json.Marshal(tapMessage{Kind: ev.Kind(), Event: ev})
				if err != nil {
					s.log.Warn("tap encode failed", zap.Error(err))
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					s.log.Debug("ws write error", zap.Error(err))
					return
				}
			}
		}
	}()

	// minimal reader to notice the client going away
	defer close(done)
	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// auth requires a valid bearer token when verification keys are configured.
// Browsers cannot set headers on a websocket handshake, so the token may
// also come as the access_token query parameter.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.jwt.Enabled() {
			next(w, r)
			return
		}
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if tok == "" {
			tok = r.URL.Query().Get(tokenParam)
		}
		if tok == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		if _, err := s.jwt.Verify(tok); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
