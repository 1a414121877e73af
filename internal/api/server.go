// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api exposes the authentication orchestrator over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/model"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/ports"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/statestore"
	"github.com/ManuGH/clientauth/internal/domain/clientauth/store"
	"github.com/ManuGH/clientauth/internal/health"
	"github.com/ManuGH/clientauth/internal/log"
)

// Authenticator is the orchestrator surface the API drives.
type Authenticator interface {
	Authenticate(ctx context.Context, id model.AccountID, creds model.Credentials) (model.Session, error)
	Cancel(id model.AccountID) bool
	ActiveFlows() []model.FlowSnapshot
	CurrentClientState() model.ClientState
	SubscribeToClientState(l statestore.Listener) func()
	ForceClose(ctx context.Context) error
}

// StateRefresher performs an explicit client state query.
type StateRefresher interface {
	Refresh(ctx context.Context) (model.ClientState, error)
}

// NotificationSink accepts client state pushes delivered over HTTP.
type NotificationSink interface {
	Push(ctx context.Context, n ports.Notification) error
}

// Deps are the collaborators behind the routes. Auth is required.
type Deps struct {
	Auth          Authenticator
	Records       store.FlowRecordStore // nil disables history
	Refresher     StateRefresher        // nil disables refresh
	Notifications NotificationSink      // nil keeps the webhook unmounted
	Health        *health.Manager       // nil uses a manager without checks
}

type Config struct {
	Version         string
	LoginRateLimit  int
	LoginRateWindow time.Duration
}

type Server struct {
	cfg      Config
	deps     Deps
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	handler  http.Handler
}

func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Auth == nil {
		return nil, errors.New("api: authenticator is required")
	}
	if cfg.LoginRateLimit <= 0 {
		cfg.LoginRateLimit = 10
	}
	if cfg.LoginRateWindow <= 0 {
		cfg.LoginRateWindow = time.Minute
	}

	if deps.Health == nil {
		deps.Health = health.NewManager(cfg.Version)
	}
	deps.Health.RegisterDetail("clientState", func() any { return deps.Auth.CurrentClientState() })
	deps.Health.RegisterDetail("activeFlows", func() any { return len(deps.Auth.ActiveFlows()) })

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: log.WithComponent("api"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.handler = otelhttp.NewHandler(s.routes(), "clientauth.api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestID)
	r.Use(observe)

	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/accounts/{accountID}", func(r chi.Router) {
			r.With(loginRateLimit(s.cfg.LoginRateLimit, s.cfg.LoginRateWindow)).Post("/login", s.handleLogin)
			r.Delete("/login", s.handleCancel)
			r.Get("/flows", s.handleFlowHistory)
		})
		r.Get("/flows", s.handleActiveFlows)

		r.Route("/client", func(r chi.Router) {
			r.Get("/state", s.handleClientState)
			r.Get("/state/stream", s.handleStateStream)
			r.Post("/state/refresh", s.handleRefresh)
			r.Post("/force-close", s.handleForceClose)
			if s.deps.Notifications != nil {
				r.Post("/notifications", s.handleNotification)
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "not-found", "Not Found", "NOT_FOUND", "", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusMethodNotAllowed, "method-not-allowed", "Method Not Allowed", "METHOD_NOT_ALLOWED", "", nil)
	})
	return r
}
