package router

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baechuer/pension-service/internal/domain"
	"github.com/baechuer/pension-service/internal/transport/http/middleware"
	"github.com/baechuer/pension-service/internal/transport/http/response"
)

type HealthHandler interface {
	Health(w http.ResponseWriter, r *http.Request)
}

type SignupHandler interface {
	Signup(w http.ResponseWriter, r *http.Request)
}

type AuthHandler interface {
	Login(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
	Me(w http.ResponseWriter, r *http.Request)
}

type Deps struct {
	Health HealthHandler
	Signup SignupHandler
	Auth   AuthHandler

	AuthMW func(http.Handler) http.Handler

	// Optional per-route limits; nil means unlimited.
	SignupRateLimit func(http.Handler) http.Handler
	LoginRateLimit  func(http.Handler) http.Handler

	// Metrics serves /metrics; defaults to the Prometheus default registry.
	Metrics http.Handler
}

func passthrough(next http.Handler) http.Handler { return next }

func New(deps Deps) (http.Handler, error) {
	if deps.Health == nil {
		return nil, fmt.Errorf("nil Health handler")
	}
	if deps.Signup == nil {
		return nil, fmt.Errorf("nil Signup handler")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("nil Auth handler")
	}
	if deps.AuthMW == nil {
		return nil, fmt.Errorf("nil Auth middleware")
	}
	if deps.SignupRateLimit == nil {
		deps.SignupRateLimit = passthrough
	}
	if deps.LoginRateLimit == nil {
		deps.LoginRateLimit = passthrough
	}
	if deps.Metrics == nil {
		deps.Metrics = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.WriteError(w, r, domain.ErrRouteNotFound())
	})

	r.Get("/health", deps.Health.Health)
	r.Method(http.MethodGet, "/metrics", deps.Metrics)

	r.With(deps.SignupRateLimit).Post("/signup", deps.Signup.Signup)
	r.With(deps.LoginRateLimit).Post("/login", deps.Auth.Login)
	r.Post("/logout", deps.Auth.Logout)
	r.With(deps.AuthMW).Get("/me", deps.Auth.Me)

	return r, nil
}
