package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/atinyakov/GophBank/internal/middleware"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers groups the resource handlers mounted under /api.
type Handlers struct {
	Auth      *AuthHandler
	Banks     *BankHandler
	Roles     *RoleHandler
	Passwords *PasswordHandler
}

// RouterOptions holds the cross-cutting dependencies of the router.
type RouterOptions struct {
	// Authenticator resolves bearer tokens on protected routes.
	Authenticator middleware.Authenticator
	// Store is pinged by /healthz.
	Store Pinger
	// Registry receives the HTTP collectors and is served on /metrics.
	Registry *prometheus.Registry
	// AuthRateLimit is the number of register and login requests allowed
	// per client IP per minute. Zero disables the limit.
	AuthRateLimit int
	Logger        *zap.Logger
}

// NewRouter constructs the HTTP handler that serves the GophBank API.
//
// Routes:
//
//	POST   /api/auth/register, /api/auth/login        (public, rate limited)
//	GET    /api/auth/me, PUT /api/auth/me, PUT /api/auth/me/password
//	/api/banks      bank lifecycle, invites, clear and restore-cleared
//	/api/roles      role registry and role assignment
//	/api/passwords  password entries and the trash
//	GET    /healthz, /metrics
//
// Every /api route except register and login requires a bearer token.
func NewRouter(h Handlers, opts RouterOptions) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.WithRequestLogging(log))
	if opts.Registry != nil {
		r.Use(middleware.NewMetrics(opts.Registry).Instrument)
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}
	r.Get("/healthz", health(opts.Store))

	r.Route("/api", func(r chi.Router) {
		r.Use(chiMiddleware.AllowContentType("application/json"))

		r.Group(func(r chi.Router) {
			if opts.AuthRateLimit > 0 {
				r.Use(httprate.Limit(opts.AuthRateLimit, time.Minute,
					httprate.WithKeyFuncs(httprate.KeyByIP),
					httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
						write(w, http.StatusTooManyRequests, Response{Message: "Too many requests, please try again later"})
					}),
				))
			}
			r.Post("/auth/register", h.Auth.Register)
			r.Post("/auth/login", h.Auth.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(opts.Authenticator, log))

			r.Get("/auth/me", h.Auth.Me)
			r.Put("/auth/me", h.Auth.UpdateProfile)
			r.Put("/auth/me/password", h.Auth.ChangePassword)

			r.Route("/banks", func(r chi.Router) {
				r.Post("/", h.Banks.Create)
				r.Get("/", h.Banks.List)
				r.Route("/{bankID}", func(r chi.Router) {
					r.Get("/", h.Banks.Get)
					r.Put("/", h.Banks.Update)
					r.Delete("/", h.Banks.Delete)
					r.Post("/restore", h.Banks.Restore)
					r.Post("/invite", h.Banks.Invite)
					r.Delete("/passwords", h.Banks.ClearPasswords)
					r.Post("/passwords/restore", h.Banks.RestoreClearedPasswords)
				})
			})

			r.Route("/roles/{bankID}", func(r chi.Router) {
				r.Get("/", h.Roles.List)
				r.Post("/", h.Roles.Create)
				r.Post("/assign", h.Banks.AssignRole)
				r.Put("/{roleID}", h.Roles.Update)
				r.Delete("/{roleID}", h.Roles.Delete)
			})

			r.Route("/passwords/{bankID}", func(r chi.Router) {
				r.Post("/", h.Passwords.Create)
				r.Get("/", h.Passwords.List)
				r.Get("/trash", h.Passwords.ListDeleted)
				r.Get("/category/{category}", h.Passwords.ListByCategory)
				r.Put("/{passwordID}", h.Passwords.Update)
				r.Delete("/{passwordID}", h.Passwords.Delete)
				r.Post("/{passwordID}/restore", h.Passwords.Restore)
			})
		})
	})

	return r
}

func health(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				write(w, http.StatusServiceUnavailable, Response{Message: "store unavailable"})
				return
			}
		}
		write(w, http.StatusOK, Response{Message: "ok"})
	}
}
