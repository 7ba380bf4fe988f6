// Package httpapi exposes the server's public HTTP surface: ceremony
// endpoints, vault key material, blob URL brokering, health and metrics.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dvoronkov/lockbox/internal/logging"
	"github.com/dvoronkov/lockbox/internal/server/blob"
	"github.com/dvoronkov/lockbox/internal/server/session"
	"github.com/dvoronkov/lockbox/internal/server/vault"
	"github.com/dvoronkov/lockbox/internal/server/webauthn"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Params collects the dependencies of the HTTP server.
type Params struct {
	Address        string
	Logger         logging.Logger
	Authority      *webauthn.Service
	Sessions       *session.Issuer
	Vault          *vault.Service
	Blobs          *blob.Service
	Registry       *prometheus.Registry
	RateLimitRPS   float64
	RateLimitBurst int
}

type Server struct {
	address   string
	log       logging.Logger
	authority *webauthn.Service
	sessions  *session.Issuer
	vault     *vault.Service
	blobs     *blob.Service
	registry  *prometheus.Registry
	limiter   *ipLimiter
	router    chi.Router
}

func NewServer(p Params) *Server {
	if p.RateLimitRPS <= 0 {
		p.RateLimitRPS = 5
	}
	if p.RateLimitBurst <= 0 {
		p.RateLimitBurst = 10
	}

	s := &Server{
		address:   p.Address,
		log:       p.Logger.With("module", "http_server"),
		authority: p.Authority,
		sessions:  p.Sessions,
		vault:     p.Vault,
		blobs:     p.Blobs,
		registry:  p.Registry,
		limiter:   newIPLimiter(p.RateLimitRPS, p.RateLimitBurst),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	if s.registry != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimitMiddleware)
			r.Post("/register/begin", s.handleBeginRegistration)
			r.Post("/register/finish", s.handleFinishRegistration)
			r.Post("/login/begin", s.handleBeginAuthentication)
			r.Post("/login/finish", s.handleFinishAuthentication)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/credentials", s.handleListCredentials)
			r.Get("/vault/keymaterial", s.handleGetKeyMaterial)
			r.Post("/vault/keymaterial", s.handlePutKeyMaterial)
			r.Put("/vault/keymaterial", s.handlePutKeyMaterial)
			r.Post("/blobs/upload-url", s.handleUploadURL)
			r.Get("/blobs/download-url", s.handleDownloadURL)
		})
	})

	return r
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go s.limiter.run(ctx)

	go func() {
		<-ctx.Done()
		s.log.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info(ctx, "Starting HTTP server", "address", s.address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
