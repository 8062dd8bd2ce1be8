// Package server exposes the assist pipeline over HTTP.
//
// Routes live under the configured API prefix (default /api):
//
//	POST {prefix}/onboarding               create a profile
//	GET  {prefix}/onboarding/:profileId    read a profile back
//	POST {prefix}/assist                   simplify a transcript
//	POST {prefix}/assist/context           answer a follow-up question
//	POST {prefix}/assist/turn              simplify and diagram in one call
//	POST {prefix}/mermaid                  diagram a simplification
//
// /healthz, /readyz and /metrics are served at the root.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/aurasync/internal/assist"
	"github.com/MrWong99/aurasync/internal/config"
	"github.com/MrWong99/aurasync/internal/health"
	"github.com/MrWong99/aurasync/internal/observe"
	"github.com/MrWong99/aurasync/internal/profile"
	"github.com/MrWong99/aurasync/pkg/types"
)

const (
	// maxBodyBytes bounds request bodies. Transcripts of long lectures are
	// the largest payloads the clients send.
	maxBodyBytes = 20 << 20

	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// Assistant is the pipeline the handlers drive. *assist.Service satisfies it.
type Assistant interface {
	Assist(ctx context.Context, text string, p profile.Profile) (assist.AssistResult, error)
	Continue(ctx context.Context, query string, prev types.ReducedResult) (types.ReducedResult, error)
	Diagram(ctx context.Context, simplified string, keyPoints []string, allowVisuals bool) (types.DiagramPayload, error)
	Turn(ctx context.Context, text string, p profile.Profile, allowVisuals bool) (assist.TurnResult, error)
}

var _ Assistant = (*assist.Service)(nil)

// Server is the HTTP front end. Create one with [New].
type Server struct {
	cfg      config.ServerConfig
	svc      Assistant
	profiles profile.Store
	metrics  *observe.Metrics
	health   *health.Handler
	scrape   http.Handler
	service  string

	engine *gin.Engine
}

// Option configures a [Server].
type Option func(*Server)

// WithMetrics sets the metrics used by the request middleware. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealth sets the handler behind /healthz and /readyz. Defaults to a
// handler with no readiness checks.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetricsHandler replaces the /metrics handler. A nil handler disables
// the route.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.scrape = h }
}

// New builds a Server and its router.
func New(cfg config.ServerConfig, svc Assistant, profiles profile.Store, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, errors.New("server: assistant is required")
	}
	if profiles == nil {
		return nil, errors.New("server: profile store is required")
	}
	s := &Server{
		cfg:      cfg,
		svc:      svc,
		profiles: profiles,
		scrape:   promhttp.Handler(),
		service:  "aurasync",
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.health == nil {
		s.health = health.New()
	}
	if s.cfg.APIPrefix == "" {
		s.cfg.APIPrefix = config.DefaultAPIPrefix
	}
	s.engine = s.routes()
	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.CustomRecovery(recoverJSON))
	r.Use(corsMiddleware(s.cfg.CORS))
	r.Use(otelgin.Middleware(s.service))
	r.Use(observe.Middleware(s.metrics))
	r.Use(limitBody(maxBodyBytes))

	s.health.Register(r)
	if s.scrape != nil {
		r.GET("/metrics", gin.WrapH(s.scrape))
	}

	h := &handlers{svc: s.svc, profiles: s.profiles}
	api := r.Group(s.cfg.APIPrefix, rateLimit(s.cfg.RateLimit))
	{
		api.POST("/onboarding", h.createProfile)
		api.GET("/onboarding/:profileId", h.getProfile)

		api.POST("/assist", h.assist)
		api.POST("/assist/context", h.continueContext)
		api.POST("/assist/turn", h.turn)

		api.POST("/mermaid", h.mermaid)
	}
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody{Error: "route not found", Code: codeNotFound})
	})
	return r
}

// Run listens on the configured address and serves until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.ListenAddr
	if addr == "" {
		addr = config.DefaultListenAddr
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. TLS is used when
// the server config carries a certificate pair.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server listening", "addr", ln.Addr().String(), "tls", s.cfg.TLS != nil, "prefix", s.cfg.APIPrefix)
		var err error
		if tls := s.cfg.TLS; tls != nil {
			err = srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: serve: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("http server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// limitBody caps the request body at n bytes.
func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

func recoverJSON(c *gin.Context, rec any) {
	observe.Logger(c.Request.Context()).Error("handler panic", "panic", rec, "route", c.FullPath())
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: "internal error", Code: codeInternal})
}
