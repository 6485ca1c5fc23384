// Package api exposes the soulcore components over HTTP for the desktop
// shell sidecar.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/entrhq/soulcore/pkg/config"
	"github.com/entrhq/soulcore/pkg/logging"
	"github.com/entrhq/soulcore/pkg/router"
	"github.com/entrhq/soulcore/pkg/verify"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
	requestTimeout  = 30 * time.Second
)

// Embedder produces text embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) []float64
	EmbedBatch(ctx context.Context, texts []string) [][]float64
	Dimensions() int
	Name() string
}

// Verifier checks generated replies.
type Verifier interface {
	Check(ctx context.Context, generated, query string) verify.Result
}

// Router files conversational signals.
type Router interface {
	RouteAll(ctx context.Context, learned router.Learned, rawText, subject string) router.Report
}

// Services are the components served over HTTP.
type Services struct {
	Embedder Embedder
	Verifier Verifier
	Router   Router
}

// Server is a chi mux behind a net/http server.
type Server struct {
	addr     string
	mux      *chi.Mux
	srv      *http.Server
	svc      Services
	validate *validator.Validate
	logger   *logging.Logger
}

// NewServer builds the HTTP surface for svc.
func NewServer(cfg config.ServerConfig, svc Services, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop("api")
	}
	s := &Server{
		addr:     cfg.Addr,
		mux:      chi.NewRouter(),
		svc:      svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}

	s.mux.Use(middleware.RequestID, middleware.Recoverer, middleware.Timeout(requestTimeout))
	s.mux.Use(s.logRequests)
	if len(cfg.AllowedOrigins) > 0 {
		s.mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			MaxAge:         300,
		}))
	}

	s.mux.Get("/health", s.handleHealth)
	s.mux.Route("/v1", func(r chi.Router) {
		r.Post("/embed", s.handleEmbed)
		r.Post("/similarity", s.handleSimilarity)
		r.Post("/verify", s.handleVerify)
		r.Post("/route", s.handleRoute)
	})

	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(logger.Zap()),
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Run listens on the configured address and serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Infof("http listening on %s", ln.Addr())
		if err := s.srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Infof("http shutting down")
		return s.srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debugf("%s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}
