// Package server provides the HTTP server for the ISO 20022 simulator.
//
// # Message Endpoints
//
//   - POST {basePath}/api/v1/iso20022/process  - Parse, validate and reply.
//     The body is the XML document, optionally gzip-encoded. The
//     X-Message-Type header is an optional type hint. The reply document is
//     returned with X-Message-ID, X-Processing-Status and X-Processing-Time.
//   - POST {basePath}/api/v1/iso20022/validate - Parse and validate only,
//     returning the processing result as JSON.
//
// # Records
//
//   - GET {basePath}/api/v1/messages                        - List records
//   - GET {basePath}/api/v1/messages/{id}                   - Get a record by record or message id
//   - GET {basePath}/api/v1/messages/{id}/documents/{kind}  - Raw request or response document
//
// # Service
//
//   - GET {basePath}/api/v1/info - Name, version and validation settings
//   - GET /health                - Liveness probe
//   - GET /ready                 - Readiness probe (store ping)
//   - GET /metrics               - Prometheus metrics (if enabled)
//
// When oauth2 is configured every {basePath}/api/v1 route requires a bearer
// token.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sirosfoundation/go-iso20022/internal/auth"
	"github.com/sirosfoundation/go-iso20022/internal/config"
	"github.com/sirosfoundation/go-iso20022/internal/metrics"
	"github.com/sirosfoundation/go-iso20022/internal/storage"
	"github.com/sirosfoundation/go-iso20022/pkg/compression"
	"github.com/sirosfoundation/go-iso20022/pkg/processor"
	"github.com/sirosfoundation/go-iso20022/pkg/transport"
)

// Dependencies are the components the server routes requests to.
type Dependencies struct {
	Processor *processor.Processor
	Store     storage.Store
	// Metrics is optional; nil disables the metrics endpoint.
	Metrics *metrics.Metrics
	// Closers are closed on shutdown after the HTTP server has stopped.
	Closers []io.Closer
	Version string
}

// Server is the simulator HTTP server
type Server struct {
	config     *config.Config
	logger     *slog.Logger
	httpSrv    *http.Server
	processor  *processor.Processor
	store      storage.Store
	metrics    *metrics.Metrics
	closers    []io.Closer
	version    string
	compressor *compression.Compressor
	auth       *auth.Authenticator
	sem        chan struct{}
}

// New creates a new server
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Server, error) {
	if deps.Processor == nil {
		return nil, errors.New("server: processor is required")
	}
	if deps.Store == nil {
		return nil, errors.New("server: store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:     cfg,
		logger:     logger,
		processor:  deps.Processor,
		store:      deps.Store,
		metrics:    deps.Metrics,
		closers:    deps.Closers,
		version:    deps.Version,
		compressor: compression.NewCompressor(cfg.Server.MaxBodyBytes),
		auth:       auth.NewAuthenticator(&cfg.OAuth2, logger),
	}
	if n := cfg.Performance.MaxConcurrentMessages; n > 0 {
		s.sem = make(chan struct{}, n)
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpSrv = &http.Server{
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	if cfg.Server.TLS.Enabled {
		s.httpSrv.TLSConfig = transport.DefaultHTTPSConfig().TLSConfig()
	}

	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start begins listening on the specified address
func (s *Server) Start(addr string) error {
	s.httpSrv.Addr = addr
	s.logger.Info("starting server", "addr", addr, "tls", s.config.Server.TLS.Enabled)
	if s.config.Server.TLS.Enabled {
		return s.httpSrv.ListenAndServeTLS(
			s.config.Server.TLS.CertFile,
			s.config.Server.TLS.KeyFile,
		)
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server and releases its dependencies
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return err
	}
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.store.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	basePath := strings.TrimSuffix(s.config.Server.BasePath, "/")

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	mux.Handle("POST "+basePath+"/api/v1/iso20022/process", s.protect(s.withLimit(s.handleProcess)))
	mux.Handle("POST "+basePath+"/api/v1/iso20022/validate", s.protect(s.withLimit(s.handleValidate)))

	mux.Handle("GET "+basePath+"/api/v1/messages", s.protect(s.handleListRecords))
	mux.Handle("GET "+basePath+"/api/v1/messages/{id}", s.protect(s.handleGetRecord))
	mux.Handle("GET "+basePath+"/api/v1/messages/{id}/documents/{kind}", s.protect(s.handleGetDocument))

	mux.Handle("GET "+basePath+"/api/v1/info", s.protect(s.handleInfo))

	if s.metrics != nil && s.config.Observability.MetricsEnabled() {
		mux.Handle("GET "+s.config.Observability.Metrics.Path, s.metrics.Handler())
	}
}

// Middleware

// protect requires a bearer token when OAuth2 is configured
func (s *Server) protect(next http.HandlerFunc) http.Handler {
	if !s.auth.IsEnabled() {
		return next
	}
	return s.auth.Middleware(s.rejected)(next)
}

// withLimit bounds the number of messages processed at once
func (s *Server) withLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.sem != nil {
			select {
			case s.sem <- struct{}{}:
				defer func() { <-s.sem }()
			default:
				s.rejected("busy")
				w.Header().Set("Retry-After", "1")
				s.jsonError(w, "too many messages in flight", http.StatusServiceUnavailable)
				return
			}
		}

		if s.metrics != nil {
			s.metrics.InFlight.Inc()
			defer s.metrics.InFlight.Dec()
		}
		next(w, r)
	}
}

func (s *Server) rejected(reason string) {
	if s.metrics != nil {
		s.metrics.RequestRejected(reason)
	}
}
