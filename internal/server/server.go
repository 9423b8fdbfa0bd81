// Package server exposes a saved transfer function over HTTP: function
// metadata, per-day curves, and on-demand correction of value slices.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/climtools/qqmap/internal/log"
	"github.com/climtools/qqmap/internal/qq"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Config holds the HTTP server settings
type Config struct {
	ListenAddr  string
	Port        int
	TLSCertPath string
	TLSKeyPath  string
}

// Server serves correction endpoints backed by one transfer function
type Server struct {
	ctx      context.Context
	wg       *sync.WaitGroup
	config   Config
	tf       *qq.TransferFunction
	Server   http.Server
	logger   *zap.SugaredLogger
	handlers *Handlers
}

// NewServer creates a new correction server around a loaded transfer function
func NewServer(ctx context.Context, wg *sync.WaitGroup, cfg Config, tf *qq.TransferFunction, logger *zap.SugaredLogger) (*Server, error) {
	if tf == nil {
		return nil, fmt.Errorf("no transfer function provided")
	}
	if logger == nil {
		logger = log.GetSugaredLogger()
	}

	if cfg.ListenAddr == "" {
		logger.Info("listen address not provided; defaulting to 0.0.0.0 (all interfaces)")
		cfg.ListenAddr = "0.0.0.0"
	}
	if cfg.Port == 0 {
		logger.Info("port not provided; defaulting to 8080")
		cfg.Port = 8080
	}

	if tf.CoveredDays() == 0 {
		logger.Warn("transfer function covers no days; correction requests will fail")
	}

	s := &Server{
		ctx:    ctx,
		wg:     wg,
		config: cfg,
		tf:     tf,
		logger: logger,
	}

	s.handlers = NewHandlers(s)

	router := s.setupRouter()
	s.Server.Addr = fmt.Sprintf("%v:%v", cfg.ListenAddr, cfg.Port)
	s.Server.Handler = router

	return s, nil
}

// Start runs the HTTP server and shuts it down when the context ends
func (s *Server) Start() error {
	log.Info("Starting correction server...")
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		if s.config.TLSCertPath != "" && s.config.TLSKeyPath != "" {
			if err := s.Server.ListenAndServeTLS(s.config.TLSCertPath, s.config.TLSKeyPath); err != http.ErrServerClosed {
				log.Errorf("correction server error: %v", err)
			}
		} else {
			if err := s.Server.ListenAndServe(); err != http.ErrServerClosed {
				log.Errorf("correction server error: %v", err)
			}
		}
	}()

	go func() {
		<-s.ctx.Done()
		log.Info("Shutting down the correction server...")
		s.Server.Shutdown(context.Background())
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (s *Server) setupRouter() *mux.Router {
	router := mux.NewRouter()

	router.Use(s.requestLogger)

	router.HandleFunc("/health", s.handlers.GetHealth).Methods(http.MethodGet)
	router.HandleFunc("/function", s.handlers.GetFunction).Methods(http.MethodGet)
	router.HandleFunc("/function/{doy}", s.handlers.GetFunctionDay).Methods(http.MethodGet)
	router.HandleFunc("/correct", s.handlers.PostCorrect).Methods(http.MethodPost)

	return router
}

// statusRecorder captures the response status for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLogger logs one line per request with status and duration
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Infow("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
		)
	})
}
