package server

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/MeKo-Tech/platescan/internal/pipeline"
	"github.com/MeKo-Tech/platescan/internal/recognizer"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewServer creates a server around p with an engine pool built from factory.
// Engines are created up front so a broken OCR installation fails at startup.
func NewServer(cfg Config, p *pipeline.Pipeline, factory recognizer.Factory) (*Server, error) {
	if p == nil {
		return nil, errors.New("pipeline is nil")
	}
	size := cfg.PoolSize
	if size <= 0 {
		size = runtime.NumCPU()
	}
	pool, err := recognizer.NewPool(factory, size)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine pool: %w", err)
	}
	return newServer(cfg, p, pool), nil
}

func newServer(cfg Config, p *pipeline.Pipeline, pool enginePool) *Server {
	def := DefaultConfig()
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = def.MaxUploadMB
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = def.CORSOrigin
	}
	s := &Server{
		pipeline:    p,
		engines:     pool,
		corsOrigin:  cfg.CORSOrigin,
		maxUploadMB: cfg.MaxUploadMB,
		timeout:     cfg.Timeout,
		version:     cfg.Version,
	}
	if cfg.RequestsPerMinute > 0 {
		s.limiter = NewRateLimiter(cfg.RequestsPerMinute)
	}
	return s
}

// Close releases the engine pool.
func (s *Server) Close() error {
	if s.engines != nil {
		return s.engines.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/recognize", s.corsMiddleware(s.requestIDMiddleware(s.rateLimitMiddleware(s.recognizeHandler))))
	mux.HandleFunc("/ws", s.requestIDMiddleware(s.rateLimitMiddleware(s.websocketHandler)))
	mux.Handle("/metrics", promhttp.Handler())
}
