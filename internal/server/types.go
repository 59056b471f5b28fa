// Package server exposes plate recognition over HTTP and WebSocket.
package server

import (
	"context"
	"time"

	"github.com/MeKo-Tech/platescan/internal/pipeline"
	"github.com/MeKo-Tech/platescan/internal/recognizer"
)

// enginePool lends OCR engines to request handlers.
type enginePool interface {
	Acquire(ctx context.Context) (recognizer.Engine, error)
	Release(e recognizer.Engine)
	Close() error
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    *pipeline.Pipeline
	engines     enginePool
	limiter     *RateLimiter
	corsOrigin  string
	maxUploadMB int64
	timeout     time.Duration
	version     string
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	// Timeout bounds one recognition request, including the wait for an engine.
	Timeout time.Duration
	// PoolSize is the number of OCR engines shared by all requests.
	PoolSize int
	// RequestsPerMinute limits each client; 0 disables rate limiting.
	RequestsPerMinute int
	Version           string
}

// DefaultConfig returns the default server settings.
func DefaultConfig() Config {
	return Config{
		Host:        "localhost",
		Port:        8080,
		CORSOrigin:  "*",
		MaxUploadMB: 10,
		Timeout:     60 * time.Second,
	}
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// RecognizeResponse wraps a recognition result or an error.
type RecognizeResponse struct {
	Success   bool             `json:"success"`
	RequestID string           `json:"request_id,omitempty"`
	Result    *pipeline.Result `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
}
