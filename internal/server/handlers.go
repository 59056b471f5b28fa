package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/platescan/internal/pipeline"
	"github.com/MeKo-Tech/platescan/internal/recognizer"
	"github.com/MeKo-Tech/platescan/internal/utils"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// recognizeHandler reads the plate in the uploaded "image" file.
func (s *Server) recognizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	requestID := RequestIDFromContext(r.Context())
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.writeErrorResponse(w, requestID, "File too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.writeErrorResponse(w, requestID, "Failed to parse form data", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, requestID, "No image file provided", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, requestID, "Failed to read image data", http.StatusInternalServerError)
		return
	}
	img, _, err := utils.DecodeImage(bytes.NewReader(data))
	if err != nil {
		s.writeErrorResponse(w, requestID, "Invalid image format", http.StatusBadRequest)
		return
	}

	res, status, err := s.recognize(r.Context(), "http", img)
	if err != nil {
		s.writeErrorResponse(w, requestID, err.Error(), status)
		return
	}
	res.Path = header.Filename
	writeJSON(w, http.StatusOK, RecognizeResponse{Success: true, RequestID: requestID, Result: &res})
}

// recognize borrows an engine and runs the pipeline on img. The returned
// status is meaningful only with a non-nil error.
func (s *Server) recognize(ctx context.Context, source string, img image.Image) (pipeline.Result, int, error) {
	if s.pipeline == nil || s.engines == nil {
		return pipeline.Result{}, http.StatusServiceUnavailable, errors.New("recognition pipeline not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	engine, err := s.engines.Acquire(ctx)
	if err != nil {
		recognitionsTotal.WithLabelValues(source, "unavailable").Inc()
		return pipeline.Result{}, http.StatusServiceUnavailable, errors.New("no OCR engine available")
	}
	defer s.engines.Release(engine)

	res := s.pipeline.Process(ctx, engine, 0, "", img)
	recognitionDuration.WithLabelValues(source).Observe(res.Duration.Seconds())
	if errors.Is(res.Err, recognizer.ErrEngineInit) {
		recognitionsTotal.WithLabelValues(source, "error").Inc()
		return res, http.StatusServiceUnavailable, res.Err
	}
	recognitionsTotal.WithLabelValues(source, strconv.Itoa(int(res.Reliability))).Inc()
	return res, http.StatusOK, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, requestID, message string, statusCode int) {
	writeJSON(w, statusCode, RecognizeResponse{Success: false, RequestID: requestID, Error: message})
}
