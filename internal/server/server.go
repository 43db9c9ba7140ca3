// Package server exposes conversion, detection and archive analysis over
// HTTP.
package server

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcncl/convertkit/internal/convert"
	"github.com/mcncl/convertkit/internal/errors"
	"github.com/mcncl/convertkit/internal/jar"
	"github.com/mcncl/convertkit/internal/models"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes = 32 << 20

const shutdownTimeout = 10 * time.Second

// Server routes API requests to a Converter and an archive Analyzer
type Server struct {
	converter *convert.Converter
	analyzer  *jar.Analyzer
	logger    *slog.Logger
	metrics   *Metrics
	registry  *prometheus.Registry
	maxBody   int64
	mux       *http.ServeMux
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the request logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxBodyBytes limits request bodies
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// New builds a Server with its own metrics registry
func New(converter *convert.Converter, analyzer *jar.Analyzer, opts ...Option) *Server {
	s := &Server{
		converter: converter,
		analyzer:  analyzer,
		logger:    slog.Default(),
		maxBody:   DefaultMaxBodyBytes,
		mux:       http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics, s.registry = NewMetrics()

	s.handle("POST /api/convert", s.handleConvert)
	s.handle("POST /api/detect", s.handleDetect)
	s.handle("POST /api/jar", s.handleJar)
	s.handle("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.NewIOError(fmt.Sprintf("failed to serve on %s", addr), err)
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.NewIOError("graceful shutdown failed", err)
		}
		return nil
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestID returns the caller's X-Request-ID or a new one
func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}

// handle wraps h with request ID propagation, logging and request counting
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := requestID(r)
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)

		s.metrics.Requests.WithLabelValues(pattern, strconv.Itoa(rec.status)).Inc()
		s.logger.Info("request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

// readBody reads at most maxBody bytes, reading one more to detect overflow
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBody+1))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.NewInputError("failed to read request body", err))
		return nil, false
	}
	if int64(len(body)) > s.maxBody {
		s.writeError(w, http.StatusRequestEntityTooLarge,
			errors.NewInputError(fmt.Sprintf("request body exceeds maximum size of %d bytes", s.maxBody), nil))
		return nil, false
	}
	if len(body) == 0 {
		s.writeError(w, http.StatusBadRequest, errors.NewInputError("request body is empty", errors.ErrEmptyInput))
		return nil, false
	}
	s.metrics.RequestBytes.Add(float64(len(body)))
	return body, true
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	to, err := convert.ParseFormat(q.Get("to"), "target")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	from := models.FormatUnknown
	if name := q.Get("from"); name != "" {
		if from, err = convert.ParseFormat(name, "source"); err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	res, err := s.converter.Convert(r.Context(), convert.Request{
		Name:      q.Get("name"),
		Data:      body,
		From:      from,
		To:        to,
		Overrides: q["set"],
	})
	s.metrics.Duration.WithLabelValues(string(to)).Observe(res.Duration.Seconds())
	if err != nil {
		s.metrics.Conversions.WithLabelValues(string(res.From), string(to), "error").Inc()
		s.writeError(w, statusFor(err), err)
		return
	}
	s.metrics.Conversions.WithLabelValues(string(res.From), string(to), "ok").Inc()

	w.Header().Set("Content-Type", ContentType(to))
	w.Header().Set("X-Source-Format", string(res.From))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Output)
}

type detectResponse struct {
	Format models.Format `json:"format"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	// Detect reports unknown formats as an error; here they are a result.
	f, _ := convert.Detect(body)
	s.metrics.Detections.WithLabelValues(string(f)).Inc()
	s.writeJSON(w, http.StatusOK, detectResponse{Format: f})
}

func (s *Server) handleJar(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload.jar"
	}

	analysis, err := s.analyzer.AnalyzeReader(r.Context(), bytes.NewReader(body), name)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.metrics.JarAnalyses.WithLabelValues(string(analysis.Metadata.Mode), string(analysis.Metadata.JarType)).Inc()
	s.writeJSON(w, http.StatusOK, analysis)
}

type errorResponse struct {
	Error string           `json:"error"`
	Type  errors.ErrorType `json:"type"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{
		Error: errors.UserFriendlyError(err),
		Type:  errors.TypeOf(err),
	})
}

// statusFor maps an error type onto an HTTP status
func statusFor(err error) int {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	switch errors.TypeOf(err) {
	case errors.ErrorTypeInput, errors.ErrorTypeSyntax, errors.ErrorTypeStructural, errors.ErrorTypeConversion:
		return http.StatusBadRequest
	case errors.ErrorTypeUnsupportedShape:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ContentType returns the media type served for a format
func ContentType(f models.Format) string {
	switch f {
	case models.FormatJSON:
		return "application/json"
	case models.FormatCSV:
		return "text/csv; charset=utf-8"
	case models.FormatXML:
		return "application/xml"
	case models.FormatYAML:
		return "application/yaml"
	case models.FormatTOML:
		return "application/toml"
	case models.FormatSQL:
		return "application/sql"
	case models.FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/plain; charset=utf-8"
	}
}
