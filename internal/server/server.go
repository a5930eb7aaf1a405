package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/example/go-ortbind/internal/binder"
	"github.com/example/go-ortbind/internal/config"
	"github.com/example/go-ortbind/internal/tensor"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Model is the bound model served over HTTP. *binder.Binder implements it.
type Model interface {
	Infer(ctx context.Context, inputs map[string]*tensor.Tensor) (map[string]*tensor.Tensor, error)
	Ready() bool
	Path() string
	Inputs() []binder.TensorSpec
	Outputs() []binder.TensorSpec
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxBodyBytes   int64
	workers        int
	requestTimeout time.Duration
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		maxBodyBytes:   64 << 20,
		workers:        2,
		requestTimeout: 60 * time.Second,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxBodyBytes sets the maximum accepted POST /infer body size.
func WithMaxBodyBytes(n int64) Option {
	return func(o *options) { o.maxBodyBytes = n }
}

// WithWorkers sets the maximum number of concurrent inference calls.
// Zero or less disables the limit.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request inference deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

type handler struct {
	model Model
	opts  options
	sem   chan struct{} // semaphore for worker pool
	log   *slog.Logger
}

// NewHandler returns an http.Handler that serves /health, /model, and POST /infer.
func NewHandler(model Model, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		model: model,
		opts:  opts,
		log:   opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/model", h.handleModel)
	mux.HandleFunc("/infer", h.handleInfer)
	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// Health is the /health response body.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Model   string `json:"model"`
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	state := "uninitialized"
	if h.model.Ready() {
		state = "ready"
	}
	writeJSON(w, http.StatusOK, Health{
		Status:  "ok",
		Version: buildVersion(),
		Model:   state,
	})
}

type modelResponse struct {
	Path    string              `json:"path"`
	Ready   bool                `json:"ready"`
	Inputs  []binder.TensorSpec `json:"inputs"`
	Outputs []binder.TensorSpec `json:"outputs"`
}

func (h *handler) handleModel(w http.ResponseWriter, _ *http.Request) {
	resp := modelResponse{
		Path:    h.model.Path(),
		Ready:   h.model.Ready(),
		Inputs:  h.model.Inputs(),
		Outputs: h.model.Outputs(),
	}
	if resp.Inputs == nil {
		resp.Inputs = []binder.TensorSpec{}
	}
	if resp.Outputs == nil {
		resp.Outputs = []binder.TensorSpec{}
	}
	writeJSON(w, http.StatusOK, resp)
}

type inferRequest struct {
	Inputs map[string]*tensor.Tensor `json:"inputs"`
}

type inferResponse struct {
	Outputs map[string]*tensor.Tensor `json:"outputs"`
}

func (h *handler) handleInfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return
	}

	if h.opts.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.opts.maxBodyBytes)
	}

	var req inferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds maximum size of %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	for name, t := range req.Inputs {
		if t == nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("input %q is null", name))
			return
		}
	}

	// Acquire a worker slot, honouring cancellation while waiting.
	if h.sem != nil {
		select {
		case h.sem <- struct{}{}:
		case <-r.Context().Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return
		}
		defer func() { <-h.sem }()
	}

	ctx := r.Context()
	if h.opts.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.requestTimeout)
		defer cancel()
	}

	start := time.Now()
	outputs, err := h.model.Infer(ctx, req.Inputs)
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		status := statusFor(err)
		attrs := []any{
			slog.Int("inputs", len(req.Inputs)),
			slog.Int64("duration_ms", durationMS),
			slog.String("kind", binder.Kind(err).String()),
			slog.String("error", err.Error()),
		}
		if status >= http.StatusInternalServerError {
			h.log.ErrorContext(r.Context(), "inference failed", attrs...)
		} else {
			h.log.WarnContext(r.Context(), "inference rejected", attrs...)
		}
		if status == http.StatusGatewayTimeout {
			writeError(w, status, "inference timed out")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	h.log.InfoContext(r.Context(), "inference complete",
		slog.Int("inputs", len(req.Inputs)),
		slog.Int("outputs", len(outputs)),
		slog.Int64("duration_ms", durationMS),
	)

	writeJSON(w, http.StatusOK, inferResponse{Outputs: outputs})
}

// statusFor maps an inference error onto an HTTP status.
func statusFor(err error) int {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return http.StatusGatewayTimeout
	}
	switch binder.Kind(err) {
	case binder.KindMissingInput:
		return http.StatusBadRequest
	case binder.KindNotInitialized:
		return http.StatusServiceUnavailable
	case binder.KindExecution:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v before committing the status, so an encoding failure
// still reaches the client as a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
		buf.Reset()
		status = http.StatusInternalServerError
		_ = json.NewEncoder(&buf).Encode(map[string]string{"error": "encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.ServerConfig
	model           Model
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

func New(cfg config.ServerConfig, model Model) *Server {
	shutdown := time.Duration(cfg.ShutdownTimeout) * time.Second
	if shutdown <= 0 {
		shutdown = 30 * time.Second
	}
	return &Server{
		cfg:             cfg,
		model:           model,
		logger:          slog.Default(),
		shutdownTimeout: shutdown,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// WithLogger overrides the request logger.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.logger = l
	return s
}

func (s *Server) Start(ctx context.Context) error {
	if s.model == nil {
		return errors.New("server requires a model")
	}

	h := NewHandler(s.model,
		WithWorkers(s.cfg.Workers),
		WithMaxBodyBytes(s.cfg.MaxBodyBytes),
		WithRequestTimeout(time.Duration(s.cfg.RequestTimeout)*time.Second),
		WithLogger(s.logger),
	)

	httpServer := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	s.logger.Info("listening", "addr", s.cfg.ListenAddr, "model", s.model.Path())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

// ProbeHTTP reports whether the server at addr answers /health with 200.
func ProbeHTTP(addr string) error {
	_, err := FetchHealth(addr)
	return err
}

// FetchHealth GETs /health from addr and decodes the body.
func FetchHealth(addr string) (Health, error) {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return Health{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Health{}, fmt.Errorf("unexpected health status: %s", resp.Status)
	}

	var health Health
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return Health{}, fmt.Errorf("decode health response: %w", err)
	}
	return health, nil
}
