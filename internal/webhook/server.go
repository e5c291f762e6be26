package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/headwind-sh/headwind/internal/metrics"
	"github.com/headwind-sh/headwind/internal/registry"
	"github.com/headwind-sh/headwind/pkg/logging"
)

const (
	// DefaultAddress is the listen address of the receiver.
	DefaultAddress = ":8080"

	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultWriteTimeout      = 30 * time.Second
	DefaultIdleTimeout       = 120 * time.Second

	// maxBodyBytes bounds accepted payloads.
	maxBodyBytes = 1 << 20

	shutdownTimeout = 10 * time.Second
)

// Endpoint labels used for metrics.
const (
	EndpointDistribution = "distribution"
	EndpointDockerHub    = "dockerhub"
)

// Results of a delivery, used for metrics.
const (
	ResultAccepted = "accepted"
	ResultIgnored  = "ignored"
	ResultInvalid  = "invalid"
	ResultError    = "error"
)

// Handler receives the push events found in webhook payloads.
type Handler interface {
	HandlePush(ctx context.Context, ev registry.PushEvent) (int, error)
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records deliveries on rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return func(s *Server) { s.metrics = rec }
}

// WithGatherer serves the metrics of g on /metrics instead of the default
// Prometheus registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// Server receives registry push notifications.
//
// Routes:
//   - POST /webhook: distribution notification envelope
//   - POST /webhook/dockerhub: Docker Hub push payload
//   - GET /healthz
//   - GET /metrics
type Server struct {
	addr     string
	handler  Handler
	metrics  *metrics.Recorder
	gatherer prometheus.Gatherer
	now      func() time.Time
}

// NewServer creates a receiver listening on addr.
func NewServer(addr string, handler Handler, opts ...Option) *Server {
	if addr == "" {
		addr = DefaultAddress
	}
	s := &Server{
		addr:     addr,
		handler:  handler,
		gatherer: prometheus.DefaultGatherer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Address returns the listen address.
func (s *Server) Address() string {
	return s.addr
}

// Routes returns the HTTP handler of the receiver.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("POST /webhook", s.serveDistribution)
	mux.HandleFunc("POST /webhook/dockerhub", s.serveDockerHub)

	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Webhook", "Listening for registry webhooks on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("webhook server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down webhook server: %w", err)
	}
	logging.Info("Webhook", "Webhook server stopped")
	return nil
}

func (s *Server) serveDistribution(w http.ResponseWriter, r *http.Request) {
	var envelope distributionEnvelope
	if err := decode(w, r, &envelope); err != nil {
		s.metrics.WebhookEvent(EndpointDistribution, ResultInvalid)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.dispatch(w, r, EndpointDistribution, envelope.pushEvents(s.now()))
}

func (s *Server) serveDockerHub(w http.ResponseWriter, r *http.Request) {
	var payload dockerHubPayload
	if err := decode(w, r, &payload); err != nil {
		s.metrics.WebhookEvent(EndpointDockerHub, ResultInvalid)
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var pushes []registry.PushEvent
	if ev, ok := payload.pushEvent(s.now()); ok {
		pushes = append(pushes, ev)
	}
	s.dispatch(w, r, EndpointDockerHub, pushes)
}

// dispatchResponse is the body returned to the registry.
type dispatchResponse struct {
	Events  int    `json:"events"`
	Matched int    `json:"matched"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, endpoint string, pushes []registry.PushEvent) {
	if len(pushes) == 0 {
		s.metrics.WebhookEvent(endpoint, ResultIgnored)
		writeJSON(w, http.StatusOK, dispatchResponse{})
		return
	}

	resp := dispatchResponse{Events: len(pushes)}
	var errs []error
	for _, ev := range pushes {
		logging.Info("Webhook", "Received push of %s via %s", ev.FullImage(), endpoint)
		matched, err := s.handler.HandlePush(r.Context(), ev)
		resp.Matched += matched
		if err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		logging.Error("Webhook", err, "Failed to route %s webhook", endpoint)
		s.metrics.WebhookEvent(endpoint, ResultError)
		resp.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	s.metrics.WebhookEvent(endpoint, ResultAccepted)
	writeJSON(w, http.StatusOK, resp)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Webhook", "Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
