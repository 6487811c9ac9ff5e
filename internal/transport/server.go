// Package transport serves the dispatcher over HTTP.
//
// Every operation is reachable at POST /rpc/{operation} with a JSON body.
// The session token comes from an Authorization: Bearer header or, failing
// that, the session cookie. Responses always use the dispatcher's envelope;
// the HTTP status mirrors the outcome so proxies and logs stay meaningful.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/tenantrpc/internal/contract"
	"github.com/roach88/tenantrpc/internal/registry"
	"github.com/roach88/tenantrpc/internal/rpc"
)

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = "127.0.0.1:8080"

	// MaxBodyBytes caps a request payload.
	MaxBodyBytes = 1 << 20

	// SessionCookie carries the session token for browser callers.
	SessionCookie = "session"

	// RequestIDHeader echoes the request id on every response.
	RequestIDHeader = "X-Request-ID"

	shutdownTimeout = 5 * time.Second
)

// Dispatcher runs one call. *rpc.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, req rpc.Request) *rpc.Response
}

// Server is the HTTP front of a Dispatcher.
type Server struct {
	httpServer *http.Server
	dispatcher Dispatcher
	limiter    *Limiter
	logger     *slog.Logger
	now        func() time.Time
	gatherer   prometheus.Gatherer
	rejections *prometheus.CounterVec
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.httpServer.Addr = addr
		}
	}
}

// WithLimiter enables per-caller rate limiting.
func WithLimiter(l *Limiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// WithLogger sets the logger for request logs.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithClock replaces time.Now for the rate limiter.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithMetrics registers transport collectors with reg and serves reg at
// GET /metrics.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.gatherer = reg
		s.rejections = promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenantrpc_http_rejections_total",
				Help: "Requests refused before dispatch, by reason",
			},
			[]string{"reason"},
		)
	}
}

// New creates a server for d.
func New(d Dispatcher, opts ...Option) *Server {
	s := &Server{
		httpServer: &http.Server{
			Addr:              DefaultAddr,
			ReadHeaderTimeout: 5 * time.Second,
		},
		dispatcher: d,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /rpc/{operation}", s.handleRPC)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	s.httpServer.Handler = mux
	return s
}

// Handler returns the routing handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run listens on the configured address and serves until ctx is done, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()
	s.logger.Info("serving", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)
	token := extractToken(r)

	if !s.limiter.Allow(rateLimitKey(r), s.now()) {
		s.reject("rate_limited")
		w.Header().Set("Retry-After", "1")
		s.write(w, rpc.Reject(requestID, registry.VariantRateLimited, nil))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.reject("too_large")
			s.writeStatus(w, http.StatusRequestEntityTooLarge, rpc.Reject(requestID, registry.VariantValidation,
				violation(fmt.Sprintf("payload exceeds %d bytes", MaxBodyBytes))))
			return
		}
		s.reject("read_error")
		s.write(w, rpc.Reject(requestID, registry.VariantValidation, violation("unreadable payload")))
		return
	}

	resp := s.dispatcher.Dispatch(r.Context(), rpc.Request{
		Operation: r.PathValue("operation"),
		Token:     token,
		Payload:   payload,
		RequestID: requestID,
	})
	s.write(w, resp)
}

func (s *Server) write(w http.ResponseWriter, resp *rpc.Response) {
	s.writeStatus(w, StatusFor(resp), resp)
}

func (s *Server) writeStatus(w http.ResponseWriter, status int, resp *rpc.Response) {
	body, err := resp.MarshalJSON()
	if err != nil {
		s.logger.Error("encode response", "request_id", resp.RequestID, "error", err)
		status = http.StatusInternalServerError
		body = []byte(`{"ok":false,"error":{"data":null,"name":"Internal"}}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(RequestIDHeader, resp.RequestID)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *Server) reject(reason string) {
	if s.rejections != nil {
		s.rejections.WithLabelValues(reason).Inc()
	}
}

// StatusFor maps a response outcome to its HTTP status. Declared variants
// are client-visible domain failures and map to 400.
func StatusFor(resp *rpc.Response) int {
	if resp.OK {
		return http.StatusOK
	}
	switch resp.Error.Name {
	case registry.VariantNotFound:
		return http.StatusNotFound
	case registry.VariantUnauthenticated:
		return http.StatusUnauthorized
	case registry.VariantForbidden:
		return http.StatusForbidden
	case registry.VariantValidation:
		return http.StatusUnprocessableEntity
	case registry.VariantRateLimited:
		return http.StatusTooManyRequests
	case registry.VariantUnavailable:
		return http.StatusServiceUnavailable
	case registry.VariantInternal, registry.VariantUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func violation(message string) contract.Value {
	return contract.Object{"violations": contract.List{
		contract.Object{"path": contract.String(""), "message": contract.String(message)},
	}}
}

// requestIDFrom honours a caller-supplied UUID and otherwise mints a UUIDv7.
func requestIDFrom(r *http.Request) string {
	if raw := strings.TrimSpace(r.Header.Get(RequestIDHeader)); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			return id.String()
		}
	}
	return uuid.Must(uuid.NewV7()).String()
}

func extractToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		if token := strings.TrimSpace(auth[len("bearer "):]); token != "" {
			return token
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// rateLimitKey buckets by client IP. Tokens are not resolved until
// dispatch, so a caller-chosen token must not select the bucket.
func rateLimitKey(r *http.Request) string {
	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return "ip:unknown"
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return "ip:" + remote
	}
	if host == "" {
		return "ip:unknown"
	}
	return "ip:" + host
}
