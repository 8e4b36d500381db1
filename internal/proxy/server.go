// Package proxy serves the local HTTP routes the realty UI talks to and
// forwards them to the n8n webhook.
package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/austindbirch/realty_relay/internal/config"
	"github.com/austindbirch/realty_relay/internal/health"
	"github.com/austindbirch/realty_relay/internal/logging"
	"github.com/austindbirch/realty_relay/internal/metrics"
	"github.com/austindbirch/realty_relay/internal/realty"
	"github.com/austindbirch/realty_relay/internal/tracing"
	"github.com/austindbirch/realty_relay/internal/webhook"
)

const (
	RequestIDHeader = "X-Request-Id"

	DefaultTimeout            = 15 * time.Second
	DefaultWebhookTestTimeout = 10 * time.Second

	maxRequestBody = 1 << 20
)

// Upstream is the webhook as seen by the proxy routes. *webhook.Client
// satisfies it.
type Upstream interface {
	Forward(ctx context.Context, message, sessionID string) (*webhook.Result, error)
	ForwardJSON(ctx context.Context, payload any) (*webhook.Result, error)
	Ping(ctx context.Context) error
}

type Server struct {
	cfg        config.Proxy
	upstream   Upstream
	agent      *realty.Agent
	testClient *http.Client
	logger     *logging.Logger
}

type Option func(*Server)

// WithTestHTTPClient sets the client used by the webhook-test route.
func WithTestHTTPClient(hc *http.Client) Option {
	return func(s *Server) { s.testClient = hc }
}

func WithLogger(l *logging.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New wires the proxy routes. upstream serves /api/realty; agent serves the
// chat and tool routes and may share the same webhook.
func New(cfg config.Proxy, upstream Upstream, agent *realty.Agent, opts ...Option) *Server {
	s := &Server{
		cfg:        cfg,
		upstream:   upstream,
		agent:      agent,
		testClient: &http.Client{},
		logger:     logging.Default(),
	}
	if s.cfg.Timeout <= 0 {
		s.cfg.Timeout = DefaultTimeout
	}
	if s.cfg.WebhookTestTimeout <= 0 {
		s.cfg.WebhookTestTimeout = DefaultWebhookTestTimeout
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the proxy's HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /api/realty", s.instrument("realty", http.HandlerFunc(s.handleRealtyGet)))
	mux.Handle("POST /api/realty", s.instrument("realty_post", http.HandlerFunc(s.handleRealtyPost)))
	mux.Handle("POST /api/chat", s.instrument("chat", http.HandlerFunc(s.handleChat)))
	mux.Handle("GET /api/tools", s.instrument("tools", http.HandlerFunc(s.handleTools)))
	mux.Handle("POST /api/tools/{name}", s.instrument("tool_call", http.HandlerFunc(s.handleToolCall)))

	if s.cfg.EnableWebhookTest {
		mux.Handle("GET /api/webhook-test", s.instrument("webhook_test_info", http.HandlerFunc(s.handleWebhookTestInfo)))
		mux.Handle("POST /api/webhook-test", s.instrument("webhook_test", http.HandlerFunc(s.handleWebhookTest)))
	}

	var pinger health.Pinger
	if s.cfg.ProbeUpstream {
		pinger = s.upstream
	}
	mux.HandleFunc("/healthz", health.HTTPHandler(pinger, health.DefaultProbeTimeout))

	return mux
}

type ctxKey int

const requestIDKey ctxKey = iota

// RequestID returns the request ID assigned by the proxy middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// instrument extracts the caller's trace, assigns a request ID, and records
// the response code for route.
func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx := tracing.ExtractHTTPHeaders(r.Context(), r.Header)
		ctx, span := tracing.StartSpan(ctx, "proxy."+route,
			attribute.String("http.method", r.Method),
			attribute.String("http.route", r.URL.Path),
		)
		defer span.End()

		reqID := r.Header.Get(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx = context.WithValue(ctx, requestIDKey, reqID)
		w.Header().Set(RequestIDHeader, reqID)

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		span.SetAttributes(attribute.Int("http.status_code", rec.status))
		metrics.RecordProxyResponse(route, rec.status)

		entry := s.logger.WithContext(ctx).WithRequest(reqID).WithRoute(route).WithFields(map[string]any{
			"method":      r.Method,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if rec.status >= http.StatusInternalServerError {
			entry.Warn("request completed with error")
			return
		}
		entry.Info("request completed")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
