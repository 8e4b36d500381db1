package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"

	"github.com/austindbirch/realty_relay/internal/logging"
	"github.com/austindbirch/realty_relay/internal/metrics"
	"github.com/austindbirch/realty_relay/internal/retry"
	"github.com/austindbirch/realty_relay/internal/tracing"
)

const (
	// ParamMessage is used by the desktop agent and the local proxy route.
	ParamMessage = "message"
	// ParamContactMessage is what the n8n workflow reads.
	ParamContactMessage = "contactMessage"
	// ParamSessionID carries the optional chat session.
	ParamSessionID = "sessionId"

	maxResponseBody = 10 << 20
)

// Error codes attached to adapter failures.
const (
	CodeUpstreamStatus      = "upstream_status"
	CodeUpstreamTimeout     = "upstream_timeout"
	CodeUpstreamUnreachable = "upstream_unreachable"
	CodeBadRequest          = "bad_request"
)

// Client sends realty messages to a single webhook endpoint.
type Client struct {
	endpoint   *url.URL
	param      string
	httpClient *http.Client
	policy     retry.Policy
	logger     *logging.Logger
}

type Option func(*Client)

// WithParam selects the query parameter carrying the message.
func WithParam(param string) Option {
	return func(c *Client) { c.param = param }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Result is a successful upstream exchange.
type Result struct {
	StatusCode int
	Body       json.RawMessage
	Latency    time.Duration
}

// New returns a client for endpoint. Defaults: contactMessage parameter,
// retry.DefaultPolicy, 30s HTTP client timeout.
func New(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse webhook endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook endpoint %q must be http or https", endpoint)
	}

	c := &Client{
		endpoint:   u,
		param:      ParamContactMessage,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		policy:     retry.DefaultPolicy(),
		logger:     logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the configured base URL.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// BuildURL appends message (and sessionID when set) as query parameters to the
// endpoint, keeping any query the endpoint already carries.
func (c *Client) BuildURL(message, sessionID string) string {
	u := *c.endpoint
	q := u.Query()
	q.Set(c.param, message)
	if sessionID != "" {
		q.Set(ParamSessionID, sessionID)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Lookup normalizes message, sends it with a GET, and returns the "output"
// field of the reply, or the whole reply when there is none.
func (c *Client) Lookup(ctx context.Context, message, sessionID string) (json.RawMessage, error) {
	if message == "" {
		return nil, oops.In("webhook").Code(CodeBadRequest).Errorf("message is required")
	}

	ctx, span := tracing.StartSpan(ctx, "webhook.lookup",
		attribute.String("webhook.param", c.param),
		attribute.Bool("webhook.has_session", sessionID != ""),
	)
	defer span.End()

	processed := NormalizeMessage(message)
	reqURL := c.BuildURL(processed, sessionID)
	c.logger.WithContext(ctx).WithSession(sessionID).WithFields(map[string]any{
		"message":   processed,
		"sniffed":   processed != message,
		"operation": "lookup",
	}).Debug("sending webhook lookup")

	res, err := c.do(ctx, "lookup", http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	return ExtractOutput(res.Body), nil
}

// Post sends payload as a JSON body and returns the extracted output.
func (c *Client) Post(ctx context.Context, payload any) (json.RawMessage, error) {
	res, err := c.ForwardJSON(ctx, payload)
	if err != nil {
		return nil, err
	}
	return ExtractOutput(res.Body), nil
}

// Forward sends message verbatim with a GET and returns the normalized body
// without output extraction.
func (c *Client) Forward(ctx context.Context, message, sessionID string) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "webhook.forward", attribute.String("webhook.param", c.param))
	defer span.End()

	return c.do(ctx, "forward", http.MethodGet, c.BuildURL(message, sessionID), nil)
}

// ForwardJSON POSTs payload to the endpoint. A json.RawMessage or []byte
// payload is sent as-is, anything else is marshaled.
func (c *Client) ForwardJSON(ctx context.Context, payload any) (*Result, error) {
	var body []byte
	switch p := payload.(type) {
	case json.RawMessage:
		body = p
	case []byte:
		body = p
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, oops.In("webhook").Code(CodeBadRequest).Wrapf(err, "encode webhook payload")
		}
		body = b
	}

	ctx, span := tracing.StartSpan(ctx, "webhook.post")
	defer span.End()

	return c.do(ctx, "post", http.MethodPost, c.endpoint.String(), body)
}

// Ping makes a single GET with a test message.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.BuildURL("test", ""), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ping webhook: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, reqURL string, body []byte) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, r)
	if err != nil {
		return nil, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	tracing.InjectHTTPHeaders(ctx, req.Header)
	return req, nil
}

func (c *Client) do(ctx context.Context, operation, method, reqURL string, body []byte) (*Result, error) {
	start := time.Now()

	resp, err := c.policy.Do(ctx, func(ctx context.Context) (*http.Response, error) {
		req, err := c.newRequest(ctx, method, reqURL, body)
		if err != nil {
			return nil, err
		}
		return c.httpClient.Do(req)
	})
	if err == nil {
		defer resp.Body.Close()
		var raw []byte
		raw, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err == nil {
			latency := time.Since(start)
			metrics.RecordLookup(operation, "success", latency)
			tracing.AddSpanEvent(ctx, "webhook.response", attribute.Int("http.status_code", resp.StatusCode))
			c.logger.WithContext(ctx).WithFields(map[string]any{
				"operation":  operation,
				"status":     resp.StatusCode,
				"latency_ms": latency.Milliseconds(),
			}).Debug("webhook responded")
			return &Result{StatusCode: resp.StatusCode, Body: DecodeBody(raw), Latency: latency}, nil
		}
		err = fmt.Errorf("read webhook response: %w", err)
	}

	latency := time.Since(start)
	metrics.RecordLookup(operation, "failed", latency)
	tracing.SetSpanError(ctx, err)
	c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
		"operation":  operation,
		"latency_ms": latency.Milliseconds(),
	}).Error("webhook request failed")

	return nil, oops.
		In("webhook").
		Code(errorCode(err)).
		With("operation", operation, "endpoint", c.endpoint.Redacted()).
		Wrapf(err, "failed to fetch data from webhook")
}

func errorCode(err error) string {
	var statusErr *retry.StatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CodeUpstreamTimeout
	case errors.As(err, &statusErr):
		return CodeUpstreamStatus
	default:
		if retry.ClassifyReason(err, 0) == "timeout" {
			return CodeUpstreamTimeout
		}
		return CodeUpstreamUnreachable
	}
}

// IsTimeout reports whether err came from the upstream deadline.
func IsTimeout(err error) bool {
	return errorCode(err) == CodeUpstreamTimeout
}

// AsStatusError unwraps the upstream non-2xx response behind err, if any.
func AsStatusError(err error) (*retry.StatusError, bool) {
	var statusErr *retry.StatusError
	if errors.As(err, &statusErr) {
		return statusErr, true
	}
	return nil, false
}
