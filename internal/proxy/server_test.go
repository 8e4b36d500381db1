package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/austindbirch/realty_relay/internal/config"
	"github.com/austindbirch/realty_relay/internal/logging"
	"github.com/austindbirch/realty_relay/internal/metrics"
	"github.com/austindbirch/realty_relay/internal/realty"
	"github.com/austindbirch/realty_relay/internal/retry"
	"github.com/austindbirch/realty_relay/internal/webhook"
)

func init() {
	logging.Default().SetOutput(io.Discard)
}

// upstreamRecorder is a stand-in n8n webhook.
type upstreamRecorder struct {
	mu      sync.Mutex
	queries []url.Values
	bodies  []string
	handler http.HandlerFunc
}

func (u *upstreamRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	u.mu.Lock()
	u.queries = append(u.queries, r.URL.Query())
	u.bodies = append(u.bodies, string(b))
	u.mu.Unlock()
	u.handler(w, r)
}

func (u *upstreamRecorder) calls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.queries)
}

func replyJSON(code int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = io.WriteString(w, body)
	}
}

type harness struct {
	upstream *upstreamRecorder
	server   *httptest.Server
	handler  http.Handler
}

func newHarness(t *testing.T, cfg config.Proxy, reply http.HandlerFunc) *harness {
	t.Helper()

	up := &upstreamRecorder{handler: reply}
	srv := httptest.NewServer(up)
	t.Cleanup(srv.Close)

	proxyClient, err := webhook.New(srv.URL+"/webhook/realty-agent",
		webhook.WithPolicy(retry.Policy{MaxAttempts: 1, InitialBackoff: time.Millisecond}))
	if err != nil {
		t.Fatalf("webhook.New() error = %v", err)
	}
	agentClient, err := webhook.New(srv.URL+"/webhook/realty-agent",
		webhook.WithPolicy(retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, RetryClientErrors: true}))
	if err != nil {
		t.Fatalf("webhook.New() error = %v", err)
	}

	s := New(cfg, proxyClient, realty.NewAgent(agentClient))
	return &harness{upstream: up, server: srv, handler: s.Routes()}
}

func (h *harness) do(method, target string, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var e errorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("error body %q is not JSON: %v", w.Body.String(), err)
	}
	return e
}

func TestRealtyGet(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		reply       http.HandlerFunc
		wantStatus  int
		wantBody    string
		wantError   string
		wantDetails string
		wantMessage string
		wantCalls   int
	}{
		{
			name:        "missing parameter",
			target:      "/api/realty",
			reply:       replyJSON(200, `{}`),
			wantStatus:  http.StatusBadRequest,
			wantError:   `Missing required message parameter (use "contactMessage" or "message")`,
			wantCalls:   0,
			wantMessage: "",
		},
		{
			name:        "message parameter forwarded as contactMessage",
			target:      "/api/realty?message=" + url.QueryEscape("2 BHK in Sector 62"),
			reply:       replyJSON(200, `{"output":"3 listings"}`),
			wantStatus:  http.StatusOK,
			wantBody:    `{"output":"3 listings"}`,
			wantMessage: "2 BHK in Sector 62",
			wantCalls:   1,
		},
		{
			name:        "contactMessage wins over message",
			target:      "/api/realty?message=loser&contactMessage=winner",
			reply:       replyJSON(200, `{"ok":true}`),
			wantStatus:  http.StatusOK,
			wantBody:    `{"ok":true}`,
			wantMessage: "winner",
			wantCalls:   1,
		},
		{
			name:        "json message forwarded without sniffing",
			target:      "/api/realty?contactMessage=" + url.QueryEscape(`{"text":"hi"}`),
			reply:       replyJSON(200, `{}`),
			wantStatus:  http.StatusOK,
			wantBody:    `{}`,
			wantMessage: `{"text":"hi"}`,
			wantCalls:   1,
		},
		{
			name:   "non-json upstream body wrapped",
			target: "/api/realty?message=hi",
			reply: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, "Workflow was started")
			},
			wantStatus:  http.StatusOK,
			wantBody:    `{"text":"Workflow was started"}`,
			wantMessage: "hi",
			wantCalls:   1,
		},
		{
			name:        "upstream non-2xx is 502 with details",
			target:      "/api/realty?message=hi",
			reply:       replyJSON(500, `{"message":"Workflow could not be started!"}`),
			wantStatus:  http.StatusBadGateway,
			wantError:   "Error from webhook (500)",
			wantDetails: `{"message":"Workflow could not be started!"}`,
			wantMessage: "hi",
			wantCalls:   1,
		},
		{
			name:        "inactive workflow 404 is 502",
			target:      "/api/realty?message=hi",
			reply:       replyJSON(404, `{"code":404}`),
			wantStatus:  http.StatusBadGateway,
			wantError:   "Error from webhook (404)",
			wantDetails: `{"code":404}`,
			wantMessage: "hi",
			wantCalls:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, config.Proxy{}, tt.reply)
			w := h.do(http.MethodGet, tt.target, "")

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			if h.upstream.calls() != tt.wantCalls {
				t.Errorf("upstream calls = %d, want %d", h.upstream.calls(), tt.wantCalls)
			}
			if tt.wantCalls > 0 {
				if got := h.upstream.queries[0].Get("contactMessage"); got != tt.wantMessage {
					t.Errorf("upstream contactMessage = %q, want %q", got, tt.wantMessage)
				}
			}

			if tt.wantError != "" {
				e := decodeError(t, w)
				if e.Error != tt.wantError {
					t.Errorf("error = %q, want %q", e.Error, tt.wantError)
				}
				if e.Details != tt.wantDetails {
					t.Errorf("details = %q, want %q", e.Details, tt.wantDetails)
				}
				return
			}
			if got := strings.TrimSpace(w.Body.String()); got != tt.wantBody {
				t.Errorf("body = %s, want %s", got, tt.wantBody)
			}
		})
	}
}

func TestRealtyGet_SessionID(t *testing.T) {
	h := newHarness(t, config.Proxy{}, replyJSON(200, `{}`))
	w := h.do(http.MethodGet, "/api/realty?message=hi&sessionId=abc-123", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := h.upstream.queries[0].Get("sessionId"); got != "abc-123" {
		t.Errorf("upstream sessionId = %q, want abc-123", got)
	}
}

func TestRealtyGet_Timeout(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, config.Proxy{Timeout: 50 * time.Millisecond}, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	start := time.Now()
	w := h.do(http.MethodGet, "/api/realty?message=slow", "")

	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504 (body %s)", w.Code, w.Body.String())
	}
	if e := decodeError(t, w); e.Error != "Webhook request timed out" {
		t.Errorf("error = %q", e.Error)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout not enforced, took %v", elapsed)
	}
}

func TestRealtyGet_UnreachableUpstream(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	endpoint := dead.URL
	dead.Close()

	client, err := webhook.New(endpoint, webhook.WithPolicy(retry.Policy{MaxAttempts: 1, InitialBackoff: time.Millisecond}))
	if err != nil {
		t.Fatalf("webhook.New() error = %v", err)
	}
	handler := New(config.Proxy{}, client, realty.NewAgent(client)).Routes()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/realty?message=hi", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	e := decodeError(t, w)
	if e.Error != "Error during fetch to webhook" || e.Details == "" {
		t.Errorf("error body = %+v", e)
	}
}

func TestRealtyGet_WrongMethod(t *testing.T) {
	h := newHarness(t, config.Proxy{}, replyJSON(200, `{}`))
	w := h.do(http.MethodDelete, "/api/realty?message=hi", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestRealtyPost(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		reply      http.HandlerFunc
		wantStatus int
		wantBody   string
		wantError  string
	}{
		{
			name:       "body forwarded",
			body:       `{"request_type":"general_lookup","search_term":"Sector 150"}`,
			reply:      replyJSON(200, `{"output":"ok"}`),
			wantStatus: http.StatusOK,
			wantBody:   `{"output":"ok"}`,
		},
		{
			name:       "upstream status echoed",
			body:       `{"a":1}`,
			reply:      replyJSON(404, `not registered`),
			wantStatus: http.StatusNotFound,
			wantError:  "Webhook responded with status: 404",
		},
		{
			name:       "invalid json rejected",
			body:       `{"a":`,
			reply:      replyJSON(200, `{}`),
			wantStatus: http.StatusBadRequest,
			wantError:  "Error forwarding request: body must be valid JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, config.Proxy{}, tt.reply)
			w := h.do(http.MethodPost, "/api/realty", tt.body)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantError != "" {
				if e := decodeError(t, w); e.Error != tt.wantError {
					t.Errorf("error = %q, want %q", e.Error, tt.wantError)
				}
				return
			}
			if got := strings.TrimSpace(w.Body.String()); got != tt.wantBody {
				t.Errorf("body = %s, want %s", got, tt.wantBody)
			}
			if h.upstream.bodies[0] != tt.body {
				t.Errorf("upstream body = %s, want %s", h.upstream.bodies[0], tt.body)
			}
		})
	}
}

func TestChat(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		reply       http.HandlerFunc
		wantStatus  int
		wantResp    string
		wantMessage string
		wantSession string
	}{
		{
			name:        "output extracted",
			body:        `{"message":"villas near expressway","sessionId":"s-1"}`,
			reply:       replyJSON(200, `{"output":"Found 2 villas"}`),
			wantStatus:  http.StatusOK,
			wantResp:    `{"response":"Found 2 villas"}`,
			wantMessage: "villas near expressway",
			wantSession: "s-1",
		},
		{
			name:        "json message sniffed",
			body:        `{"message":"{\"query\":\"plots\"}"}`,
			reply:       replyJSON(200, `{"result":1}`),
			wantStatus:  http.StatusOK,
			wantResp:    `{"response":{"result":1}}`,
			wantMessage: "plots",
		},
		{
			name:       "missing message",
			body:       `{"sessionId":"s-1"}`,
			reply:      replyJSON(200, `{}`),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid body",
			body:       `nope`,
			reply:      replyJSON(200, `{}`),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "upstream failing after retries",
			body:       `{"message":"hi"}`,
			reply:      replyJSON(503, `busy`),
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, config.Proxy{}, tt.reply)
			w := h.do(http.MethodPost, "/api/chat", tt.body)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantResp == "" {
				return
			}
			if got := strings.TrimSpace(w.Body.String()); got != tt.wantResp {
				t.Errorf("body = %s, want %s", got, tt.wantResp)
			}
			q := h.upstream.queries[0]
			if q.Get("contactMessage") != tt.wantMessage {
				t.Errorf("upstream contactMessage = %q, want %q", q.Get("contactMessage"), tt.wantMessage)
			}
			if q.Get("sessionId") != tt.wantSession {
				t.Errorf("upstream sessionId = %q, want %q", q.Get("sessionId"), tt.wantSession)
			}
		})
	}
}

func TestChat_RetriesUpstream(t *testing.T) {
	h := newHarness(t, config.Proxy{}, replyJSON(500, `down`))
	w := h.do(http.MethodPost, "/api/chat", `{"message":"hi"}`)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	if h.upstream.calls() != 3 {
		t.Errorf("upstream calls = %d, want 3", h.upstream.calls())
	}
}

func TestTools(t *testing.T) {
	h := newHarness(t, config.Proxy{}, replyJSON(200, `{"output":{"id":"P-3"}}`))

	w := h.do(http.MethodGet, "/api/tools", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/tools status = %d", w.Code)
	}
	var catalogue struct {
		Tools []realty.Tool `json:"tools"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &catalogue); err != nil {
		t.Fatalf("decode catalogue: %v", err)
	}
	if len(catalogue.Tools) != len(realty.Tools()) {
		t.Errorf("catalogue has %d tools, want %d", len(catalogue.Tools), len(realty.Tools()))
	}

	tests := []struct {
		name       string
		target     string
		body       string
		wantStatus int
	}{
		{name: "dispatch", target: "/api/tools/getPropertyDetails?sessionId=x", body: `{"propertyId":"P-3"}`, wantStatus: http.StatusOK},
		{name: "unknown tool", target: "/api/tools/bookViewing", body: `{}`, wantStatus: http.StatusNotFound},
		{name: "bad arguments", target: "/api/tools/compareProperties", body: `{"properties":[]}`, wantStatus: http.StatusBadRequest},
		{name: "blank id", target: "/api/tools/getPropertyDetails", body: `{"propertyId":"  "}`, wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(http.MethodPost, tt.target, tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}

	w = h.do(http.MethodPost, "/api/tools/getPropertyDetails?sessionId=x", `{"propertyId":"P-3"}`)
	if got := strings.TrimSpace(w.Body.String()); got != `{"response":{"id":"P-3"}}` {
		t.Errorf("dispatch body = %s", got)
	}
}

func TestWebhookTest_Disabled(t *testing.T) {
	h := newHarness(t, config.Proxy{}, replyJSON(200, `{}`))
	w := h.do(http.MethodPost, "/api/webhook-test", `{"webhookUrl":"http://example.com"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when disabled", w.Code)
	}
}

func TestWebhookTest(t *testing.T) {
	var (
		mu        sync.Mutex
		gotMethod string
		gotQuery  url.Values
		gotBody   string
	)
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotMethod, gotQuery, gotBody = r.Method, r.URL.Query(), string(b)
		mu.Unlock()
		if r.URL.Path == "/text" {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = io.WriteString(w, "plain answer")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-N8n-Execution", "42")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"received":true}`)
	}))
	defer target.Close()

	h := newHarness(t, config.Proxy{EnableWebhookTest: true}, replyJSON(200, `{}`))

	t.Run("post with payload", func(t *testing.T) {
		body := `{"webhookUrl":"` + target.URL + `/hook","method":"POST","payload":{"contactMessage":"hi"}}`
		w := h.do(http.MethodPost, "/api/webhook-test", body)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d (body %s)", w.Code, w.Body.String())
		}

		var res webhookTestResponse
		if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !res.Success || res.Status != 201 || res.StatusText != "Created" {
			t.Errorf("result = %+v", res)
		}
		if res.Headers["x-n8n-execution"] != "42" {
			t.Errorf("headers = %v", res.Headers)
		}
		if string(res.Data) != `{"received":true}` {
			t.Errorf("data = %s", res.Data)
		}
		if res.RequestMethod != "POST" || res.RequestURL != target.URL+"/hook" {
			t.Errorf("request echo = %s %s", res.RequestMethod, res.RequestURL)
		}
		mu.Lock()
		defer mu.Unlock()
		if gotMethod != "POST" || gotBody != `{"contactMessage":"hi"}` {
			t.Errorf("target saw %s %s", gotMethod, gotBody)
		}
	})

	t.Run("post without payload sends whole request", func(t *testing.T) {
		body := `{"webhookUrl":"` + target.URL + `/hook"}`
		w := h.do(http.MethodPost, "/api/webhook-test", body)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		mu.Lock()
		defer mu.Unlock()
		if gotBody != body {
			t.Errorf("target body = %s, want %s", gotBody, body)
		}
	})

	t.Run("get with query params", func(t *testing.T) {
		body := `{"webhookUrl":"` + target.URL + `/text","method":"GET","queryParams":{"contactMessage":"hi","limit":5,"skip":null}}`
		w := h.do(http.MethodPost, "/api/webhook-test", body)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var res webhookTestResponse
		if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if string(res.Data) != `{"text":"plain answer"}` {
			t.Errorf("data = %s", res.Data)
		}
		mu.Lock()
		defer mu.Unlock()
		if gotMethod != "GET" || gotBody != "" {
			t.Errorf("target saw %s with body %q", gotMethod, gotBody)
		}
		if gotQuery.Get("contactMessage") != "hi" || gotQuery.Get("limit") != "5" || gotQuery.Has("skip") {
			t.Errorf("target query = %v", gotQuery)
		}
	})

	t.Run("missing url", func(t *testing.T) {
		w := h.do(http.MethodPost, "/api/webhook-test", `{"method":"GET"}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", w.Code)
		}
		var f webhookTestFailure
		_ = json.Unmarshal(w.Body.Bytes(), &f)
		if f.Error != "Missing webhook URL" || f.Success {
			t.Errorf("failure = %+v", f)
		}
	})

	t.Run("unsupported method", func(t *testing.T) {
		w := h.do(http.MethodPost, "/api/webhook-test", `{"webhookUrl":"`+target.URL+`","method":"TRACE"}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("usage info", func(t *testing.T) {
		w := h.do(http.MethodGet, "/api/webhook-test", "")
		if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"supportedMethods"`)) {
			t.Errorf("usage = %d %s", w.Code, w.Body.String())
		}
	})
}

func TestWebhookTest_Timeout(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)

	h := newHarness(t, config.Proxy{EnableWebhookTest: true, WebhookTestTimeout: 30 * time.Millisecond}, replyJSON(200, `{}`))
	w := h.do(http.MethodPost, "/api/webhook-test", `{"webhookUrl":"`+slow.URL+`","method":"GET"}`)

	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", w.Code)
	}
	var f webhookTestFailure
	_ = json.Unmarshal(w.Body.Bytes(), &f)
	if !f.Timeout || f.Success {
		t.Errorf("failure = %+v", f)
	}
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name       string
		probe      bool
		reply      http.HandlerFunc
		wantStatus int
		wantCalls  int
	}{
		{name: "liveness only", probe: false, reply: replyJSON(500, ``), wantStatus: http.StatusOK, wantCalls: 0},
		{name: "upstream healthy", probe: true, reply: replyJSON(200, `{}`), wantStatus: http.StatusOK, wantCalls: 1},
		{name: "upstream failing", probe: true, reply: replyJSON(500, ``), wantStatus: http.StatusServiceUnavailable, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, config.Proxy{ProbeUpstream: tt.probe}, tt.reply)
			w := h.do(http.MethodGet, "/healthz", "")
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if h.upstream.calls() != tt.wantCalls {
				t.Errorf("upstream calls = %d, want %d", h.upstream.calls(), tt.wantCalls)
			}
			if tt.wantCalls > 0 && h.upstream.queries[0].Get("contactMessage") != "test" {
				t.Errorf("probe message = %q", h.upstream.queries[0].Get("contactMessage"))
			}
		})
	}
}

func TestInstrument_RequestIDAndMetrics(t *testing.T) {
	h := newHarness(t, config.Proxy{}, replyJSON(200, `{}`))

	before := testutil.ToFloat64(metrics.ProxyResponsesTotal.WithLabelValues("realty", "400"))
	w := h.do(http.MethodGet, "/api/realty", "")
	after := testutil.ToFloat64(metrics.ProxyResponsesTotal.WithLabelValues("realty", "400"))

	if after-before != 1 {
		t.Errorf("ProxyResponsesTotal{realty,400} delta = %v, want 1", after-before)
	}
	if id := w.Header().Get(RequestIDHeader); len(id) != 36 {
		t.Errorf("generated request ID = %q, want a UUID", id)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/realty", nil)
	req.Header.Set(RequestIDHeader, "caller-supplied")
	w = httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "caller-supplied" {
		t.Errorf("request ID = %q, want caller-supplied", got)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "status", err: &retry.StatusError{StatusCode: 503, Body: "x"}, wantStatus: http.StatusBadGateway},
		{name: "deadline", err: context.DeadlineExceeded, wantStatus: http.StatusGatewayTimeout},
		{name: "other", err: io.ErrUnexpectedEOF, wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := classifyError(tt.err); got != tt.wantStatus {
				t.Errorf("classifyError(%v) = %d, want %d", tt.err, got, tt.wantStatus)
			}
		})
	}
}
