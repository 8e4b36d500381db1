package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/elliotchance/pie/v2"

	"github.com/austindbirch/realty_relay/internal/retry"
	"github.com/austindbirch/realty_relay/internal/tracing"
	"github.com/austindbirch/realty_relay/internal/webhook"
)

var webhookTestMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodPatch,
	http.MethodHead,
}

type webhookTestRequest struct {
	WebhookURL  string                     `json:"webhookUrl"`
	Method      string                     `json:"method"`
	Payload     json.RawMessage            `json:"payload"`
	QueryParams map[string]json.RawMessage `json:"queryParams"`
}

type webhookTestResponse struct {
	Success       bool              `json:"success"`
	Status        int               `json:"status"`
	StatusText    string            `json:"statusText"`
	Headers       map[string]string `json:"headers"`
	ResponseTime  int64             `json:"responseTime"`
	Data          json.RawMessage   `json:"data"`
	RequestMethod string            `json:"requestMethod"`
	RequestURL    string            `json:"requestUrl"`
}

type webhookTestFailure struct {
	Error   string `json:"error"`
	Success bool   `json:"success"`
	Timeout bool   `json:"timeout,omitempty"`
	Type    string `json:"type,omitempty"`
}

// handleWebhookTest calls an arbitrary webhook once and reports what came
// back, for debugging n8n workflows.
func (s *Server) handleWebhookTest(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, webhookTestFailure{Error: err.Error()})
		return
	}
	var req webhookTestRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, webhookTestFailure{Error: err.Error()})
		return
	}
	if req.WebhookURL == "" {
		writeJSON(w, http.StatusBadRequest, webhookTestFailure{Error: "Missing webhook URL"})
		return
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodPost
	}
	if !pie.Contains(webhookTestMethods, method) {
		writeJSON(w, http.StatusBadRequest, webhookTestFailure{Error: fmt.Sprintf("unsupported method %q", req.Method)})
		return
	}

	target, err := webhookTestURL(req.WebhookURL, method, req.QueryParams)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, webhookTestFailure{Error: err.Error()})
		return
	}

	var body []byte
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		if p := bytes.TrimSpace(req.Payload); len(p) > 0 && string(p) != "null" {
			body = p
		} else if method == http.MethodPost {
			body = raw
		}
	}

	timeout := s.cfg.WebhookTestTimeout
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	outReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, webhookTestFailure{Error: err.Error()})
		return
	}
	outReq.Header.Set("Content-Type", "application/json")
	tracing.InjectHTTPHeaders(ctx, outReq.Header)

	s.logger.WithContext(ctx).WithRequest(RequestID(r.Context())).WithFields(map[string]any{
		"url":      target,
		"method":   method,
		"has_body": body != nil,
	}).Info("webhook test request")

	start := time.Now()
	resp, err := s.testClient.Do(outReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeJSON(w, http.StatusGatewayTimeout, webhookTestFailure{
				Error:   fmt.Sprintf("Request timed out after %s", timeout),
				Timeout: true,
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, webhookTestFailure{
			Error: err.Error(),
			Type:  retry.ClassifyReason(err, 0),
		})
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, webhookTestFailure{Error: err.Error(), Type: "read"})
		return
	}
	elapsed := time.Since(start)

	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		headers[strings.ToLower(k)] = strings.Join(v, ", ")
	}

	writeJSON(w, http.StatusOK, webhookTestResponse{
		Success:       resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status:        resp.StatusCode,
		StatusText:    strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "),
		Headers:       headers,
		ResponseTime:  elapsed.Milliseconds(),
		Data:          webhookTestData(resp.Header.Get("Content-Type"), respBody),
		RequestMethod: method,
		RequestURL:    target,
	})
}

// webhookTestURL appends queryParams to rawURL for GET requests. Null values
// are skipped, strings are sent unquoted, anything else as its JSON text.
func webhookTestURL(rawURL, method string, params map[string]json.RawMessage) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid webhook URL: scheme must be http or https")
	}
	if method != http.MethodGet || len(params) == 0 {
		return u.String(), nil
	}

	q := u.Query()
	for k, v := range params {
		v = bytes.TrimSpace(v)
		if len(v) == 0 || string(v) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			q.Add(k, s)
			continue
		}
		q.Add(k, string(v))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// webhookTestData keeps JSON responses as-is and wraps everything else as
// {"text": body}.
func webhookTestData(contentType string, body []byte) json.RawMessage {
	if strings.Contains(contentType, "application/json") {
		if trimmed := bytes.TrimSpace(body); json.Valid(trimmed) {
			return trimmed
		}
	}
	return webhook.WrapText(body)
}

func (s *Server) handleWebhookTestInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"info": "Webhook testing API endpoint",
		"usage": map[string]any{
			"method": "POST",
			"body": map[string]any{
				"webhookUrl":  "https://your-n8n-webhook-url.com/webhook/path",
				"method":      "GET or POST",
				"payload":     map[string]any{},
				"queryParams": map[string]any{},
			},
		},
		"supportedMethods": webhookTestMethods,
		"note":             "This API acts as a proxy for testing webhook connections with detailed logging",
	})
}
