package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/austindbirch/realty_relay/internal/config"
	"github.com/austindbirch/realty_relay/internal/logging"
	"github.com/austindbirch/realty_relay/internal/webhook"
)

const webhookPath = "/webhook/realty-agent"

// fakeN8N answers realty-agent webhook calls the way the workflow does,
// wrapping a canned reply in {"output": ...}.
type fakeN8N struct {
	failFirstN int64
	delay      time.Duration
	reqCount   atomic.Int64
	logger     *logging.Logger
}

func newFakeN8N(cfg config.FakeN8N) *fakeN8N {
	return &fakeN8N{
		failFirstN: int64(cfg.FailFirstN),
		delay:      time.Duration(cfg.ResponseDelayMS) * time.Millisecond,
		logger:     logging.Default(),
	}
}

func main() {
	cfg := config.FromEnv()
	logging.SetDefaultService("fake-n8n")
	logger := logging.Default()
	logger.SetLevel(logging.ParseLevel(cfg.LogLevel))

	f := newFakeN8N(cfg.FakeN8N)

	srv := &http.Server{
		Addr:         cfg.FakeN8N.Port,
		Handler:      f.routes(),
		ReadTimeout:  cfg.FakeN8N.ReadTimeout,
		WriteTimeout: cfg.FakeN8N.WriteTimeout,
		IdleTimeout:  cfg.FakeN8N.IdleTimeout,
	}

	logger.Plain().WithFields(map[string]any{
		"addr":         srv.Addr,
		"path":         webhookPath,
		"fail_first_n": f.failFirstN,
		"delay_ms":     f.delay.Milliseconds(),
	}).Info("fake-n8n listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Plain().WithError(err).Fatal("fake-n8n server failed")
	}
}

func (f *fakeN8N) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"ok":true}`)) })
	mux.HandleFunc(webhookPath, f.handleWebhook)
	return mux
}

func (f *fakeN8N) handleWebhook(w http.ResponseWriter, r *http.Request) {
	n := f.reqCount.Add(1)

	message, sessionID, err := readMessage(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-r.Context().Done():
			return
		}
	}

	entry := f.logger.WithContext(r.Context()).WithSession(sessionID).WithFields(map[string]any{
		"method":  r.Method,
		"request": n,
		"message": truncate(message, 160),
	})

	// Simulate flakiness: first N requests -> 500
	if n <= f.failFirstN {
		entry.Warnf("FAILING (%d/%d)", n, f.failFirstN)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"Workflow could not be started!"}`))
		return
	}

	entry.Info("fake-n8n OK")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"output": reply(message, sessionID)})
}

// readMessage takes contactMessage (or message) from the query string for
// GET, and the raw JSON body for anything else.
func readMessage(r *http.Request) (message, sessionID string, err error) {
	q := r.URL.Query()
	sessionID = q.Get(webhook.ParamSessionID)

	if r.Method == http.MethodGet {
		message = q.Get(webhook.ParamContactMessage)
		if message == "" {
			message = q.Get(webhook.ParamMessage)
		}
		if message == "" {
			return "", "", fmt.Errorf("missing %s query parameter", webhook.ParamContactMessage)
		}
		return message, sessionID, nil
	}

	b, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return "", "", fmt.Errorf("read body: %w", err)
	}
	if !json.Valid(b) {
		return "", "", fmt.Errorf("body must be JSON")
	}
	return string(b), sessionID, nil
}

func reply(message, sessionID string) string {
	if sessionID != "" {
		return fmt.Sprintf("Realty agent received %q (session %s)", message, sessionID)
	}
	return fmt.Sprintf("Realty agent received %q", message)
}

// truncate truncates a string to the specified length and adds an ellipsis if truncated
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
