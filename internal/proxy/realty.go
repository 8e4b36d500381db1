package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/austindbirch/realty_relay/internal/realty"
	"github.com/austindbirch/realty_relay/internal/webhook"
)

// handleRealtyGet forwards ?contactMessage= (or ?message=) to the webhook.
// contactMessage wins when both are set.
func (s *Server) handleRealtyGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	message := q.Get(webhook.ParamContactMessage)
	if message == "" {
		message = q.Get(webhook.ParamMessage)
	}
	if message == "" {
		badRequest(w, `Missing required message parameter (use "contactMessage" or "message")`)
		return
	}
	sessionID := q.Get(webhook.ParamSessionID)

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	s.logger.WithContext(ctx).WithRequest(RequestID(ctx)).WithSession(sessionID).
		WithField("message", message).Debug("forwarding realty lookup")

	res, err := s.upstream.Forward(ctx, message, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, res.Body)
}

// handleRealtyPost forwards the JSON request body to the webhook. An upstream
// non-2xx status is echoed back.
func (s *Server) handleRealtyPost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		badRequest(w, fmt.Sprintf("Error forwarding request: %v", err))
		return
	}
	if !json.Valid(body) {
		badRequest(w, "Error forwarding request: body must be valid JSON")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	res, err := s.upstream.ForwardJSON(ctx, json.RawMessage(body))
	if err != nil {
		if statusErr, ok := webhook.AsStatusError(err); ok && !webhook.IsTimeout(err) {
			writeJSON(w, statusErr.StatusCode, errorResponse{
				Error: fmt.Sprintf("Webhook responded with status: %d", statusErr.StatusCode),
			})
			return
		}
		writeError(w, err)
		return
	}
	writeRaw(w, http.StatusOK, res.Body)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type chatResponse struct {
	Response json.RawMessage `json:"response"`
}

// handleChat runs a realty lookup for a text chat message.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		badRequest(w, "Invalid JSON in request body")
		return
	}
	if req.Message == "" {
		badRequest(w, "Missing message in request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	out, err := s.agent.Lookup(ctx, req.Message, req.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: out})
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": realty.Tools()})
}

// handleToolCall runs a named agent tool with the request body as its
// arguments.
func (s *Server) handleToolCall(w http.ResponseWriter, r *http.Request) {
	args, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		badRequest(w, fmt.Sprintf("read arguments: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	name := r.PathValue("name")
	out, err := s.agent.Dispatch(ctx, name, args, r.URL.Query().Get(webhook.ParamSessionID))
	if err != nil {
		if errors.Is(err, realty.ErrUnknownTool) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
		var argErr *realty.ArgumentError
		if errors.As(err, &argErr) {
			badRequest(w, err.Error())
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: out})
}
