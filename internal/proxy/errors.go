package proxy

import (
	"fmt"
	"net/http"

	"github.com/austindbirch/realty_relay/internal/webhook"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// classifyError maps an upstream failure to the proxy's status taxonomy:
// timeout 504, upstream non-2xx 502, anything else 500.
func classifyError(err error) (int, errorResponse) {
	if webhook.IsTimeout(err) {
		return http.StatusGatewayTimeout, errorResponse{
			Error:   "Webhook request timed out",
			Details: "The external service took too long to respond",
		}
	}
	if statusErr, ok := webhook.AsStatusError(err); ok {
		return http.StatusBadGateway, errorResponse{
			Error:   fmt.Sprintf("Error from webhook (%d)", statusErr.StatusCode),
			Details: statusErr.Body,
		}
	}
	return http.StatusInternalServerError, errorResponse{
		Error:   "Error during fetch to webhook",
		Details: err.Error(),
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, body := classifyError(err)
	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}
