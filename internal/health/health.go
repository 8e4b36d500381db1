package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger checks a dependency. *webhook.Client satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Status struct {
	OK       bool   `json:"ok"`
	Message  string `json:"message,omitempty"`
	Upstream *bool  `json:"upstream,omitempty"`
}

// DefaultProbeTimeout bounds the upstream check.
const DefaultProbeTimeout = 5 * time.Second

// HTTPHandler returns an HTTP handler that reports the health status of the
// service. With a nil pinger only liveness is reported.
func HTTPHandler(p Pinger, timeout time.Duration) http.HandlerFunc {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return func(w http.ResponseWriter, r *http.Request) {
		st := Status{OK: true, Message: "ok"}
		code := http.StatusOK

		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			up := true
			if err := p.Ping(ctx); err != nil {
				up = false
				st.OK = false
				st.Message = "webhook probe failed: " + err.Error()
				code = http.StatusServiceUnavailable
			}
			st.Upstream = &up
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(st)
	}
}
