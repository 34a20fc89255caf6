package api

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker reports whether a backing dependency is usable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type HealthResponse struct {
	Status    string `json:"status"`
	Sessions  string `json:"sessions"`
	Timestamp int64  `json:"timestamp"`
}

// HealthCheckHandler reports liveness plus the state of the session store.
// An unreachable store answers 503 so load balancers stop routing logins here.
func HealthCheckHandler(sessions HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:    "healthy",
			Sessions:  "ok",
			Timestamp: time.Now().Unix(),
		}
		status := http.StatusOK

		if sessions != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := sessions.Ping(ctx); err != nil {
				resp.Status = "degraded"
				resp.Sessions = "unavailable"
				status = http.StatusServiceUnavailable
			}
		}
		writeJSON(w, status, resp)
	}
}
