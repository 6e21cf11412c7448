package handlers

import (
	"context"
	"net/http"

	"github.com/dvloznov/expense-tracker/internal/api/middleware"
)

// Pinger verifies a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health returns the GET /health handler. The endpoint reports degraded
// with a 503 when the database does not answer.
func Health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status":   "degraded",
					"database": err.Error(),
				})
				return
			}
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}
