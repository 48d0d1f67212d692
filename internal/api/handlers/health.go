package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports liveness and readiness. Readiness requires the
// ledger database and the redis instance backing run records and the
// task queue; with either down, generation requests cannot be served.
type HealthHandler struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewHealthHandler(db *pgxpool.Pool, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]func() error{}
	if h.db != nil {
		checks["postgres"] = func() error { return h.db.Ping(r.Context()) }
	}
	if h.redis != nil {
		checks["redis"] = func() error { return h.redis.Ping(r.Context()).Err() }
	}

	status := http.StatusOK
	detail := make(map[string]string, len(checks))
	for name, check := range checks {
		if err := check(); err != nil {
			detail[name] = "unhealthy: " + err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		detail[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "unhealthy"
	}
	writeJSON(w, status, map[string]interface{}{"status": overall, "checks": detail})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
