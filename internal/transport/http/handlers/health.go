package http_handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/baechuer/pension-service/internal/infrastructure/db/postgres"
	"github.com/baechuer/pension-service/internal/transport/http/dto"
	"github.com/baechuer/pension-service/internal/transport/http/response"
)

// DBPinger is the part of the persistence gateway health needs.
type DBPinger interface {
	Ping(ctx context.Context) error
	Stats() postgres.Stats
}

type HealthHandler struct {
	db      DBPinger
	timeout time.Duration
}

func NewHealthHandler(db DBPinger) *HealthHandler {
	return &HealthHandler{db: db, timeout: 2 * time.Second}
}

// Health handles GET /health: 200 when the database answers SELECT 1, 503
// otherwise. Pool and query counters are included either way.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	start := time.Now()
	err := h.db.Ping(ctx)
	latency := time.Since(start)
	st := h.db.Stats()

	data := dto.HealthData{
		Status: "ok",
		Database: dto.DatabaseHealth{
			Up:        err == nil,
			LatencyMs: float64(latency.Microseconds()) / 1000,
		},
		Pool: dto.PoolStats{
			MaxOpen:        st.MaxOpenConnections,
			Open:           st.OpenConnections,
			InUse:          st.InUse,
			Idle:           st.Idle,
			WaitCount:      st.WaitCount,
			WaitDurationMs: st.WaitDuration.Milliseconds(),
		},
		Queries: dto.QueryStats{
			Total:      st.Queries,
			Errors:     st.Errors,
			Retries:    st.Retries,
			Reconnects: st.Reconnects,
			Slow:       st.SlowQueries,
		},
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusServiceUnavailable
		data.Status = "degraded"
		data.Database.Error = "database unavailable"
	}
	response.WriteJSON(w, status, response.Envelope{Success: err == nil, Data: data})
}
