package handlers

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"megatrade-web/queue"
	"megatrade-web/utils"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type QueueProbe interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (queue.Stats, error)
}

type HealthHandler struct {
	db        Pinger
	queue     QueueProbe
	startTime time.Time
}

func NewHealthHandler(db Pinger, q QueueProbe) *HealthHandler {
	return &HealthHandler{db: db, queue: q, startTime: time.Now()}
}

type healthResponse struct {
	Status    string       `json:"status"`
	Time      string       `json:"time"`
	Database  string       `json:"database"`
	Redis     string       `json:"redis"`
	Queue     *queue.Stats `json:"queue,omitempty"`
	Uptime    string       `json:"uptime"`
	GoVersion string       `json:"go_version"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	health := healthResponse{
		Status:    "ok",
		Time:      time.Now().Format(time.RFC3339),
		Database:  "connected",
		Redis:     "connected",
		Uptime:    fmt.Sprintf("%v", time.Since(h.startTime).Round(time.Second)),
		GoVersion: runtime.Version(),
	}

	dbCtx, dbCancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer dbCancel()
	if h.db == nil || h.db.PingContext(dbCtx) != nil {
		health.Status = "degraded"
		health.Database = "error"
	}

	redisCtx, redisCancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer redisCancel()
	if h.queue == nil || h.queue.Ping(redisCtx) != nil {
		health.Status = "degraded"
		health.Redis = "error"
	} else if stats, err := h.queue.Stats(redisCtx); err == nil {
		health.Queue = &stats
	}

	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	utils.SendJSON(w, status, health)
}
