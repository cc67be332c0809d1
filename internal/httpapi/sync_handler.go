package httpapi

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"punchsync/internal/poller"
	"punchsync/internal/repository"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Runner 轮询入口（由 poller.Orchestrator 实现）
type Runner interface {
	Run(ctx context.Context) (*poller.RunSummary, error)
}

// SyncHandler serves the scheduler-facing trigger plus ops visibility routes.
type SyncHandler struct {
	runner        Runner
	devices       repository.DevicesRepo
	db            *sql.DB
	redisClient   *redis.Client
	triggerSecret string
	logger        *zap.Logger
}

func NewSyncHandler(
	runner Runner,
	devices repository.DevicesRepo,
	db *sql.DB,
	redisClient *redis.Client,
	triggerSecret string,
	logger *zap.Logger,
) *SyncHandler {
	return &SyncHandler{
		runner:        runner,
		devices:       devices,
		db:            db,
		redisClient:   redisClient,
		triggerSecret: triggerSecret,
		logger:        logger,
	}
}

// TriggerPoll runs one poll pass. The bearer secret is checked before any
// device is touched; a mismatch never reaches the orchestrator.
func (h *SyncHandler) TriggerPoll(w http.ResponseWriter, req *http.Request) {
	if !h.authorized(req) {
		writeJSON(w, http.StatusUnauthorized, Fail("unauthorized"))
		return
	}

	summary, err := h.runner.Run(req.Context())
	if err != nil {
		h.logger.Error("Poll run failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("poll run failed"))
		return
	}

	writeJSON(w, http.StatusOK, Ok(summary))
}

// ListDevices exposes per-device sync health for the dashboard boundary.
func (h *SyncHandler) ListDevices(w http.ResponseWriter, req *http.Request) {
	if !h.authorized(req) {
		writeJSON(w, http.StatusUnauthorized, Fail("unauthorized"))
		return
	}

	devices, err := h.devices.ListPollable(req.Context())
	if err != nil {
		h.logger.Error("Failed to list devices", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list devices"))
		return
	}

	out := make([]map[string]any, 0, len(devices))
	for i := range devices {
		out = append(out, devices[i].ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(out))
}

// Health reports db/redis reachability.
func (h *SyncHandler) Health(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"service": "ok", "db": "ok", "redis": "ok"}
	healthy := true

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			status["db"] = err.Error()
			healthy = false
		}
	} else {
		status["db"] = "not configured"
	}
	if h.redisClient != nil {
		if err := h.redisClient.Ping(ctx).Err(); err != nil {
			status["redis"] = err.Error()
			healthy = false
		}
	} else {
		status["redis"] = "not configured"
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, Ok(status))
}

func (h *SyncHandler) authorized(req *http.Request) bool {
	if h.triggerSecret == "" {
		return false
	}
	auth := req.Header.Get("Authorization")
	token := strings.TrimPrefix(auth, "Bearer ")
	if token == auth {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.triggerSecret)) == 1
}
