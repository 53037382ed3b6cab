package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/adrve/cloud-analytics/internal/models"
)

type store interface {
	DetectionsInWindow(ctx context.Context, start, end int64) ([]models.DetectionRecord, error)
	RecentCommands(ctx context.Context, deviceID string, limit int) ([]models.CommandRecord, error)
	ListDevices(ctx context.Context) ([]models.Device, error)
	FramePath(ctx context.Context, frameID string) (string, error)
}

type frameStore interface {
	GetFrame(ctx context.Context, key string) ([]byte, error)
}

type commandPublisher interface {
	Publish(ctx context.Context, deviceID string, cmd models.Command, origin models.CommandOrigin) (string, error)
}

type Handlers struct {
	db        store
	frames    frameStore
	publisher commandPublisher
}

func NewHandlers(db store, frames frameStore, publisher commandPublisher) *Handlers {
	return &Handlers{db: db, frames: frames, publisher: publisher}
}

// writeError отдаёт {"error": ...} с нужным статусом
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
