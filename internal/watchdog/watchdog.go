package watchdog

import (
	"context"
	"log"
	"time"

	"github.com/adrve/cloud-analytics/internal/kafka"
	"github.com/adrve/cloud-analytics/internal/models"
	"github.com/goccy/go-json"
)

type db interface {
	UpsertHeartbeat(ctx context.Context, hb models.Heartbeat) error
	MarkStaleOffline(ctx context.Context, interval time.Duration) ([]string, error)
}

// Watchdog следит за живостью edge-устройств по heartbeat-сообщениям
type Watchdog struct {
	db    db
	stale time.Duration
}

func New(db db, stale time.Duration) *Watchdog {
	return &Watchdog{
		db:    db,
		stale: stale,
	}
}

// Start периодически помечает устройства offline при пропавших heartbeat
func (w *Watchdog) Start(ctx context.Context) {
	ticker := time.NewTicker(w.stale)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Watchdog stopped")
			return
		case <-ticker.C:
			ids, err := w.db.MarkStaleOffline(ctx, w.stale)
			if err != nil {
				log.Printf("Watchdog: failed to mark stale devices: %v", err)
				continue
			}
			for _, id := range ids {
				log.Printf("Watchdog: device %s went offline", id)
			}
		}
	}
}

// ConsumeHeartbeats читает heartbeat-топик и обновляет last_seen устройств
func (w *Watchdog) ConsumeHeartbeats(ctx context.Context, messages <-chan kafka.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			var heartbeat models.Heartbeat
			if err := json.Unmarshal(msg.Value, &heartbeat); err != nil {
				log.Printf("Invalid heartbeat format: %v", err)
				msg.Ack()
				continue
			}

			if heartbeat.DeviceID == "" {
				log.Printf("Watchdog: dropped heartbeat without deviceId")
				msg.Ack()
				continue
			}
			if heartbeat.TimeStamp.IsZero() {
				heartbeat.TimeStamp = time.Now().UTC()
			}

			if err := w.db.UpsertHeartbeat(ctx, heartbeat); err != nil {
				log.Printf("Failed to write heartbeat to DB: %v", err)
				continue
			}

			msg.Ack()
		}
	}
}
