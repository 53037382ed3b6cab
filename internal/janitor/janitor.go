package janitor

import (
	"context"
	"log"
	"time"
)

type detectionStore interface {
	DeleteExpiredDetections(ctx context.Context, now int64) (int64, error)
}

// StartJanitor периодически удаляет детекции с истёкшим ttl
func StartJanitor(ctx context.Context, store detectionStore, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Janitor stopped")
			return
		case <-ticker.C:
			deleted, err := store.DeleteExpiredDetections(ctx, time.Now().Unix())
			if err != nil {
				log.Printf("Janitor: failed to delete expired detections: %v", err)
				continue
			}
			if deleted > 0 {
				log.Printf("Janitor: removed %d expired detections", deleted)
			}
		}
	}
}
