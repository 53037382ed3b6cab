package database

import (
	"context"
	"time"

	"github.com/adrve/cloud-analytics/internal/models"
)

// UpsertHeartbeat обновляет last_seen устройства по heartbeat
func (d *Database) UpsertHeartbeat(ctx context.Context, hb models.Heartbeat) error {
	_, err := d.querier(ctx).ExecContext(ctx, `
		INSERT INTO devices (id, status, last_seen) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET status = $2, last_seen = $3`,
		hb.DeviceID,
		models.DeviceOnline,
		hb.TimeStamp,
	)

	return err
}

// MarkStaleOffline помечает устройства offline, если heartbeat не приходил дольше interval
func (d *Database) MarkStaleOffline(ctx context.Context, interval time.Duration) ([]string, error) {
	rows, err := d.querier(ctx).QueryContext(ctx, `
		UPDATE devices SET status = $1
		WHERE status = $2 AND last_seen < $3
		RETURNING id
	`, models.DeviceOffline, models.DeviceOnline, time.Now().Add(-interval))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// ListDevices возвращает все устройства
func (d *Database) ListDevices(ctx context.Context) ([]models.Device, error) {
	rows, err := d.querier(ctx).QueryContext(ctx, `
		SELECT id, status, last_seen FROM devices ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		var dev models.Device
		if err := rows.Scan(&dev.ID, &dev.Status, &dev.LastSeen); err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}

	return devices, rows.Err()
}
