package database

import (
	"context"

	"github.com/adrve/cloud-analytics/internal/models"
)

// InsertCommand записывает команду в историю
func (d *Database) InsertCommand(ctx context.Context, rec models.CommandRecord) error {
	_, err := d.querier(ctx).ExecContext(ctx,
		"INSERT INTO command_history (id, device_id, command, reason, origin, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		rec.ID,
		rec.DeviceID,
		rec.Command,
		rec.Reason,
		rec.Origin,
		rec.CreatedAt,
	)

	return err
}

// RecentCommands возвращает последние команды, опционально по устройству
func (d *Database) RecentCommands(ctx context.Context, deviceID string, limit int) ([]models.CommandRecord, error) {
	query := `
		SELECT id, device_id, command, reason, origin, created_at
		FROM command_history
		WHERE ($1 = '' OR device_id = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := d.querier(ctx).QueryContext(ctx, query, deviceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.CommandRecord
	for rows.Next() {
		var rec models.CommandRecord
		err := rows.Scan(
			&rec.ID,
			&rec.DeviceID,
			&rec.Command,
			&rec.Reason,
			&rec.Origin,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
