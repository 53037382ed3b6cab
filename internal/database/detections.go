package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/adrve/cloud-analytics/internal/models"
)

// InsertDetections сохраняет список детекций одного кадра: по строке на объект,
// ключ (frame_id, ts, seq)
func (d *Database) InsertDetections(ctx context.Context, records []models.DetectionRecord) error {
	return d.InTx(ctx, func(ctx context.Context) error {
		q := d.querier(ctx)
		for _, rec := range records {
			box, err := json.Marshal(rec.Detection.Box)
			if err != nil {
				return fmt.Errorf("failed to marshal box: %w", err)
			}

			_, err = q.ExecContext(ctx, `
				INSERT INTO detections (frame_id, ts, seq, class, confidence, box, source, frame_s3_path, degraded, ttl)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				rec.FrameID,
				rec.Timestamp,
				rec.Seq,
				rec.Detection.Class,
				rec.Detection.Confidence,
				box,
				rec.Detection.Source,
				rec.FrameS3Path,
				rec.Degraded,
				rec.TTL,
			)
			if err != nil {
				return fmt.Errorf("failed to insert detection: %w", err)
			}
		}
		return nil
	})
}

// DetectionsInWindow возвращает детекции с ts в [start, end] включительно,
// отсортированные по убыванию confidence
func (d *Database) DetectionsInWindow(ctx context.Context, start, end int64) ([]models.DetectionRecord, error) {
	rows, err := d.querier(ctx).QueryContext(ctx, `
		SELECT frame_id, ts, seq, class, confidence, box, source, frame_s3_path, degraded, ttl
		FROM detections
		WHERE ts >= $1 AND ts <= $2
		ORDER BY confidence DESC
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.DetectionRecord
	for rows.Next() {
		var rec models.DetectionRecord
		var box []byte
		err := rows.Scan(
			&rec.FrameID,
			&rec.Timestamp,
			&rec.Seq,
			&rec.Detection.Class,
			&rec.Detection.Confidence,
			&box,
			&rec.Detection.Source,
			&rec.FrameS3Path,
			&rec.Degraded,
			&rec.TTL,
		)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(box, &rec.Detection.Box); err != nil {
			return nil, fmt.Errorf("failed to unmarshal box: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// FramePath возвращает путь кадра в хранилище по frame_id
func (d *Database) FramePath(ctx context.Context, frameID string) (string, error) {
	var path string
	err := d.querier(ctx).QueryRowContext(ctx, `
		SELECT frame_s3_path FROM detections WHERE frame_id = $1 LIMIT 1
	`, frameID).Scan(&path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil // Кадр не найден - это не ошибка
		}
		return "", fmt.Errorf("failed to get frame path: %w", err)
	}

	return path, nil
}

// DeleteExpiredDetections удаляет строки с истёкшим ttl (аналог TTL-экспирации)
func (d *Database) DeleteExpiredDetections(ctx context.Context, now int64) (int64, error) {
	res, err := d.querier(ctx).ExecContext(ctx,
		"DELETE FROM detections WHERE ttl < $1", now)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
