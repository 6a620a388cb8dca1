package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"Mansoor88-6/devpulse-agent/internal/models"
)

type ScreenshotRepository struct {
	db *sql.DB
}

func NewScreenshotRepository(db *sql.DB) *ScreenshotRepository {
	return &ScreenshotRepository{db: db}
}

// Record inserts a catalog row and fills in its ID
func (r *ScreenshotRepository) Record(ctx context.Context, shot *models.Screenshot) error {
	query := `
		INSERT INTO screenshots (file_path, monitor, format, size_bytes, captured_at)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		shot.FilePath,
		shot.Monitor,
		shot.Format,
		shot.SizeBytes,
		shot.CapturedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record screenshot: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get screenshot id: %w", err)
	}
	shot.ID = id
	return nil
}

// List returns the most recent screenshots first
func (r *ScreenshotRepository) List(ctx context.Context, limit int) ([]models.Screenshot, error) {
	query := `
		SELECT id, file_path, monitor, format, size_bytes, captured_at
		FROM screenshots
		ORDER BY captured_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query screenshots: %w", err)
	}
	defer rows.Close()

	return scanScreenshots(rows)
}

// DeleteOlderThan removes rows captured before cutoff and returns them so
// the caller can remove the files.
func (r *ScreenshotRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]models.Screenshot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, file_path, monitor, format, size_bytes, captured_at
		FROM screenshots
		WHERE captured_at < ?
		ORDER BY captured_at
	`, cutoff.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query expired screenshots: %w", err)
	}
	expired, err := scanScreenshots(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM screenshots WHERE captured_at < ?`, cutoff.UnixMilli()); err != nil {
		return nil, fmt.Errorf("failed to delete screenshots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return expired, nil
}

func scanScreenshots(rows *sql.Rows) ([]models.Screenshot, error) {
	var shots []models.Screenshot
	for rows.Next() {
		var (
			shot       models.Screenshot
			capturedAt int64
		)
		err := rows.Scan(
			&shot.ID,
			&shot.FilePath,
			&shot.Monitor,
			&shot.Format,
			&shot.SizeBytes,
			&capturedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan screenshot: %w", err)
		}
		shot.CapturedAt = time.UnixMilli(capturedAt).UTC()
		shots = append(shots, shot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return shots, nil
}
