package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tsforge/tsforge/pkg/models"
)

// LabelService persists the labels a completed auto-detection run
// produces on top of a file (spec.md §4.12).
type LabelService struct {
	pool *pgxpool.Pool
}

// NewLabelService wraps a connection pool for label writes.
func NewLabelService(pool *pgxpool.Pool) *LabelService {
	return &LabelService{pool: pool}
}

// ReplaceAutoDetected deletes any previously auto-detected labels for a
// file and inserts the new set in one transaction, so re-running detection
// on the same file doesn't accumulate duplicates across runs.
func (s *LabelService) ReplaceAutoDetected(ctx context.Context, fileID string, labels []models.Label) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("services: begin replace labels: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM labels WHERE file_id = $1 AND auto_detected = TRUE`, fileID,
	); err != nil {
		return fmt.Errorf("services: clear auto-detected labels: %w", err)
	}

	const insert = `
		INSERT INTO labels (file_id, class_name, color, description, labeler, start_index, end_index, hide, auto_detected)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for _, l := range labels {
		if _, err := tx.Exec(ctx, insert, fileID, l.ClassName, l.Color, l.Description,
			l.Labeler, l.Start, l.End, l.Hide, l.AutoDetected); err != nil {
			return fmt.Errorf("services: insert label %q: %w", l.ClassName, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("services: commit replace labels: %w", err)
	}
	return nil
}

// ListForFile returns every label attached to a file, ordered by start index.
func (s *LabelService) ListForFile(ctx context.Context, fileID string) ([]models.Label, error) {
	const q = `
		SELECT class_name, color, description, labeler, start_index, end_index, hide, auto_detected
		FROM labels WHERE file_id = $1 ORDER BY start_index`

	rows, err := s.pool.Query(ctx, q, fileID)
	if err != nil {
		return nil, fmt.Errorf("services: list labels for %s: %w", fileID, err)
	}
	defer rows.Close()

	var out []models.Label
	for rows.Next() {
		var l models.Label
		if err := rows.Scan(&l.ClassName, &l.Color, &l.Description, &l.Labeler,
			&l.Start, &l.End, &l.Hide, &l.AutoDetected); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
