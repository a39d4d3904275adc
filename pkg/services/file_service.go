// Package services issues hand-written SQL against pkg/database's pgx
// pool, following the teacher's service-layer shape (pkg/services/*.go)
// without the ent query builder the teacher generates via go generate.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tsforge/tsforge/pkg/models"
)

// FileService owns the `files` table: upload bookkeeping, parse status
// transitions, and the parsed-metadata fields the viewport handler reads.
type FileService struct {
	pool *pgxpool.Pool
}

// NewFileService wraps a connection pool for file CRUD.
func NewFileService(pool *pgxpool.Pool) *FileService {
	return &FileService{pool: pool}
}

// Create inserts a new file row in the "uploading" state and fills f.ID
// with the generated UUID.
func (s *FileService) Create(ctx context.Context, f *models.File) error {
	if f.Folder == "" {
		return NewValidationError("folder", "must not be empty")
	}
	if f.RawPath == "" {
		return NewValidationError("raw_path", "must not be empty")
	}
	if f.Parsing == "" {
		f.Parsing = models.ParsingUploading
	}

	const q = `
		INSERT INTO files (folder, raw_path, parsing, last_modifier, x_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, last_update`

	err := s.pool.QueryRow(ctx, q, f.Folder, f.RawPath, f.Parsing, f.LastModifier, f.XType).
		Scan(&f.ID, &f.LastUpdate)
	if err != nil {
		return fmt.Errorf("services: create file: %w", err)
	}
	return nil
}

// Get fetches one file by ID.
func (s *FileService) Get(ctx context.Context, id string) (*models.File, error) {
	const q = `
		SELECT id, folder, raw_path, json_path, binary_path, meta_path, overview_path,
		       use_binary_format, total_points, x_type, x_format, x_min, x_max,
		       parsing, label_id, last_modifier, last_update
		FROM files WHERE id = $1`

	f := &models.File{}
	var jsonPath, binaryPath, metaPath, overviewPath, labelID *string
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&f.ID, &f.Folder, &f.RawPath, &jsonPath, &binaryPath, &metaPath, &overviewPath,
		&f.UseBinaryFormat, &f.TotalPoints, &f.XType, &f.XFormat, &f.XMin, &f.XMax,
		&f.Parsing, &labelID, &f.LastModifier, &f.LastUpdate,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("services: get file %s: %w", id, err)
	}
	if jsonPath != nil {
		f.JSONPath = *jsonPath
	}
	if binaryPath != nil {
		f.BinaryPath = *binaryPath
	}
	if metaPath != nil {
		f.MetaPath = *metaPath
	}
	if overviewPath != nil {
		f.OverviewPath = *overviewPath
	}
	if labelID != nil {
		f.LabelID = *labelID
	}
	return f, nil
}

// UpdateParsingStatus transitions the lifecycle field only, used by the
// worker to mark queued/parsing/error without touching parsed metadata.
func (s *FileService) UpdateParsingStatus(ctx context.Context, id string, status models.ParsingStatus) error {
	const q = `UPDATE files SET parsing = $2, last_update = now() WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id, status)
	if err != nil {
		return fmt.Errorf("services: update parsing status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteParse stamps the parsed metadata and flips the file to "parsed"
// in one statement, called by the worker after a successful C2-C5 run.
// Reparse (spec.md §9 open question) overwrites these columns in place —
// no separate delete-then-insert step, matching the decision recorded in
// DESIGN.md.
func (s *FileService) CompleteParse(ctx context.Context, f *models.File) error {
	const q = `
		UPDATE files SET
			json_path = $2, binary_path = $3, meta_path = $4, overview_path = $5,
			use_binary_format = $6, total_points = $7,
			x_type = $8, x_format = $9, x_min = $10, x_max = $11,
			parsing = $12, last_update = now()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, f.ID,
		nullableString(f.JSONPath), nullableString(f.BinaryPath),
		nullableString(f.MetaPath), nullableString(f.OverviewPath),
		f.UseBinaryFormat, f.TotalPoints,
		f.XType, f.XFormat, f.XMin, f.XMax,
		models.ParsingParsed,
	)
	if err != nil {
		return fmt.Errorf("services: complete parse %s: %w", f.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByFolder returns every file registered under a folder path.
func (s *FileService) ListByFolder(ctx context.Context, folder string) ([]*models.File, error) {
	const q = `SELECT id FROM files WHERE folder = $1 ORDER BY last_update DESC`
	rows, err := s.pool.Query(ctx, q, folder)
	if err != nil {
		return nil, fmt.Errorf("services: list files in %s: %w", folder, err)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*models.File, 0, len(ids))
	for _, id := range ids {
		f, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
