package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrDuplicatePath means a row for (username, relpath) already exists.
	ErrDuplicatePath = errors.New("file already exists at this path")
)

// Repository provides catalog operations for file records.
//
// Insert is atomic with respect to the (username, relpath) uniqueness check:
// the unique index is the single serialization point for concurrent uploads
// of the same path, so no insert is ever lost or partially applied.
type Repository struct {
	db *DB
}

// NewRepository creates a new Repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Insert adds a new file record and assigns record.ID.
// Returns ErrDuplicatePath when the (username, relpath) pair is taken.
func (r *Repository) Insert(ctx context.Context, record *FileRecord) error {
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO files (
			username, relpath, filename, detected_type, declared_type,
			size_bytes, preview_ref, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
		ON CONFLICT (username, relpath) DO NOTHING
		RETURNING id
	`,
		record.Username,
		record.RelPath,
		record.Filename,
		record.DetectedType,
		record.DeclaredType,
		record.SizeBytes,
		record.PreviewRef,
		record.CreatedAt,
	).Scan(&record.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDuplicatePath
		}
		return fmt.Errorf("failed to insert file record: %w", err)
	}
	return nil
}

// ListByUser returns a user's records in insertion order (by id).
// nameContains narrows by case-insensitive filename substring,
// typePrefix by detected type prefix; either may be empty.
func (r *Repository) ListByUser(ctx context.Context, username, nameContains, typePrefix string) ([]FileRecord, error) {
	sql := `
		SELECT id, username, relpath, filename, detected_type, declared_type,
			   size_bytes, COALESCE(preview_ref, ''), created_at
		FROM files WHERE username = $1`
	args := []any{username}

	if nameContains != "" {
		args = append(args, "%"+nameContains+"%")
		sql += fmt.Sprintf(" AND filename ILIKE $%d", len(args))
	}
	if typePrefix != "" {
		args = append(args, typePrefix+"%")
		sql += fmt.Sprintf(" AND detected_type LIKE $%d", len(args))
	}
	sql += " ORDER BY id"

	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	records := []FileRecord{}
	for rows.Next() {
		var rec FileRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.Username,
			&rec.RelPath,
			&rec.Filename,
			&rec.DetectedType,
			&rec.DeclaredType,
			&rec.SizeBytes,
			&rec.PreviewRef,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan file record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Exists reports whether a record for (username, relpath) is present.
// Used by the orphan sweeper to reconcile the filesystem with the catalog.
func (r *Repository) Exists(ctx context.Context, username, relpath string) (bool, error) {
	var exists bool
	err := r.db.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM files WHERE username = $1 AND relpath = $2)",
		username, relpath,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check file record: %w", err)
	}
	return exists, nil
}
