package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/petithub/internal/apperror"
	"github.com/sakif/petithub/internal/model"
	"github.com/sakif/petithub/internal/repository"
)

var _ repository.FrontierRepository = (*DB)(nil)

// Save appends a frontier snapshot.
func (db *DB) Save(ctx context.Context, f *model.Frontier) error {
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO frontiers (frontier_id, seed, resolved_at) VALUES (?, ?, ?)`,
		f.ID, f.Seed, f.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving frontier %d: %w", f.ID, err)
	}
	return nil
}

// Latest returns the newest snapshot, or apperror.ErrNotFound.
func (db *DB) Latest(ctx context.Context) (*model.Frontier, error) {
	var (
		f          model.Frontier
		resolvedAt int64
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT frontier_id, seed, resolved_at FROM frontiers
		 ORDER BY resolved_at DESC, id DESC LIMIT 1`,
	).Scan(&f.ID, &f.Seed, &resolvedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("frontier", "latest")
		}
		return nil, fmt.Errorf("sqlite: getting latest frontier: %w", err)
	}
	f.Timestamp = time.UnixMilli(resolvedAt)
	return &f, nil
}

// History returns up to limit snapshots, newest first.
func (db *DB) History(ctx context.Context, limit int) ([]model.Frontier, error) {
	if limit <= 0 {
		return nil, apperror.ValidationFailed("limit", "limit must be positive")
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT frontier_id, seed, resolved_at FROM frontiers
		 ORDER BY resolved_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing frontiers: %w", err)
	}
	defer rows.Close()

	var out []model.Frontier
	for rows.Next() {
		var (
			f          model.Frontier
			resolvedAt int64
		)
		if err := rows.Scan(&f.ID, &f.Seed, &resolvedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning frontier: %w", err)
		}
		f.Timestamp = time.UnixMilli(resolvedAt)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating frontiers: %w", err)
	}
	return out, nil
}
