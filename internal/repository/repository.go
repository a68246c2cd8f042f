// Package repository declares the storage interfaces used by the service layer.
//
// Services depend on these interfaces, never on a concrete database, so tests
// can swap in fakes and the SQLite implementation stays replaceable.
package repository

import (
	"context"

	"github.com/sakif/petithub/internal/model"
)

// FrontierRepository stores frontier snapshots. Snapshots are append-only;
// the newest one is the current frontier.
type FrontierRepository interface {
	Save(ctx context.Context, f *model.Frontier) error
	// Latest returns apperror.ErrNotFound when nothing was saved yet.
	Latest(ctx context.Context) (*model.Frontier, error)
	// History returns up to limit snapshots, newest first.
	History(ctx context.Context, limit int) ([]model.Frontier, error)
}

// UserRepository stores GitHub-authenticated users.
type UserRepository interface {
	// Upsert inserts or updates by GitHub ID and fills in ID and timestamps.
	Upsert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}
