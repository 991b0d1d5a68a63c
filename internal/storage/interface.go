package storage

import (
	"context"
	"errors"

	"github.com/Luis200410/Improve/internal"
)

// ErrNotFound is returned by repositories when a lookup matches no row.
var ErrNotFound = errors.New("storage: not found")

type UserRepository interface {
	GetUserByToken(ctx context.Context, token string) (*internal.User, error)
	CreateUser(ctx context.Context, user *internal.User) error
}

// PomodoroRepository owns profiles, sessions and the forest log.
//
// WithProfile runs fn as one unit of work against the user's profile,
// creating the profile on first access. Writes made through the PomodoroTx
// are committed only when fn returns nil. Units of work for the same profile
// never interleave.
type PomodoroRepository interface {
	WithProfile(ctx context.Context, userID string, fn func(tx PomodoroTx) error) error
}

// PomodoroTx is scoped to a single profile. Sessions belonging to other
// profiles are invisible to it.
type PomodoroTx interface {
	Profile() *internal.Profile
	SaveProfile(ctx context.Context, p *internal.Profile) error

	GetSession(ctx context.Context, id string) (*internal.Session, error)
	RunningSessions(ctx context.Context) ([]*internal.Session, error)
	SaveSession(ctx context.Context, s *internal.Session) error

	PlantTree(ctx context.Context, e *internal.ForestEntry) error
	RecentForest(ctx context.Context, limit int) ([]internal.ForestEntry, error)
}

// Store bundles every repository a backend provides.
type Store interface {
	UserRepository
	PomodoroRepository
	Close() error
}
