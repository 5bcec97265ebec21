package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// HeldCountCache caches the per-user held-cart badge count. A miss is never
// an error; callers fall back to the database.
//
// Every Invalidate bumps the user's version. A count read from the database
// is only stored under the version observed before the read, so a change
// committed in between is never overwritten by the stale count.
type HeldCountCache interface {
	Get(ctx context.Context, userID uuid.UUID) (int64, bool, error)
	Version(ctx context.Context, userID uuid.UUID) (int64, error)
	// SetIfVersion stores count unless the version moved past version.
	SetIfVersion(ctx context.Context, userID uuid.UUID, version int64, count int64, ttl time.Duration) error
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

type NoopHeldCountCache struct{}

func (NoopHeldCountCache) Get(_ context.Context, _ uuid.UUID) (int64, bool, error) {
	return 0, false, nil
}

func (NoopHeldCountCache) Version(_ context.Context, _ uuid.UUID) (int64, error) {
	return 0, nil
}

func (NoopHeldCountCache) SetIfVersion(_ context.Context, _ uuid.UUID, _ int64, _ int64, _ time.Duration) error {
	return nil
}

func (NoopHeldCountCache) Invalidate(_ context.Context, _ uuid.UUID) error {
	return nil
}
