package freeze

import (
	"context"
	"time"
)

// Pool is the shared family freeze allowance. TryBorrow is a compare-and-decrement:
// it succeeds only while the balance is positive, so concurrent borrowers can never
// drive the pool negative.
type Pool interface {
	Balance(ctx context.Context, familyID int64) (int, error)
	TryBorrow(ctx context.Context, familyID int64) (bool, error)
	TopUp(ctx context.Context, familyID int64, n int, now time.Time, monthStart time.Time) (bool, error)
}
