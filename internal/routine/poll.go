package routine

import (
	"context"
	"math"
	"time"
)

// Condition is evaluated afresh on every polling iteration.
type Condition func(ctx context.Context) (bool, error)

// Sleeper suspends for d. It returns an error when the wait was cut short
// by a stop or a canceled context.
type Sleeper func(ctx context.Context, d time.Duration) error

// Await polls cond until it differs from negate or the attempt budget of
// ceil(timeout/interval) runs out. The first check happens immediately and
// there is always at least one. It returns whether the wanted state was
// observed; a non-nil error means a check failed or the sleeper aborted.
// There is no sleep after the last check.
func Await(ctx context.Context, cond Condition, timeout, interval time.Duration, negate bool, sleep Sleeper) (bool, error) {
	if interval <= 0 {
		return false, stepErr(ErrValidation, "Await interval must be positive", interval.String())
	}
	budget := int(math.Ceil(float64(timeout) / float64(interval)))
	if budget < 1 {
		budget = 1
	}
	for i := 0; i < budget; i++ {
		ok, err := cond(ctx)
		if err != nil {
			return false, err
		}
		if ok != negate {
			return true, nil
		}
		if i == budget-1 {
			break
		}
		if err := sleep(ctx, interval); err != nil {
			return false, err
		}
	}
	return false, nil
}
