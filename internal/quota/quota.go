// Package quota gates generation submissions on a per-user, per-day
// counter owned by a remote counter service. The local tracker is a
// read-through, write-through cache of one integer per user per period;
// when the counter cannot be reached the state is unknown and callers
// fail closed.
package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fitcheckhq/fitcheck/internal/model"
)

// ErrUnknown means the remote counter could not be read. Unknown is not
// zero remaining: callers decide whether to block or retry.
var ErrUnknown = errors.New("quota state unknown")

// Counter is the remote counter service contract.
type Counter interface {
	// Count returns the current value for the user and period.
	Count(ctx context.Context, userID, period string) (int, error)

	// Increment bumps the counter and returns the authoritative
	// post-increment value.
	Increment(ctx context.Context, userID, period string) (int, error)
}

// Tracker caches the counter value for one user.
type Tracker struct {
	counter Counter
	userID  string
	limit   int
	now     func() time.Time

	mu    sync.Mutex
	state model.QuotaState
	known bool
}

// NewTracker creates a tracker for the user with the given period limit.
func NewTracker(counter Counter, userID string, limit int) *Tracker {
	return &Tracker{
		counter: counter,
		userID:  userID,
		limit:   limit,
		now:     time.Now,
	}
}

func (t *Tracker) period() string {
	return model.PeriodKey(t.now())
}

// Current returns the cached state, fetching from the counter when the
// cache is empty or the period has rolled over.
func (t *Tracker) Current(ctx context.Context) (model.QuotaState, error) {
	period := t.period()

	t.mu.Lock()
	if t.known && t.state.PeriodKey == period {
		state := t.state
		t.mu.Unlock()
		return state, nil
	}
	t.mu.Unlock()

	return t.Refresh(ctx)
}

// Refresh re-fetches the authoritative count, replacing the cached state.
func (t *Tracker) Refresh(ctx context.Context) (model.QuotaState, error) {
	period := t.period()

	count, err := t.counter.Count(ctx, t.userID, period)
	if err != nil {
		t.mu.Lock()
		t.known = false
		t.mu.Unlock()
		return model.QuotaState{}, fmt.Errorf("%w: %v", ErrUnknown, err)
	}

	state := model.QuotaState{Count: count, Limit: t.limit, PeriodKey: period}
	t.mu.Lock()
	t.state = state
	t.known = true
	t.mu.Unlock()

	return state, nil
}

// Remaining re-fetches the counter and returns the budget left in the
// current period. ok is false while the counter is unreachable;
// submission must then be blocked, not waved through on a cached value.
func (t *Tracker) Remaining(ctx context.Context) (remaining int, ok bool) {
	state, err := t.Refresh(ctx)
	if err != nil {
		return 0, false
	}
	return state.Remaining(), true
}

// RecordUse is called after a generation attempt has confirmed output.
// The counter is incremented remotely and the cached count re-synced
// from the authoritative response, not bumped blindly, so concurrent
// sessions for the same user converge.
func (t *Tracker) RecordUse(ctx context.Context) (model.QuotaState, error) {
	period := t.period()

	count, err := t.counter.Increment(ctx, t.userID, period)
	if err != nil {
		t.mu.Lock()
		t.known = false
		t.mu.Unlock()
		return model.QuotaState{}, fmt.Errorf("%w: %v", ErrUnknown, err)
	}

	state := model.QuotaState{Count: count, Limit: t.limit, PeriodKey: period}
	t.mu.Lock()
	t.state = state
	t.known = true
	t.mu.Unlock()

	return state, nil
}
