package guard

import (
	"context"
	"errors"
	"time"

	"github.com/keuzekompas/kompasauth/internal/penalty"
	"github.com/keuzekompas/kompasauth/internal/rate"
)

// LimitError reports a denied request. Escalated distinguishes a freshly
// applied penalty (the in-window budget was just exceeded) from an already
// standing block.
type LimitError struct {
	TimeLeft  time.Duration
	Escalated bool
}

func (e *LimitError) Error() string {
	if e.Escalated {
		return "limit reached, penalty applied for " + penalty.FormatTime(e.TimeLeft)
	}
	return "blocked for another " + penalty.FormatTime(e.TimeLeft)
}

// Guard runs the shared throttle algorithm for one endpoint class. The key
// is derived by the caller (per-route strategy); the guard itself is
// key-agnostic: check standing block, consume window slots, escalate on
// exhaustion.
type Guard struct {
	penalties *penalty.Manager
	limiter   *rate.Limiter
	windows   []rate.Window
}

// New creates a [Guard] over the given windows. A guard only ever touches
// the windows it was constructed with.
func New(penalties *penalty.Manager, limiter *rate.Limiter, windows ...rate.Window) *Guard {
	return &Guard{
		penalties: penalties,
		limiter:   limiter,
		windows:   windows,
	}
}

// Check admits or denies one request for the derived key.
//
// A standing block denies immediately without consuming window quota. An
// exhausted window applies a progressive penalty and denies with the new
// block duration. Backend failures propagate unchanged so callers fail
// closed.
func (g *Guard) Check(ctx context.Context, key string) error {
	status, err := g.penalties.GetBlockData(ctx, key)
	if err != nil {
		return err
	}
	if status.Blocked {
		return &LimitError{TimeLeft: status.TimeLeft}
	}

	for _, w := range g.windows {
		err := g.limiter.Hit(ctx, w, key)
		if err == nil {
			continue
		}
		if !errors.Is(err, rate.ErrLimitExceeded) {
			return err
		}

		applied, perr := g.penalties.ApplyPenalty(ctx, key)
		if perr != nil {
			return perr
		}
		return &LimitError{TimeLeft: applied, Escalated: true}
	}

	return nil
}
