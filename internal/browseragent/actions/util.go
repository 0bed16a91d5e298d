package actions

import (
	"context"
	"time"

	"browseragent/internal/browseragent/bgerr"
)

// sleepCancellable blocks for seconds, returning early with a
// REQUEST_CANCELLED error if ctx is cancelled first — the wait() action is
// itself a suspension point per spec.md §5.
func sleepCancellable(ctx context.Context, seconds int) error {
	if seconds <= 0 {
		return nil
	}
	select {
	case <-time.After(time.Duration(seconds) * time.Second):
		return nil
	case <-ctx.Done():
		return bgerr.Wrap(bgerr.RequestCancelled, ctx.Err(), "wait cancelled")
	}
}
