package notify

import (
	"context"
	"errors"
	"time"
)

// WaitFn drives a subscription until fn reports completion or the wait fails.
// fn receives each value in delivery order (snapshots are released on its
// behalf) and returns (result, done, err): done ends the wait with result,
// a non-nil err aborts it, and anything else keeps waiting.
//
// Invalidation markers are skipped: a level-triggered condition holds or it
// does not, so the next delivered value is as good as any that were missed.
//
// Outcomes are distinguishable with errors.Is: ErrTimeout when the bound
// elapses, ErrCanceled when ctx ends first, ErrEndOfStream when the
// subscription's container is gone.
func WaitFn[T, S any](
	ctx context.Context,
	sub *Subscription[T],
	timeout time.Duration,
	fn func(T) (S, bool, error),
) (S, error) {
	var zero S

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-deadline.C:
			cancel()
		case <-waitCtx.Done():
		}
	}()

	for {
		snap, err := sub.Next(waitCtx)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidated):
				continue
			case errors.Is(err, ErrCanceled):
				select {
				case <-ctx.Done():
					return zero, ErrCanceled
				default:
					return zero, ErrTimeout
				}
			default:
				return zero, err
			}
		}
		value := snap.Value()
		snap.Release()

		result, done, err := fn(value)
		if err != nil {
			return zero, err
		}
		if done {
			return result, nil
		}
	}
}
