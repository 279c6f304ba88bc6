package utils

import (
	"context"
	"time"
)

// after is swapped in tests so retry pauses do not slow them down.
var after = time.After

// WaitFor pauses for d unless ctx ends first, in which case the context error
// is returned. Non-positive durations return at once.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-after(d):
		return nil
	}
}
