package filters

import (
	"context"
	"errors"
	"time"
)

var errReleased = errors.New("filter used after Cleanup")

// mapContext bounds ctx by the configured map timeout. Zero leaves ctx as is.
func mapContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
