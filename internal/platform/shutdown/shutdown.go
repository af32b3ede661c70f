package shutdown

import (
	"context"
	"os/signal"
	"syscall"
	"time"
)

// NotifyContext is cancelled on SIGINT or SIGTERM.
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// Grace returns a context for draining work after the parent has already been
// cancelled. A non-positive timeout falls back to ten seconds.
func Grace(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
