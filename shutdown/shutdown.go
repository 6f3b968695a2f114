// Package shutdown turns termination signals into context cancellation.
package shutdown

import (
	"context"
	"os"
	"os/signal"
)

// Context is cancelled on the first termination signal. A second signal
// kills the process with the default handler once stop has been called.
func Context(parent context.Context) (ctx context.Context, stop context.CancelFunc) {
	return signal.NotifyContext(parent, signals...)
}

func Notify(ch chan<- os.Signal) {
	signal.Notify(ch, signals...)
}
