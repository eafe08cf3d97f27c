// Package shutdown ties process signals to context cancellation.
package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Signals stop the server and abort CLI runs.
var Signals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// SignalError is the cancellation cause recorded when a signal arrives.
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string { return fmt.Sprintf("received %s", e.Signal) }

// NotifyContext returns a context cancelled by the first of Signals, with a
// *SignalError as its cause. A second signal is left to the default handler,
// so it terminates the process.
func NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, Signals...)

	go func() {
		select {
		case sig := <-ch:
			signal.Stop(ch)
			cancel(&SignalError{Signal: sig})
		case <-ctx.Done():
			signal.Stop(ch)
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}
