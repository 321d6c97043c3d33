package commands

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"ocpi/internal/logging"
	"ocpi/internal/metrics"
)

// Failure is a detached execution that returned an error or panicked.
type Failure struct {
	Command       string
	CorrelationID string
	Err           error
}

// Runner starts work that outlives the request that triggered it. Errors
// end up in the log; nothing is returned to the caller.
type Runner struct {
	log     *logging.Logger
	timeout time.Duration
	wg      sync.WaitGroup

	// OnFailure, when set, is called after a failure is logged.
	OnFailure func(Failure)
}

func NewRunner(log *logging.Logger, timeout time.Duration) *Runner {
	return &Runner{log: log, timeout: timeout}
}

// Go runs fn in its own goroutine. fn keeps the values of ctx but not its
// cancellation.
func (r *Runner) Go(ctx context.Context, command, correlationID string, fn func(context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		runCtx := context.WithoutCancel(ctx)
		if r.timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, r.timeout)
			defer cancel()
		}

		defer func() {
			if rec := recover(); rec != nil {
				r.fail(runCtx, Failure{
					Command:       command,
					CorrelationID: correlationID,
					Err:           fmt.Errorf("panic: %v\n%s", rec, debug.Stack()),
				})
			}
		}()

		if err := fn(runCtx); err != nil {
			r.fail(runCtx, Failure{Command: command, CorrelationID: correlationID, Err: err})
			return
		}
		metrics.CommandExecutions.WithLabelValues(command, "ok").Inc()
	}()
}

// Wait blocks until every started execution returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) fail(ctx context.Context, f Failure) {
	metrics.CommandExecutions.WithLabelValues(f.Command, "failed").Inc()
	r.log.ErrorContext(ctx, "command execution failed",
		logging.Command(f.Command),
		logging.CorrelationID(f.CorrelationID),
		logging.Error(f.Err))
	if r.OnFailure != nil {
		r.OnFailure(f)
	}
}
