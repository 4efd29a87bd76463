package recovery

import (
	"context"
	"time"

	"github.com/effective-security/apibridge/dispatch"
	"github.com/effective-security/apibridge/pkg/metricskey"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/apibridge", "recovery")

// DefaultMaxRetries bounds the loop when the caller does not set a budget.
const DefaultMaxRetries = 3

// Dispatcher is the slice of dispatch.Dispatcher the loop needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, desc *dispatch.CallDescriptor, callCtx *dispatch.CallContext) *dispatch.ResultEnvelope
}

// Runner executes one descriptor through the dispatch-classify-advise cycle
// until success, a terminal explanation, or attempt exhaustion. A Runner is
// stateless across calls and safe for concurrent use; per-call state lives in
// the descriptor, which the invoking step owns.
type Runner struct {
	dispatcher Dispatcher
	advisor    Advisor
	maxRetries int
	unit       time.Duration
	sleep      func(ctx context.Context, d time.Duration)
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxRetries overrides the attempt budget.
func WithMaxRetries(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

// WithBackoffUnit sets the time unit of the exponential backoff. The wait
// before re-attempting after wait_and_retry is 2^attempt units.
func WithBackoffUnit(unit time.Duration) Option {
	return func(r *Runner) {
		r.unit = unit
	}
}

// WithSleep replaces the blocking wait, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration)) Option {
	return func(r *Runner) {
		r.sleep = sleep
	}
}

// NewRunner creates a recovery Runner over the dispatcher and advisor.
func NewRunner(dispatcher Dispatcher, advisor Advisor, opts ...Option) *Runner {
	r := &Runner{
		dispatcher: dispatcher,
		advisor:    advisor,
		maxRetries: DefaultMaxRetries,
		unit:       time.Second,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run dispatches the descriptor, consulting the advisor after every failed
// attempt. The advisor is consulted at most once per attempt, never
// concurrently; wait_and_retry blocks the calling step. Descriptor defects
// are returned immediately, they cannot be fixed by retrying. Exhausting the
// budget returns the last failure envelope unchanged.
func (r *Runner) Run(ctx context.Context, desc *dispatch.CallDescriptor, callCtx *dispatch.CallContext) *dispatch.ResultEnvelope {
	started := time.Now()
	protocol := string(desc.Metadata.Type)
	defer metricskey.PerfRecoveryRun.MeasureSince(started, protocol)

	if callCtx == nil {
		callCtx = &dispatch.CallContext{}
	}

	var last *dispatch.ResultEnvelope
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		metricskey.StatsRecoveryAttempts.IncrCounter(1, protocol)

		res := r.dispatcher.Dispatch(ctx, desc, callCtx)
		if res.Success {
			return res
		}
		last = res
		if res.DescriptorDefect() {
			return res
		}

		category := Classify(res)
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "attempt_failed",
			"attempt", attempt,
			"category", category,
			"err", res.Error,
		)

		decision, err := r.advisor.Advise(ctx, &Report{
			Task:      callCtx.Task,
			UserQuery: callCtx.UserQuery,
			Plan:      callCtx.Plan,
			Prior:     callCtx.Prior,
			Metadata:  desc.Metadata,
			Payload:   desc.Payload,
			Attempt:   attempt,
			Category:  category,
			Envelope:  res,
		})
		if err != nil {
			logger.ContextKV(ctx, xlog.WARNING, "status", "advisor_failed", "err", err.Error())
			decision = GiveUp(err.Error())
		}
		metricskey.StatsRecoveryStrategies.IncrCounter(1, string(decision.Strategy))

		switch decision.Strategy {
		case StrategyRetryWithFix:
			if decision.NewPayload == nil {
				return last
			}
			// Wholesale replacement, not a merge.
			desc.Payload = decision.NewPayload

		case StrategyWaitAndRetry:
			r.sleep(ctx, time.Duration(1<<attempt)*r.unit)

		case StrategyExplainToUser:
			return &dispatch.ResultEnvelope{
				Success:      false,
				Error:        res.Error,
				IsFinalError: true,
				Explanation:  values.StringsCoalesce(decision.Explanation, res.Error),
			}

		default:
			return last
		}
	}
	return last
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
