package assistant

import (
	"context"
	"strings"
	"time"

	"github.com/go-go-golems/grillo/pkg/helpers"
	"github.com/pkg/errors"
)

// PollPolicy bounds how a run is observed: the first wait is Interval, each
// following wait grows by Multiplier up to MaxInterval, and the run is
// abandoned once Timeout has elapsed since polling started.
type PollPolicy struct {
	Interval    time.Duration
	MaxInterval time.Duration
	Multiplier  float64
	Timeout     time.Duration
}

func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		Interval:    500 * time.Millisecond,
		MaxInterval: 3 * time.Second,
		Multiplier:  1.5,
		Timeout:     90 * time.Second,
	}
}

func (p PollPolicy) Validate() error {
	switch {
	case p.Interval <= 0:
		return errors.Wrap(ErrConfiguration, "poll interval must be positive")
	case p.MaxInterval < p.Interval:
		return errors.Wrap(ErrConfiguration, "max poll interval must not be smaller than the poll interval")
	case p.Multiplier < 1:
		return errors.Wrap(ErrConfiguration, "poll multiplier must be at least 1")
	case p.Timeout <= 0:
		return errors.Wrap(ErrConfiguration, "run timeout must be positive")
	}
	return nil
}

func (p PollPolicy) next(d time.Duration) time.Duration {
	n := time.Duration(float64(d) * p.Multiplier)
	if n > p.MaxInterval {
		return p.MaxInterval
	}
	return n
}

// RunHandle identifies a run that reached a terminal state.
type RunHandle struct {
	RunID       string
	SessionID   string
	AssistantID string
	Status      RunStatus
	Polls       int
}

// RunDriver starts runs and observes them until they reach a terminal state.
// Transitions happen upstream; the driver only reads status.
type RunDriver struct {
	upstream        Upstream
	policy          PollPolicy
	clock           Clock
	cancelAbandoned bool
	cancelTimeout   time.Duration
}

type RunDriverOption func(*RunDriver)

func WithPollPolicy(policy PollPolicy) RunDriverOption {
	return func(d *RunDriver) {
		d.policy = policy
	}
}

func WithClock(clock Clock) RunDriverOption {
	return func(d *RunDriver) {
		d.clock = clock
	}
}

// WithCancelOnAbandon makes the driver ask the upstream to cancel runs it
// stops observing because of a timeout, a caller cancellation or an
// unsupported state.
func WithCancelOnAbandon(cancel bool) RunDriverOption {
	return func(d *RunDriver) {
		d.cancelAbandoned = cancel
	}
}

func NewRunDriver(upstream Upstream, options ...RunDriverOption) *RunDriver {
	ret := &RunDriver{
		upstream:        upstream,
		policy:          DefaultPollPolicy(),
		clock:           RealClock(),
		cancelAbandoned: true,
		cancelTimeout:   5 * time.Second,
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (d *RunDriver) Policy() PollPolicy {
	return d.policy
}

// Run starts a run of assistantID over sessionID and waits for it to finish.
func (d *RunDriver) Run(ctx context.Context, sessionID string, assistantID string) (*RunHandle, error) {
	if strings.TrimSpace(assistantID) == "" {
		return nil, stageError(StageRun, errors.Wrap(ErrConfiguration, "assistant id is empty"))
	}
	if err := d.policy.Validate(); err != nil {
		return nil, stageError(StageRun, err)
	}

	run, err := d.upstream.StartRun(ctx, sessionID, assistantID)
	if err != nil {
		return nil, stageError(StageRun, upstreamError(ctx, err))
	}
	if run.SessionID == "" {
		run.SessionID = sessionID
	}

	helpers.Logger(ctx).Debug().
		Str("session", sessionID).
		Str("run", run.ID).
		Str("assistant", assistantID).
		Str("status", string(run.Status)).
		Msg("started run")

	handle, err := d.Await(ctx, run)
	if handle != nil {
		handle.AssistantID = assistantID
	}
	return handle, err
}

// Await polls run until it reaches a terminal state, the poll budget is spent
// or ctx is done. The returned handle is never nil and reports the last
// observed status; the error is nil only for a completed run.
func (d *RunDriver) Await(ctx context.Context, run Run) (*RunHandle, error) {
	logger := helpers.Logger(ctx)
	handle := &RunHandle{RunID: run.ID, SessionID: run.SessionID}
	deadline := d.clock.Now().Add(d.policy.Timeout)
	delay := d.policy.Interval

	for {
		handle.Status = run.Status
		if done, err := runOutcome(run); done {
			if run.Status == RunStatusRequiresAction {
				return handle, d.abandon(ctx, run, err)
			}
			return handle, stageError(StageRun, err)
		}

		remaining := deadline.Sub(d.clock.Now())
		if remaining <= 0 {
			return handle, d.abandon(ctx, run, d.timeoutError(run))
		}
		wait := delay
		if wait > remaining {
			wait = remaining
		}
		if err := d.clock.Sleep(ctx, wait); err != nil {
			return handle, d.abandon(ctx, run, cancelled(err))
		}

		remaining = deadline.Sub(d.clock.Now())
		if remaining <= 0 {
			return handle, d.abandon(ctx, run, d.timeoutError(run))
		}

		pollCtx, cancel := context.WithTimeout(ctx, remaining)
		next, err := d.upstream.GetRun(pollCtx, run.SessionID, run.ID)
		pollErr := pollCtx.Err()
		cancel()
		handle.Polls++

		if err != nil {
			switch {
			case ctx.Err() != nil:
				return handle, d.abandon(ctx, run, cancelled(err))
			case errors.Is(pollErr, context.DeadlineExceeded):
				return handle, d.abandon(ctx, run, d.timeoutError(run))
			default:
				return handle, d.abandon(ctx, run, upstreamError(ctx, err))
			}
		}

		if next.SessionID == "" {
			next.SessionID = run.SessionID
		}
		if next.ID == "" {
			next.ID = run.ID
		}
		logger.Debug().
			Str("run", run.ID).
			Str("status", string(next.Status)).
			Int("poll", handle.Polls).
			Dur("waited", wait).
			Msg("polled run")

		run = next
		delay = d.policy.next(delay)
	}
}

// runOutcome maps a status to the result of the state machine. done is false
// while the run may still transition.
func runOutcome(run Run) (done bool, err error) {
	switch run.Status {
	case RunStatusCompleted:
		return true, nil
	case RunStatusFailed, RunStatusExpired, RunStatusIncomplete:
		reason := run.LastError
		if reason == "" {
			reason = "the assistant run ended with status " + string(run.Status)
		}
		return true, &RunFailedError{RunID: run.ID, Status: run.Status, Reason: reason}
	case RunStatusCancelled:
		return true, errors.Wrapf(ErrRunCancelled, "run %s", run.ID)
	case RunStatusRequiresAction:
		return true, &RunFailedError{
			RunID:  run.ID,
			Status: run.Status,
			Reason: "the run requires tool outputs, which are not supported",
		}
	case RunStatusQueued, RunStatusInProgress, RunStatusCancelling:
		return false, nil
	}
	return false, nil
}

func (d *RunDriver) timeoutError(run Run) error {
	return errors.Wrapf(ErrRunTimeout, "run %s did not finish within %s", run.ID, d.policy.Timeout)
}

// abandon stops observing run. When configured, the upstream is asked once to
// cancel it, with a deadline detached from the (possibly done) caller context.
func (d *RunDriver) abandon(ctx context.Context, run Run, err error) error {
	logger := helpers.Logger(ctx)
	logger.Warn().
		Err(err).
		Str("session", run.SessionID).
		Str("run", run.ID).
		Str("status", string(run.Status)).
		Msg("abandoning run")

	if !d.cancelAbandoned {
		return stageError(StageRun, err)
	}
	canceller, ok := d.upstream.(RunCanceller)
	if !ok {
		return stageError(StageRun, err)
	}

	cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cancelTimeout)
	defer cancel()
	if cerr := canceller.CancelRun(cancelCtx, run.SessionID, run.ID); cerr != nil {
		logger.Warn().Err(cerr).Str("run", run.ID).Msg("could not cancel abandoned run")
	}

	return stageError(StageRun, err)
}
