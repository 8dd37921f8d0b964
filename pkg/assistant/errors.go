package assistant

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrConfiguration is a deterministic setup problem: missing credential or
	// assistant identity, invalid polling bounds.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidRequest is a caller-supplied problem, never retried.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUpstreamUnavailable is transient. The whole ask may be retried from the top.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrRunFailed           = errors.New("run failed")
	// ErrRunCancelled means the upstream cancelled the run.
	ErrRunCancelled = errors.New("run cancelled")
	ErrRunTimeout   = errors.New("run timed out")
	// ErrCancelled means the caller cancelled the ask.
	ErrCancelled = errors.New("cancelled")
	// ErrBusy is returned by the SubmissionGuard for overlapping or duplicate submissions.
	ErrBusy = errors.New("submission already in progress")
)

type Kind string

const (
	KindConfiguration       Kind = "configuration"
	KindInvalidRequest      Kind = "invalid_request"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindRunFailed           Kind = "run_failed"
	KindRunCancelled        Kind = "run_cancelled"
	KindRunTimeout          Kind = "run_timeout"
	KindCancelled           Kind = "cancelled"
	KindBusy                Kind = "busy"
	KindUnknown             Kind = "unknown"
)

// Ordered by precedence: an error wrapping several sentinels gets the first
// matching kind.
var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrCancelled, KindCancelled},
	{ErrRunTimeout, KindRunTimeout},
	{ErrRunCancelled, KindRunCancelled},
	{ErrRunFailed, KindRunFailed},
	{ErrConfiguration, KindConfiguration},
	{ErrInvalidRequest, KindInvalidRequest},
	{ErrBusy, KindBusy},
	{ErrUpstreamUnavailable, KindUpstreamUnavailable},
}

// KindOf classifies err into the taxonomy. Bare context errors count as
// cancellations.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindUnknown
}

// Retryable reports whether the whole ask may be retried from the top.
func Retryable(err error) bool {
	return KindOf(err) == KindUpstreamUnavailable
}

type Stage string

const (
	StageSession    Stage = "session"
	StageSubmit     Stage = "submit"
	StageRun        Stage = "run"
	StageTranscript Stage = "transcript"
)

// StageError tags an error with the pipeline stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage an error was tagged with, if any.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// RunFailedError is a terminal failure reported by the upstream for a run.
// It matches ErrRunFailed.
type RunFailedError struct {
	RunID  string
	Status RunStatus
	Reason string
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("run %s %s: %s", e.RunID, e.Status, e.Reason)
}

func (e *RunFailedError) Is(target error) bool {
	return target == ErrRunFailed
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}

// upstreamError normalizes a failure returned by an Upstream call. A done
// caller context wins over whatever the upstream reported; unclassified
// failures are treated as transient.
func upstreamError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(err, ErrCancelled) {
			return err
		}
		return cancelled(err)
	}
	switch KindOf(err) {
	case KindUnknown, KindCancelled:
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	default:
		return err
	}
}
