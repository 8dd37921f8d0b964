package assistant

import (
	"context"

	"github.com/go-go-golems/grillo/pkg/conversation"
)

type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusExpired        RunStatus = "expired"
	RunStatusIncomplete     RunStatus = "incomplete"
)

// Terminal reports whether no further transition will happen upstream.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusExpired, RunStatusIncomplete:
		return true
	case RunStatusQueued, RunStatusInProgress, RunStatusRequiresAction, RunStatusCancelling:
		return false
	}
	return false
}

// Run is a snapshot of one execution of the assistant over a session.
type Run struct {
	ID        string
	SessionID string
	Status    RunStatus
	// LastError carries the upstream failure detail, when there is one.
	LastError string
}

// UserTurn is a question appended to a session.
type UserTurn struct {
	Text          string
	AttachmentIDs []string
}

// Upstream is the hosted assistant service. Implementations classify their
// failures into the sentinel errors of this package and let context errors
// through untouched.
type Upstream interface {
	CreateSession(ctx context.Context) (string, error)
	AppendUserTurn(ctx context.Context, sessionID string, turn UserTurn) error
	StartRun(ctx context.Context, sessionID string, assistantID string) (Run, error)
	GetRun(ctx context.Context, sessionID string, runID string) (Run, error)
	// ListTurns returns the whole transcript of a session, oldest-first when the
	// upstream allows choosing the order.
	ListTurns(ctx context.Context, sessionID string) ([]conversation.Turn, error)
}

// RunCanceller is implemented by upstreams that can cancel a run which is
// being abandoned.
type RunCanceller interface {
	CancelRun(ctx context.Context, sessionID string, runID string) error
}
