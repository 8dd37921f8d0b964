package assistant

import (
	"context"
	"sync"
	"time"

	"github.com/go-go-golems/grillo/pkg/conversation"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeUpstream scripts the hosted service. GetRun walks through statuses and
// repeats the last one once the script is exhausted.
type fakeUpstream struct {
	mu sync.Mutex

	sessionID   string
	sessionErr  error
	appendErr   error
	startStatus RunStatus
	startErr    error
	statuses    []RunStatus
	lastError   string
	getErr      error
	turns       []conversation.Turn
	listErr     error
	cancelErr   error
	onGetRun    func(poll int)

	createCalls int
	appended    []UserTurn
	startCalls  []string
	getCalls    int
	listCalls   int
	cancelCalls []string
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		sessionID:   "thread_1",
		startStatus: RunStatusQueued,
		statuses:    []RunStatus{RunStatusCompleted},
	}
}

func (f *fakeUpstream) networkCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls + len(f.appended) + len(f.startCalls) + f.getCalls + f.listCalls + len(f.cancelCalls)
}

func (f *fakeUpstream) CreateSession(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.sessionErr != nil {
		return "", f.sessionErr
	}
	return f.sessionID, nil
}

func (f *fakeUpstream) AppendUserTurn(ctx context.Context, sessionID string, turn UserTurn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, turn)
	if f.appendErr != nil {
		return f.appendErr
	}
	f.turns = append(f.turns, conversation.NewUserTurn(turn.Text))
	return nil
}

func (f *fakeUpstream) StartRun(ctx context.Context, sessionID string, assistantID string) (Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls = append(f.startCalls, assistantID)
	if f.startErr != nil {
		return Run{}, f.startErr
	}
	return Run{ID: "run_1", SessionID: sessionID, Status: f.startStatus}, nil
}

func (f *fakeUpstream) GetRun(ctx context.Context, sessionID string, runID string) (Run, error) {
	f.mu.Lock()
	f.getCalls++
	poll := f.getCalls
	hook := f.onGetRun
	f.mu.Unlock()

	if hook != nil {
		hook(poll)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return Run{}, f.getErr
	}
	status := f.statuses[len(f.statuses)-1]
	if poll-1 < len(f.statuses) {
		status = f.statuses[poll-1]
	}
	run := Run{ID: runID, SessionID: sessionID, Status: status}
	if status == RunStatusFailed {
		run.LastError = f.lastError
	}
	return run, nil
}

func (f *fakeUpstream) ListTurns(ctx context.Context, sessionID string) ([]conversation.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]conversation.Turn{}, f.turns...), nil
}

func (f *fakeUpstream) CancelRun(ctx context.Context, sessionID string, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls = append(f.cancelCalls, runID)
	return f.cancelErr
}

// upstreamWithoutCancel hides CancelRun.
type upstreamWithoutCancel struct {
	Upstream
}
