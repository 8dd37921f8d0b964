package assistant

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// DefaultDuplicateWindow is how long an identical question on the same
// session is suppressed after it was accepted.
const DefaultDuplicateWindow = 1500 * time.Millisecond

// SubmissionGuard is the caller-side single-flight guard for asks: one
// outstanding ask per key (usually the session id), and no identical question
// on that key within the duplicate window.
type SubmissionGuard struct {
	mu       sync.Mutex
	window   time.Duration
	clock    Clock
	inflight map[string]struct{}
	recent   map[string]recentSubmission
}

type recentSubmission struct {
	question string
	at       time.Time
}

func NewSubmissionGuard(window time.Duration, clock Clock) *SubmissionGuard {
	if clock == nil {
		clock = RealClock()
	}
	return &SubmissionGuard{
		window:   window,
		clock:    clock,
		inflight: map[string]struct{}{},
		recent:   map[string]recentSubmission{},
	}
}

// Acquire reserves key for question. The returned release must be called once
// the ask is over; it is safe to call more than once. An empty key is never
// guarded.
func (g *SubmissionGuard) Acquire(key string, question string) (func(), error) {
	if key == "" {
		return func() {}, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	for k, r := range g.recent {
		if now.Sub(r.at) >= g.window {
			delete(g.recent, k)
		}
	}

	if _, ok := g.inflight[key]; ok {
		return nil, errors.Wrapf(ErrBusy, "an ask for %s is still in progress", key)
	}
	if r, ok := g.recent[key]; ok && r.question == question {
		return nil, errors.Wrapf(ErrBusy, "duplicate question for %s", key)
	}

	g.inflight[key] = struct{}{}
	g.recent[key] = recentSubmission{question: question, at: now}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			delete(g.inflight, key)
		})
	}, nil
}
