package assistant

import (
	"context"
	"strings"

	"github.com/go-go-golems/grillo/pkg/helpers"
	"github.com/pkg/errors"
)

type SessionCreator interface {
	CreateSession(ctx context.Context) (string, error)
}

// ReuseSession decides whether candidate identifies a session. A non-blank
// candidate is returned unchanged; otherwise a new session has to be created.
func ReuseSession(candidate string) (string, bool) {
	if strings.TrimSpace(candidate) == "" {
		return "", false
	}
	return candidate, true
}

// EnsureSession returns candidate when it is usable and otherwise creates a
// session upstream, exactly once. It never retries.
func EnsureSession(ctx context.Context, creator SessionCreator, candidate string) (string, error) {
	if id, ok := ReuseSession(candidate); ok {
		return id, nil
	}

	id, err := creator.CreateSession(ctx)
	if err != nil {
		return "", stageError(StageSession, upstreamError(ctx, err))
	}
	if strings.TrimSpace(id) == "" {
		return "", stageError(StageSession, errors.Wrap(ErrUpstreamUnavailable, "upstream returned an empty session id"))
	}

	helpers.Logger(ctx).Debug().Str("session", id).Msg("created session")
	return id, nil
}
