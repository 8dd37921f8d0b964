package assistant

import (
	"context"
	"strings"

	"github.com/go-go-golems/grillo/pkg/helpers"
	"github.com/pkg/errors"
)

// ResolveAssistantID applies the assistant identity precedence: the per-call
// override, else the process-wide default.
func ResolveAssistantID(override string, fallback string) (string, error) {
	if id := strings.TrimSpace(override); id != "" {
		return id, nil
	}
	if id := strings.TrimSpace(fallback); id != "" {
		return id, nil
	}
	return "", errors.Wrap(ErrConfiguration, "no assistant id: configure a default assistant or pass one per call")
}

// TurnSubmitter appends user questions to a session.
type TurnSubmitter struct {
	upstream Upstream
}

func NewTurnSubmitter(upstream Upstream) *TurnSubmitter {
	return &TurnSubmitter{upstream: upstream}
}

// Submit appends turn as a user turn. The question text is passed through as is.
func (s *TurnSubmitter) Submit(ctx context.Context, sessionID string, turn UserTurn) error {
	if err := validateSubmission(sessionID, turn.Text); err != nil {
		return err
	}

	if err := s.upstream.AppendUserTurn(ctx, sessionID, turn); err != nil {
		return stageError(StageSubmit, upstreamError(ctx, err))
	}

	helpers.Logger(ctx).Debug().
		Str("session", sessionID).
		Int("attachments", len(turn.AttachmentIDs)).
		Msg("submitted question")
	return nil
}

func validateSubmission(sessionID string, question string) error {
	if strings.TrimSpace(sessionID) == "" {
		return stageError(StageSubmit, errors.Wrap(ErrInvalidRequest, "session id is empty"))
	}
	return validateQuestion(question)
}

func validateQuestion(question string) error {
	if strings.TrimSpace(question) == "" {
		return stageError(StageSubmit, errors.Wrap(ErrInvalidRequest, "question is empty"))
	}
	return nil
}
