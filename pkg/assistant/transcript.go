package assistant

import (
	"context"

	"github.com/go-go-golems/grillo/pkg/conversation"
)

// TranscriptFetcher pulls the full turn history of a session. Transcripts are
// never cached: each fetch reflects the session after the latest run.
type TranscriptFetcher struct {
	upstream Upstream
}

func NewTranscriptFetcher(upstream Upstream) *TranscriptFetcher {
	return &TranscriptFetcher{upstream: upstream}
}

func (f *TranscriptFetcher) Fetch(ctx context.Context, sessionID string) ([]conversation.Turn, error) {
	turns, err := f.upstream.ListTurns(ctx, sessionID)
	if err != nil {
		return nil, stageError(StageTranscript, upstreamError(ctx, err))
	}
	return conversation.Chronological(turns), nil
}
