package assistant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReuseSession(t *testing.T) {
	id, ok := ReuseSession("thread_1")
	assert.True(t, ok)
	assert.Equal(t, "thread_1", id)

	_, ok = ReuseSession("  ")
	assert.False(t, ok)
	_, ok = ReuseSession("")
	assert.False(t, ok)
}

func TestEnsureSession(t *testing.T) {
	t.Run("reuses candidate without calling upstream", func(t *testing.T) {
		up := newFakeUpstream()
		id, err := EnsureSession(context.Background(), up, "thread_x")
		require.NoError(t, err)
		assert.Equal(t, "thread_x", id)
		assert.Equal(t, 0, up.createCalls)
	})

	t.Run("creates exactly once", func(t *testing.T) {
		up := newFakeUpstream()
		id, err := EnsureSession(context.Background(), up, "")
		require.NoError(t, err)
		assert.Equal(t, "thread_1", id)
		assert.Equal(t, 1, up.createCalls)
	})

	t.Run("empty upstream id", func(t *testing.T) {
		up := newFakeUpstream()
		up.sessionID = ""
		_, err := EnsureSession(context.Background(), up, "")
		assert.Equal(t, KindUpstreamUnavailable, KindOf(err))
		assert.Equal(t, 1, up.createCalls)
	})
}

func TestResolveAssistantID(t *testing.T) {
	id, err := ResolveAssistantID(" asst_o ", "asst_d")
	require.NoError(t, err)
	assert.Equal(t, "asst_o", id)

	id, err = ResolveAssistantID("", "asst_d")
	require.NoError(t, err)
	assert.Equal(t, "asst_d", id)

	_, err = ResolveAssistantID("", " ")
	assert.Equal(t, KindConfiguration, KindOf(err))
}

func TestTurnSubmitterPassesTextThrough(t *testing.T) {
	up := newFakeUpstream()
	s := NewTurnSubmitter(up)

	require.NoError(t, s.Submit(context.Background(), "thread_1", UserTurn{Text: "  spaced\nquestion "}))
	require.Len(t, up.appended, 1)
	assert.Equal(t, "  spaced\nquestion ", up.appended[0].Text)

	err := s.Submit(context.Background(), "thread_1", UserTurn{Text: ""})
	assert.Equal(t, KindInvalidRequest, KindOf(err))
	assert.Len(t, up.appended, 1)
}

func TestTranscriptFetcherOrdersTurns(t *testing.T) {
	up := newFakeUpstream()
	up.turns = nil
	f := NewTranscriptFetcher(up)

	turns, err := f.Fetch(context.Background(), "thread_1")
	require.NoError(t, err)
	assert.Empty(t, turns)
	assert.Equal(t, 1, up.listCalls)
}
