package ui

import (
	"bytes"
	"context"
	"testing"

	"github.com/go-go-golems/grillo/pkg/assistant"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainRendering(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewRenderer(&buf)
	require.NoError(t, err)
	assert.False(t, IsTerminal(&buf))

	require.NoError(t, r.RenderReply([]string{"first\n", "**second**"}))
	assert.Equal(t, "first\n**second**\n", buf.String())
}

func TestNoReplyPlaceholder(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewRenderer(&buf)
	require.NoError(t, err)

	require.NoError(t, r.RenderReply([]string{}))
	assert.Equal(t, NoReplyPlaceholder+"\n", buf.String())
}

func TestRenderError(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewRenderer(&buf)
	require.NoError(t, err)

	require.NoError(t, r.RenderError(errors.Wrap(assistant.ErrUpstreamUnavailable, "eof")))
	assert.Contains(t, buf.String(), "error (upstream_unavailable)")
	assert.Contains(t, buf.String(), "try again")

	buf.Reset()
	require.NoError(t, r.RenderError(context.Canceled))
	assert.Equal(t, "cancelled\n", buf.String())
}

func TestMarkdownRendering(t *testing.T) {
	var buf bytes.Buffer
	r, err := NewRenderer(&buf, WithMarkdown(true), WithWordWrap(40))
	require.NoError(t, err)

	require.NoError(t, r.RenderReply([]string{"# Title\n\nsome *text*"}))
	assert.Contains(t, buf.String(), "Title")
	assert.Contains(t, buf.String(), "text")
}
