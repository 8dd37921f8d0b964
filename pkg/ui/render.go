package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/grillo/pkg/assistant"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
)

// NoReplyPlaceholder is shown when a question completed without a reply.
const NoReplyPlaceholder = "No reply was found from the assistant."

// Renderer prints replies to a terminal or a plain stream. Replies are
// rendered as markdown only when the output is a terminal.
type Renderer struct {
	w        io.Writer
	markdown *glamour.TermRenderer
	styled   bool
	dim      lipgloss.Style
	alert    lipgloss.Style
}

type RendererOption func(*rendererConfig)

type rendererConfig struct {
	markdown *bool
	wordWrap int
}

// WithMarkdown forces markdown rendering on or off.
func WithMarkdown(enabled bool) RendererOption {
	return func(c *rendererConfig) {
		c.markdown = &enabled
	}
}

func WithWordWrap(width int) RendererOption {
	return func(c *rendererConfig) {
		c.wordWrap = width
	}
}

// IsTerminal reports whether w writes to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func NewRenderer(w io.Writer, options ...RendererOption) (*Renderer, error) {
	cfg := &rendererConfig{wordWrap: 100}
	for _, o := range options {
		o(cfg)
	}
	styled := IsTerminal(w)
	if cfg.markdown != nil {
		styled = *cfg.markdown
	}

	ret := &Renderer{
		w:      w,
		styled: styled,
		dim:    lipgloss.NewStyle().Faint(true).Italic(true),
		alert:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
	if !styled {
		return ret, nil
	}

	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(cfg.wordWrap),
	)
	if err != nil {
		return nil, errors.Wrap(err, "could not create markdown renderer")
	}
	ret.markdown = md
	return ret, nil
}

// RenderReply prints each fragment of a reply, or the placeholder when there
// is none.
func (r *Renderer) RenderReply(fragments []string) error {
	if len(fragments) == 0 {
		return r.line(r.dim, NoReplyPlaceholder)
	}

	for _, f := range fragments {
		if r.markdown == nil {
			if _, err := fmt.Fprintln(r.w, strings.TrimRight(f, "\n")); err != nil {
				return err
			}
			continue
		}
		out, err := r.markdown.Render(f)
		if err != nil {
			return errors.Wrap(err, "could not render reply")
		}
		if _, err := io.WriteString(r.w, out); err != nil {
			return err
		}
	}
	return nil
}

// RenderError prints a failed ask. Cancellations are reported as a notice,
// not as an error.
func (r *Renderer) RenderError(err error) error {
	kind := assistant.KindOf(err)
	if kind == assistant.KindCancelled {
		return r.line(r.dim, "cancelled")
	}
	msg := fmt.Sprintf("error (%s): %v", kind, err)
	if assistant.Retryable(err) {
		msg += " (you can try again)"
	}
	return r.line(r.alert, msg)
}

// Notice prints an informational line.
func (r *Renderer) Notice(format string, args ...interface{}) error {
	return r.line(r.dim, fmt.Sprintf(format, args...))
}

func (r *Renderer) line(style lipgloss.Style, s string) error {
	if r.styled {
		s = style.Render(s)
	}
	_, err := fmt.Fprintln(r.w, s)
	return err
}
