package conversation

import (
	"fmt"
	"strings"
)

type ContentKind string

const (
	ContentKindPlainText        ContentKind = "plain-text"
	ContentKindFragmentSequence ContentKind = "fragment-sequence"
	ContentKindWrappedText      ContentKind = "wrapped-text"
)

// Content is the normalized form of a turn's polymorphic content field.
// Upstream payloads carry either a bare string, a list of fragments, or a single
// wrapper object; all three collapse to one of the variants below.
type Content interface {
	Kind() ContentKind
	// Strings returns the non-empty text fragments in order.
	Strings() []string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type PlainText string

func (p PlainText) Kind() ContentKind {
	return ContentKindPlainText
}

func (p PlainText) Strings() []string {
	if p == "" {
		return []string{}
	}
	return []string{string(p)}
}

var _ Content = PlainText("")

// WrappedText is a single object exposing its text under `text`, `text.value`,
// `value` or (inside a fragment list) `content`. Field records which one matched.
type WrappedText struct {
	Text  string `json:"text"`
	Field string `json:"field,omitempty"`
}

func (w WrappedText) Kind() ContentKind {
	return ContentKindWrappedText
}

func (w WrappedText) Strings() []string {
	if w.Text == "" {
		return []string{}
	}
	return []string{w.Text}
}

var _ Content = WrappedText{}

// FragmentSequence holds the resolvable fragments of a content list. Fragments
// that could not be resolved to text were dropped while decoding.
type FragmentSequence []Content

func (f FragmentSequence) Kind() ContentKind {
	return ContentKindFragmentSequence
}

func (f FragmentSequence) Strings() []string {
	ret := []string{}
	for _, fragment := range f {
		if fragment == nil {
			continue
		}
		ret = append(ret, fragment.Strings()...)
	}
	return ret
}

var _ Content = FragmentSequence(nil)

// Turn is one role-tagged utterance of a transcript.
type Turn struct {
	ID        string  `json:"id,omitempty"`
	Role      Role    `json:"role"`
	Content   Content `json:"-"`
	CreatedAt int64   `json:"created_at,omitempty"`
}

func NewTurn(role Role, content Content) Turn {
	return Turn{Role: role, Content: content}
}

func NewUserTurn(text string) Turn {
	return NewTurn(RoleUser, PlainText(text))
}

func NewAssistantTurn(text string) Turn {
	return NewTurn(RoleAssistant, PlainText(text))
}

// Strings returns the text fragments of the turn, or an empty slice when the
// turn has no content.
func (t Turn) Strings() []string {
	if t.Content == nil {
		return []string{}
	}
	return t.Content.Strings()
}

func (t Turn) Text() string {
	return strings.Join(t.Strings(), "\n")
}

func (t Turn) String() string {
	return fmt.Sprintf("[%s]: %s", t.Role, strings.TrimRight(t.Text(), "\n"))
}
