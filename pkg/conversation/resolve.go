package conversation

import (
	"strings"
)

type resolveOptions struct {
	strict bool
}

type ResolveOption func(*resolveOptions)

// WithStrictAnchor requires the anchor user turn to match the asked question
// by content. Without a match, or without an assistant turn after the anchor,
// nothing is returned instead of falling back to the latest turns.
func WithStrictAnchor(strict bool) ResolveOption {
	return func(o *resolveOptions) {
		o.strict = strict
	}
}

// Resolution describes how a reply was located. Indices refer to the
// chronological transcript and are -1 when absent.
type Resolution struct {
	Fragments     []string
	AnchorIndex   int
	AnchorMatched bool
	ReplyIndex    int
	// Fallback is set when the reply is the last assistant turn of the
	// transcript rather than the first one following the anchor.
	Fallback bool
}

func (r Resolution) Found() bool {
	return len(r.Fragments) > 0
}

// ResolveReply returns the text fragments of the assistant reply to asked, or
// an empty slice when the transcript holds none.
func ResolveReply(turns []Turn, asked string, options ...ResolveOption) []string {
	return Resolve(turns, asked, options...).Fragments
}

// Resolve locates the reply to asked in a transcript that interleaves every
// historical exchange of a session.
//
// The anchor is the latest user turn whose normalized text contains the
// normalized question; failing that, the latest user turn. The reply is the
// first assistant turn with text after the anchor (or from the start without
// an anchor); failing that, the last assistant turn with text overall.
func Resolve(turns []Turn, asked string, options ...ResolveOption) Resolution {
	opts := &resolveOptions{}
	for _, o := range options {
		o(opts)
	}

	ret := Resolution{
		Fragments:   []string{},
		AnchorIndex: -1,
		ReplyIndex:  -1,
	}
	if len(turns) == 0 {
		return ret
	}
	turns = Chronological(turns)

	q := normalize(asked)
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role != RoleUser {
			continue
		}
		if q != "" && strings.Contains(normalizedText(turns[i]), q) {
			ret.AnchorIndex = i
			ret.AnchorMatched = true
			break
		}
		if ret.AnchorIndex == -1 && !opts.strict {
			ret.AnchorIndex = i
		}
	}

	if opts.strict && !ret.AnchorMatched {
		return ret
	}

	for j := ret.AnchorIndex + 1; j < len(turns); j++ {
		if turns[j].Role != RoleAssistant {
			continue
		}
		if texts := turns[j].Strings(); len(texts) > 0 {
			ret.Fragments = texts
			ret.ReplyIndex = j
			return ret
		}
	}

	if opts.strict {
		return ret
	}

	for k := len(turns) - 1; k >= 0; k-- {
		if turns[k].Role != RoleAssistant {
			continue
		}
		if texts := turns[k].Strings(); len(texts) > 0 {
			ret.Fragments = texts
			ret.ReplyIndex = k
			ret.Fallback = true
			return ret
		}
	}

	return ret
}

func normalizedText(t Turn) string {
	texts := t.Strings()
	normalized := make([]string, 0, len(texts))
	for _, s := range texts {
		normalized = append(normalized, normalize(s))
	}
	return strings.Join(normalized, " ")
}

// normalize collapses whitespace runs and lower-cases, for comparison only.
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
