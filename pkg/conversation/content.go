package conversation

// ContentFromValue normalizes a decoded JSON value (as produced by
// encoding/json into an `any`) into one of the Content variants. It returns nil
// when nothing in the value resolves to text.
//
// Accepted shapes:
//   - a bare string
//   - a list of fragments, each a string or an object exposing `text`,
//     `text.value` or `content` as a string (unresolvable fragments are dropped)
//   - a single object exposing `text`, `text.value` or `value` as a string
func ContentFromValue(v any) Content {
	switch c := v.(type) {
	case nil:
		return nil
	case Content:
		return c
	case string:
		return PlainText(c)
	case []string:
		seq := make(FragmentSequence, 0, len(c))
		for _, s := range c {
			seq = append(seq, PlainText(s))
		}
		return seq
	case []any:
		seq := make(FragmentSequence, 0, len(c))
		for _, part := range c {
			if fragment := fragmentFromValue(part); fragment != nil {
				seq = append(seq, fragment)
			}
		}
		return seq
	case map[string]any:
		if s, ok := c["text"].(string); ok {
			return WrappedText{Text: s, Field: "text"}
		}
		if s, ok := nestedValue(c["text"]); ok {
			return WrappedText{Text: s, Field: "text.value"}
		}
		if s, ok := c["value"].(string); ok {
			return WrappedText{Text: s, Field: "value"}
		}
	}

	return nil
}

func fragmentFromValue(v any) Content {
	switch c := v.(type) {
	case string:
		return PlainText(c)
	case map[string]any:
		if s, ok := c["text"].(string); ok {
			return WrappedText{Text: s, Field: "text"}
		}
		if s, ok := nestedValue(c["text"]); ok {
			return WrappedText{Text: s, Field: "text.value"}
		}
		if s, ok := c["content"].(string); ok {
			return WrappedText{Text: s, Field: "content"}
		}
	}

	return nil
}

// nestedValue reads `{value: "..."}`.
func nestedValue(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := m["value"].(string)
	return s, ok
}
