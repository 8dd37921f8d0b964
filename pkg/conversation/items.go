package conversation

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
)

const (
	roleKey       = "role"
	legacyRoleKey = "rol"
	contentKey    = "content"
)

// ParseTranscript decodes a JSON payload holding a transcript in any of the
// shapes accepted by TurnsFromValue. Only malformed JSON is an error; an
// unrecognized shape yields an empty transcript.
func ParseTranscript(data []byte) ([]Turn, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrap(err, "could not decode transcript")
	}

	return TurnsFromValue(v), nil
}

// TurnsFromValue is the single place where transcript payload shapes are
// sniffed. It accepts:
//   - a flat list of turn records (role under `role` or `rol`, plus `content`)
//   - an object wrapping such a list under `messages` or `data`
//   - a list whose last recognizable element (scanning from the end) is one of
//     the two shapes above, e.g. event records followed by a snapshot
//
// Anything else yields an empty slice.
func TurnsFromValue(v any) []Turn {
	items := findItems(v)
	ret := make([]Turn, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		ret = append(ret, turnFromMap(m))
	}

	return ret
}

func findItems(v any) []any {
	switch c := v.(type) {
	case []any:
		if isTurnList(c, true) {
			return c
		}
		for i := len(c) - 1; i >= 0; i-- {
			switch it := c[i].(type) {
			case []any:
				if isTurnList(it, false) {
					return it
				}
			case map[string]any:
				if items, ok := wrappedItems(it); ok {
					return items
				}
			}
		}
	case map[string]any:
		if items, ok := wrappedItems(c); ok {
			return items
		}
	}

	return nil
}

func wrappedItems(m map[string]any) ([]any, bool) {
	if items, ok := m["messages"].([]any); ok {
		return items, true
	}
	if items, ok := m["data"].([]any); ok {
		return items, true
	}
	return nil, false
}

func isTurnList(items []any, requireContent bool) bool {
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return false
		}
		_, hasRole := m[roleKey]
		_, hasLegacyRole := m[legacyRoleKey]
		if !hasRole && !hasLegacyRole {
			return false
		}
		if _, hasContent := m[contentKey]; requireContent && !hasContent {
			return false
		}
	}
	return true
}

func turnFromMap(m map[string]any) Turn {
	roleValue := m[legacyRoleKey]
	if roleValue == nil {
		roleValue = m[roleKey]
	}
	role, _ := roleValue.(string)
	id, _ := m["id"].(string)

	return Turn{
		ID:        id,
		Role:      Role(role),
		Content:   ContentFromValue(m[contentKey]),
		CreatedAt: int64Value(m["created_at"]),
	}
}

func int64Value(v any) int64 {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return int64(f)
		}
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

// Chronological returns the turns oldest-first. The order is only re-derived
// when every turn carries a creation timestamp: a newest-first list is
// reversed (keeping ties in their mirrored position), a mixed list is stably
// sorted. Without timestamps the given order is kept. The input is never
// modified.
func Chronological(turns []Turn) []Turn {
	if len(turns) < 2 {
		return turns
	}
	for _, t := range turns {
		if t.CreatedAt == 0 {
			return turns
		}
	}

	ascending, descending := true, true
	for i := 1; i < len(turns); i++ {
		if turns[i].CreatedAt < turns[i-1].CreatedAt {
			ascending = false
		}
		if turns[i].CreatedAt > turns[i-1].CreatedAt {
			descending = false
		}
	}

	ret := make([]Turn, len(turns))
	switch {
	case ascending:
		return turns
	case descending:
		for i, t := range turns {
			ret[len(turns)-1-i] = t
		}
	default:
		copy(ret, turns)
		sort.SliceStable(ret, func(i, j int) bool {
			return ret[i].CreatedAt < ret[j].CreatedAt
		})
	}

	return ret
}
