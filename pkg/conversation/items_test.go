package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTranscriptShapes(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantRoles []Role
	}{
		{
			name:      "flat list",
			payload:   `[{"role":"user","content":"Q"},{"role":"assistant","content":"A"}]`,
			wantRoles: []Role{RoleUser, RoleAssistant},
		},
		{
			name:      "legacy role key",
			payload:   `[{"rol":"user","content":"Q"},{"rol":"assistant","content":"A"}]`,
			wantRoles: []Role{RoleUser, RoleAssistant},
		},
		{
			name:      "messages wrapper",
			payload:   `{"threadId":"t1","messages":[{"role":"user","content":"Q"}]}`,
			wantRoles: []Role{RoleUser},
		},
		{
			name:      "data wrapper",
			payload:   `{"object":"list","data":[{"role":"assistant","content":[]}],"has_more":false}`,
			wantRoles: []Role{RoleAssistant},
		},
		{
			name: "events followed by snapshot",
			payload: `[
				{"event":"thread.run.created"},
				{"messages":[{"role":"user","content":"Q"},{"role":"assistant","content":"A"}]},
				{"event":"done"}
			]`,
			wantRoles: []Role{RoleUser, RoleAssistant},
		},
		{
			name:      "trailing nested list without content",
			payload:   `[{"event":"x"},[{"role":"user"},{"role":"assistant","content":"A"}]]`,
			wantRoles: []Role{RoleUser, RoleAssistant},
		},
		{
			name:      "unrecognized object",
			payload:   `{"foo":"bar"}`,
			wantRoles: []Role{},
		},
		{
			name:      "scalar",
			payload:   `"hello"`,
			wantRoles: []Role{},
		},
		{
			name:      "list of scalars",
			payload:   `[1, 2, 3]`,
			wantRoles: []Role{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			turns, err := ParseTranscript([]byte(tt.payload))
			require.NoError(t, err)
			roles := []Role{}
			for _, turn := range turns {
				roles = append(roles, turn.Role)
			}
			assert.Equal(t, tt.wantRoles, roles)
		})
	}
}

func TestParseTranscriptRejectsMalformedJSON(t *testing.T) {
	_, err := ParseTranscript([]byte(`[{"role":`))
	assert.Error(t, err)
}

func TestLegacyRoleKeyTakesPrecedence(t *testing.T) {
	turns := TurnsFromValue([]any{
		map[string]any{"rol": "assistant", "role": "user", "content": "A"},
	})
	require.Len(t, turns, 1)
	assert.Equal(t, RoleAssistant, turns[0].Role)
}

func TestContentFromValue(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		wantKind ContentKind
		want     []string
	}{
		{"bare string", "hello", ContentKindPlainText, []string{"hello"}},
		{"empty string", "", ContentKindPlainText, []string{}},
		{"text field", map[string]any{"text": "hello"}, ContentKindWrappedText, []string{"hello"}},
		{"text value field", map[string]any{"text": map[string]any{"value": "hello"}}, ContentKindWrappedText, []string{"hello"}},
		{"value field", map[string]any{"value": "hello"}, ContentKindWrappedText, []string{"hello"}},
		{
			"fragments",
			[]any{
				"a",
				map[string]any{"text": "b"},
				map[string]any{"type": "text", "text": map[string]any{"value": "c"}},
				map[string]any{"content": "d"},
				map[string]any{"type": "image_file", "image_file": map[string]any{"file_id": "f1"}},
				42,
				"",
			},
			ContentKindFragmentSequence,
			[]string{"a", "b", "c", "d"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ContentFromValue(tt.value)
			require.NotNil(t, c)
			assert.Equal(t, tt.wantKind, c.Kind())
			assert.Equal(t, tt.want, c.Strings())
		})
	}

	t.Run("unresolvable", func(t *testing.T) {
		assert.Nil(t, ContentFromValue(map[string]any{"image_file": "x"}))
		assert.Nil(t, ContentFromValue(12))
		assert.Nil(t, ContentFromValue(nil))
		assert.Equal(t, []string{}, Turn{Role: RoleUser}.Strings())
	})
}

func TestChronological(t *testing.T) {
	turn := func(id string, at int64) Turn {
		return Turn{ID: id, Role: RoleUser, Content: PlainText(id), CreatedAt: at}
	}
	ids := func(turns []Turn) []string {
		ret := []string{}
		for _, t := range turns {
			ret = append(ret, t.ID)
		}
		return ret
	}

	t.Run("ascending kept", func(t *testing.T) {
		in := []Turn{turn("a", 1), turn("b", 1), turn("c", 2)}
		assert.Equal(t, []string{"a", "b", "c"}, ids(Chronological(in)))
	})

	t.Run("descending reversed with ties mirrored", func(t *testing.T) {
		in := []Turn{turn("c", 2), turn("b", 1), turn("a", 1)}
		assert.Equal(t, []string{"a", "b", "c"}, ids(Chronological(in)))
		assert.Equal(t, "c", in[0].ID, "input must not be modified")
	})

	t.Run("mixed sorted stably", func(t *testing.T) {
		in := []Turn{turn("b", 2), turn("a", 1), turn("c", 3), turn("d", 3)}
		assert.Equal(t, []string{"a", "b", "c", "d"}, ids(Chronological(in)))
	})

	t.Run("missing timestamps keep order", func(t *testing.T) {
		in := []Turn{turn("b", 2), turn("a", 0)}
		assert.Equal(t, []string{"b", "a"}, ids(Chronological(in)))
	})
}
