package oracle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const discoveryJSON = `{
  "intents": [
    {
      "id": "intent-a",
      "name": "Add retry logic",
      "description": "Wrap HTTP calls in backoff",
      "files": [
        {"path": "client.go", "line_ranges": [[10, 42], [80, 85]], "is_entire_file": false},
        {"path": "retry.go", "line_ranges": [], "is_entire_file": true}
      ]
    },
    {
      "id": "intent-b",
      "name": "Fix logging",
      "description": "Use structured fields",
      "files": [{"path": "log.go", "line_ranges": [[1, 9]], "is_entire_file": false}]
    }
  ],
  "reasoning": "two unrelated concerns"
}`

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "bare_object",
			input: `{"a": 1}`,
			want:  `{"a": 1}`,
		},
		{
			name:  "fenced",
			input: "Here you go:\n```json\n{\"a\": 1}\n```\nDone.",
			want:  `{"a": 1}`,
		},
		{
			name:  "fenced_no_language",
			input: "```\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "prose_wrapped",
			input: `Sure! The plan is {"a": {"b": 2}} as requested.`,
			want:  `{"a": {"b": 2}}`,
		},
		{
			name:  "no_object",
			input: "no json here",
			want:  "no json here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.input); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseDiscovery(t *testing.T) {
	resp, err := ParseDiscovery(discoveryJSON)
	require.NoError(t, err)
	require.Len(t, resp.Intents, 2)

	a := resp.Intents[0]
	require.Equal(t, "intent-a", a.ID)
	require.Len(t, a.Files, 2)
	require.Equal(t, 10, a.Files[0].LineRanges[0].Start)
	require.Equal(t, 42, a.Files[0].LineRanges[0].End)
	require.True(t, a.Files[1].IsEntireFile)
}

func TestParseDiscoveryFenced(t *testing.T) {
	wrapped := "Analysis complete.\n\n```json\n" + discoveryJSON + "\n```\n"
	resp, err := ParseDiscovery(wrapped)
	require.NoError(t, err)
	require.Len(t, resp.Intents, 2)
}

func TestParseDiscoveryErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "not_json", input: "I could not analyze the diff."},
		{name: "empty_intents", input: `{"intents": [], "reasoning": "nothing"}`},
		{name: "missing_id", input: `{"intents": [{"name": "x", "files": []}]}`},
		{name: "missing_path", input: `{"intents": [{"id": "a", "files": [{"path": "", "line_ranges": []}]}]}`},
		{name: "inverted_range", input: `{"intents": [{"id": "a", "files": [{"path": "f.go", "line_ranges": [[9, 3]]}]}]}`},
		{name: "zero_start", input: `{"intents": [{"id": "a", "files": [{"path": "f.go", "line_ranges": [[0, 3]]}]}]}`},
		{name: "three_element_range", input: `{"intents": [{"id": "a", "files": [{"path": "f.go", "line_ranges": [[1, 2, 3]]}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDiscovery(tt.input)
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr), "want *ParseError, got %T", err)
			require.NotEmpty(t, perr.Snippet)
		})
	}
}

func TestParsePlan(t *testing.T) {
	known := map[string]bool{"intent-a": true, "intent-b": true}
	content := `{
  "file_plans": [
    {
      "path": "client.go",
      "assignments": [
        {"lines": [10, 42], "intent_id": "intent-a"},
        {"lines": [50, 55], "intent_id": "shared", "shared_by": ["intent-a", "intent-b"], "strategy": "stack"}
      ]
    }
  ],
  "dependencies": [{"from": "intent-b", "to": "intent-a", "reason": "uses retry helper"}],
  "execution_order": ["intent-a", "intent-b"]
}`

	resp, err := ParsePlan(content, known)
	require.NoError(t, err)
	require.Len(t, resp.FilePlans, 1)
	require.Equal(t, []string{"intent-a", "intent-b"}, resp.ExecutionOrder)
	require.Equal(t, "shared", resp.FilePlans[0].Assignments[1].IntentID)
}

func TestParsePlanErrors(t *testing.T) {
	known := map[string]bool{"intent-a": true}
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: `{"file_plans": []}`},
		{
			name:  "unknown_intent",
			input: `{"file_plans": [{"path": "f.go", "assignments": [{"lines": [1, 2], "intent_id": "intent-z"}]}], "execution_order": []}`,
		},
		{
			name:  "shared_without_members",
			input: `{"file_plans": [{"path": "f.go", "assignments": [{"lines": [1, 2], "intent_id": "shared"}]}], "execution_order": []}`,
		},
		{
			name:  "unknown_in_order",
			input: `{"file_plans": [{"path": "f.go", "assignments": [{"lines": [1, 2], "intent_id": "intent-a"}]}], "execution_order": ["intent-z"]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlan(tt.input, known)
			require.Error(t, err)
		})
	}
}

func TestLinePairRoundTrip(t *testing.T) {
	p := LinePair{Start: 3, End: 17}
	data, err := p.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, "[3,17]", string(data))

	var back LinePair
	require.NoError(t, back.UnmarshalJSON(data))
	require.Equal(t, p, back)
	require.Equal(t, 15, back.Range().Len())
}
