package oracle

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n```")

// ExtractJSON pulls a JSON object out of an oracle reply, handling
// markdown code fences and surrounding prose.
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)

	if m := fencedJSONRe.FindStringSubmatch(content); m != nil {
		content = strings.TrimSpace(m[1])
	}

	if strings.HasPrefix(content, "{") {
		return content
	}

	start := strings.Index(content, "{")
	if start == -1 {
		return content
	}
	depth := 0
	for i := start; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return content
}

func parseInto(content string, out any) error {
	extracted := ExtractJSON(content)
	if err := json.Unmarshal([]byte(extracted), out); err != nil {
		snippet := extracted
		if len(snippet) > 500 {
			snippet = snippet[:500]
		}
		return &ParseError{Err: err, Snippet: snippet}
	}
	return nil
}

// ParseDiscovery decodes a discovery-phase reply into its typed schema
// and validates the pieces the rest of the pipeline depends on.
func ParseDiscovery(content string) (*DiscoveryResponse, error) {
	var resp DiscoveryResponse
	if err := parseInto(content, &resp); err != nil {
		return nil, err
	}
	if len(resp.Intents) == 0 {
		return nil, &ParseError{Err: fmt.Errorf("no intents in response"), Snippet: snippetOf(content)}
	}
	for i, intent := range resp.Intents {
		if intent.ID == "" {
			return nil, &ParseError{Err: fmt.Errorf("intent %d has no id", i), Snippet: snippetOf(content)}
		}
		for _, f := range intent.Files {
			if f.Path == "" {
				return nil, &ParseError{Err: fmt.Errorf("intent %q has a file with no path", intent.ID), Snippet: snippetOf(content)}
			}
			for _, r := range f.LineRanges {
				if r.Start < 1 || r.End < r.Start {
					return nil, &ParseError{
						Err:     fmt.Errorf("intent %q file %s has invalid range [%d, %d]", intent.ID, f.Path, r.Start, r.End),
						Snippet: snippetOf(content),
					}
				}
			}
		}
	}
	return &resp, nil
}

// ParsePlan decodes a planning-phase reply into its typed schema.
func ParsePlan(content string, knownIntents map[string]bool) (*PlanResponse, error) {
	var resp PlanResponse
	if err := parseInto(content, &resp); err != nil {
		return nil, err
	}
	if len(resp.FilePlans) == 0 {
		return nil, &ParseError{Err: fmt.Errorf("no file plans in response"), Snippet: snippetOf(content)}
	}
	for _, fp := range resp.FilePlans {
		if fp.Path == "" {
			return nil, &ParseError{Err: fmt.Errorf("file plan with no path"), Snippet: snippetOf(content)}
		}
		for _, a := range fp.Assignments {
			if a.IntentID != "shared" && !knownIntents[a.IntentID] {
				return nil, &ParseError{
					Err:     fmt.Errorf("file %s assigns lines to unknown intent %q", fp.Path, a.IntentID),
					Snippet: snippetOf(content),
				}
			}
			if a.IntentID == "shared" && len(a.SharedBy) == 0 {
				return nil, &ParseError{
					Err:     fmt.Errorf("file %s has a shared assignment without shared_by", fp.Path),
					Snippet: snippetOf(content),
				}
			}
		}
	}
	for _, id := range resp.ExecutionOrder {
		if !knownIntents[id] {
			return nil, &ParseError{
				Err:     fmt.Errorf("execution order references unknown intent %q", id),
				Snippet: snippetOf(content),
			}
		}
	}
	return &resp, nil
}

func snippetOf(content string) string {
	if len(content) > 500 {
		return content[:500]
	}
	return content
}
