package oracle

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AgenticCurve/gitsplit/internal/diff"
)

// ModelTier identifies an escalation level. Oracle calls start at tier
// 1 and climb when repeated attempts fail.
type ModelTier int

const (
	TierFast ModelTier = iota + 1
	TierReasoning
	TierInteractive
)

func (t ModelTier) String() string {
	switch t {
	case TierFast:
		return "tier1"
	case TierReasoning:
		return "tier2"
	case TierInteractive:
		return "tier3"
	default:
		return fmt.Sprintf("tier%d", int(t))
	}
}

// tierModels maps each tier to its OpenRouter model slug.
var tierModels = map[ModelTier]string{
	TierFast:        "anthropic/claude-sonnet-4",
	TierReasoning:   "anthropic/claude-sonnet-4",
	TierInteractive: "anthropic/claude-sonnet-4",
}

// modelCosts holds per-million-token prices used for budget tracking.
type modelCost struct {
	Input  float64
	Output float64
}

var modelCosts = map[string]modelCost{
	"anthropic/claude-sonnet-4":   {Input: 3.00, Output: 15.00},
	"anthropic/claude-3.5-sonnet": {Input: 3.00, Output: 15.00},
}

var defaultCost = modelCost{Input: 3.0, Output: 15.0}

// Usage accumulates token counts and estimated spend across a session.
type Usage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Cost         float64 `json:"cost"`
}

func (u *Usage) add(input, output int, cost float64) {
	u.InputTokens += input
	u.OutputTokens += output
	u.Cost += cost
}

// ErrBudgetExceeded is returned before a request is sent when its
// estimated cost would push total spend past the configured cap.
var ErrBudgetExceeded = errors.New("oracle budget exceeded")

// ParseError reports an oracle response that could not be decoded into
// the expected schema. The snippet keeps the first part of the raw
// content for error-context retries.
type ParseError struct {
	Err     error
	Snippet string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse oracle response: %v\ncontent: %s", e.Err, e.Snippet)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Message is one turn in the oracle conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LinePair decodes the oracle's two-element [start, end] arrays.
type LinePair diff.LineRange

func (p *LinePair) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("line range must have 2 elements, got %d", len(pair))
	}
	p.Start, p.End = pair[0], pair[1]
	return nil
}

func (p LinePair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.Start, p.End})
}

// Range converts to the common line range type.
func (p LinePair) Range() diff.LineRange { return diff.LineRange(p) }

// IntentFile names a file owned (wholly or partially) by one intent.
type IntentFile struct {
	Path         string     `json:"path"`
	LineRanges   []LinePair `json:"line_ranges"`
	IsEntireFile bool       `json:"is_entire_file"`
}

// IntentSpec is one logical change the oracle identified in the diff.
type IntentSpec struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Files       []IntentFile `json:"files"`
}

// DiscoveryResponse is the typed schema for the discovery phase.
type DiscoveryResponse struct {
	Intents   []IntentSpec `json:"intents"`
	Reasoning string       `json:"reasoning"`
}

// LineAssignment binds a contiguous line span to an intent. The
// sentinel intent ID "shared" marks lines claimed by several intents,
// resolved by Strategy.
type LineAssignment struct {
	Lines    LinePair `json:"lines"`
	IntentID string   `json:"intent_id"`
	SharedBy []string `json:"shared_by,omitempty"`
	Strategy string   `json:"strategy,omitempty"`
}

// FilePlan is the per-file slice of the change plan.
type FilePlan struct {
	Path        string           `json:"path"`
	Assignments []LineAssignment `json:"assignments"`
}

// Dependency records that one intent builds on another.
type Dependency struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// PlanResponse is the typed schema for the planning phase.
type PlanResponse struct {
	FilePlans      []FilePlan   `json:"file_plans"`
	Dependencies   []Dependency `json:"dependencies"`
	ExecutionOrder []string     `json:"execution_order"`
}
