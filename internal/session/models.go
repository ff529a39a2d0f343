package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AgenticCurve/gitsplit/internal/diff"
)

// Phase is the lifecycle stage of a split session.
type Phase string

const (
	PhaseInit         Phase = "init"
	PhaseDiscovery    Phase = "discovery"
	PhasePlanning     Phase = "planning"
	PhaseExecution    Phase = "execution"
	PhaseVerification Phase = "verification"
	PhaseComplete     Phase = "complete"
	PhaseFailed       Phase = "failed"
)

// Strategy resolves a file claimed by several intents.
type Strategy string

const (
	StrategyStack     Strategy = "stack"     // later intent builds on the earlier one
	StrategyMerge     Strategy = "merge"     // combine intents into a single branch
	StrategyDuplicate Strategy = "duplicate" // both intents carry the shared change
	StrategyManual    Strategy = "manual"    // user decides
)

// FileChange is the portion of a file attributed to one intent.
type FileChange struct {
	Path         string           `json:"path"`
	LineRanges   []diff.LineRange `json:"line_ranges"`
	IsEntireFile bool             `json:"is_entire_file"`
	Additions    int              `json:"additions"`
	Deletions    int              `json:"deletions"`
}

// TotalChanges returns additions plus deletions.
func (f FileChange) TotalChanges() int { return f.Additions + f.Deletions }

// Intent is one logical unit of work carved out of the branch.
type Intent struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Files        []FileChange `json:"files"`
	Dependencies []string     `json:"dependencies,omitempty"`
	IsConfirmed  bool         `json:"is_confirmed"`
	BranchName   string       `json:"branch_name,omitempty"`
	PRNumber     int          `json:"pr_number,omitempty"`
	PRURL        string       `json:"pr_url,omitempty"`
}

// TotalAdditions sums additions across the intent's files.
func (i Intent) TotalAdditions() int {
	n := 0
	for _, f := range i.Files {
		n += f.Additions
	}
	return n
}

// TotalDeletions sums deletions across the intent's files.
func (i Intent) TotalDeletions() int {
	n := 0
	for _, f := range i.Files {
		n += f.Deletions
	}
	return n
}

// RangeOverlap records two intents claiming the same lines of a file.
type RangeOverlap struct {
	IntentA string         `json:"intent_a"`
	IntentB string         `json:"intent_b"`
	Overlap diff.LineRange `json:"overlap"`
}

// Conflict is a file whose changes belong to more than one intent.
type Conflict struct {
	FilePath          string         `json:"file_path"`
	IntentIDs         []string       `json:"intent_ids"`
	OverlappingRanges []RangeOverlap `json:"overlapping_ranges,omitempty"`
	SuggestedStrategy Strategy       `json:"suggested_strategy"`
	Resolved          bool           `json:"resolved"`
	ChosenStrategy    Strategy       `json:"chosen_strategy,omitempty"`
}

// ChangePlan is the validated mapping from changed lines to intents.
type ChangePlan struct {
	Intents        []Intent   `json:"intents"`
	Conflicts      []Conflict `json:"conflicts,omitempty"`
	ExecutionOrder []string   `json:"execution_order"`
	IsValidated    bool       `json:"is_validated"`
}

// Backtrack records one retreat to an earlier phase.
type Backtrack struct {
	FromPhase        Phase    `json:"from_phase"`
	ToPhase          Phase    `json:"to_phase"`
	Reason           string   `json:"reason"`
	Attempt          int      `json:"attempt"`
	PreservedIntents []string `json:"preserved_intents,omitempty"`
	PreservedFiles   []string `json:"preserved_files,omitempty"`
}

// PullRequest tracks a PR opened for one intent branch.
type PullRequest struct {
	IntentID string `json:"intent_id"`
	Branch   string `json:"branch"`
	Number   int    `json:"number,omitempty"`
	URL      string `json:"url"`
}

// Options are the user-facing switches a session runs under.
type Options struct {
	Auto            bool   `json:"auto_mode"`
	AutoHint        string `json:"auto_hint,omitempty"`
	Babysit         bool   `json:"babysit_mode"`
	DryRun          bool   `json:"dry_run"`
	Verbose         bool   `json:"verbose"`
	SkipBuildVerify bool   `json:"no_verify_build"`
	SkipPR          bool   `json:"no_pr"`
}

// DefaultMaxAttempts bounds the retry/backtrack loop per session.
const DefaultMaxAttempts = 5

// Session is the persistent state of a split operation. Every phase
// transition is saved so an interrupted run can resume.
type Session struct {
	ID         string `json:"id"`
	Branch     string `json:"branch"`
	BaseBranch string `json:"base_branch"`
	Phase      Phase  `json:"phase"`

	// Content hash of the source branch, captured before any work.
	OriginalHash string `json:"original_tree_hash"`

	DiscoveredIntents []Intent    `json:"discovered_intents,omitempty"`
	ConfirmedIntents  []Intent    `json:"confirmed_intents,omitempty"`
	Plan              *ChangePlan `json:"change_plan,omitempty"`

	CreatedBranches []string      `json:"created_branches,omitempty"`
	CreatedPRs      []PullRequest `json:"created_prs,omitempty"`

	Backtracks     []Backtrack `json:"backtracks,omitempty"`
	CurrentAttempt int         `json:"current_attempt"`
	MaxAttempts    int         `json:"max_attempts"`

	TokensUsed int     `json:"total_tokens_used"`
	TotalCost  float64 `json:"total_cost"`
	MaxCost    float64 `json:"max_cost,omitempty"`

	Options Options `json:"options"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a session in the init phase with a fresh ID.
func New(branch, baseBranch string) *Session {
	now := time.Now()
	return &Session{
		ID:             GenerateID(now),
		Branch:         branch,
		BaseBranch:     baseBranch,
		Phase:          PhaseInit,
		CurrentAttempt: 1,
		MaxAttempts:    DefaultMaxAttempts,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// GenerateID builds a sortable session ID: timestamp plus a short
// random suffix.
func GenerateID(t time.Time) string {
	return fmt.Sprintf("%s-%s", t.Format("20060102-150405"), uuid.NewString()[:8])
}

// Terminal reports whether the session can no longer advance.
func (s *Session) Terminal() bool {
	return s.Phase == PhaseComplete || s.Phase == PhaseFailed
}

// IntentByID looks up a confirmed intent.
func (s *Session) IntentByID(id string) (*Intent, bool) {
	for i := range s.ConfirmedIntents {
		if s.ConfirmedIntents[i].ID == id {
			return &s.ConfirmedIntents[i], true
		}
	}
	return nil, false
}
