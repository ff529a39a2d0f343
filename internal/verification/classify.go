package verification

import "fmt"

// Severity grades a verification failure.
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Action is the remediation a diagnosis recommends.
type Action string

const (
	ActionNone                     Action = "none"
	ActionRetryPlanning            Action = "retry_planning"
	ActionRetryPlanningWithContext Action = "retry_planning_with_context"
	ActionBacktrackToDiscovery     Action = "backtrack_to_discovery"
)

// Diagnosis summarizes a verification failure for the retry loop and
// for oracle error context.
type Diagnosis struct {
	Severity    Severity `json:"severity"`
	LikelyCause string   `json:"likely_cause"`
	Action      Action   `json:"suggested_action"`
	Details     []string `json:"details,omitempty"`
}

// Classify maps a verification result to a remediation. It is a pure
// function of its input: same differences, same diagnosis.
//
// The thresholds are deliberate. One file with at most 5 changed
// records is a line misattribution worth a cheap replan; up to 3 files
// and 20 records still points at planning; anything larger means the
// intent boundaries themselves are wrong and discovery must rerun.
func Classify(result Result) Diagnosis {
	if result.Passed {
		return Diagnosis{Severity: SeverityNone, LikelyCause: "none", Action: ActionNone}
	}

	differences := result.Differences
	if len(differences) == 0 {
		return Diagnosis{
			Severity:    SeverityHigh,
			LikelyCause: "major structural difference",
			Action:      ActionBacktrackToDiscovery,
		}
	}

	files := make(map[string]bool)
	totalChanges := 0
	for _, d := range differences {
		files[d.File] = true
		totalChanges += len(d.Changes)
	}
	numFiles := len(files)

	var diag Diagnosis
	switch {
	case numFiles == 1 && totalChanges <= 5:
		diag = Diagnosis{
			Severity:    SeverityLow,
			LikelyCause: "line misattribution",
			Action:      ActionRetryPlanning,
			Details: []string{
				fmt.Sprintf("File: %s", differences[0].File),
				fmt.Sprintf("Changes: %d lines affected", totalChanges),
			},
		}
	case numFiles <= 3 && totalChanges <= 20:
		diag = Diagnosis{
			Severity:    SeverityMedium,
			LikelyCause: "multiple line misattributions",
			Action:      ActionRetryPlanningWithContext,
			Details: []string{
				fmt.Sprintf("Files affected: %d", numFiles),
				fmt.Sprintf("Total changes: %d", totalChanges),
			},
		}
	default:
		diag = Diagnosis{
			Severity:    SeverityHigh,
			LikelyCause: "intent boundary errors",
			Action:      ActionBacktrackToDiscovery,
			Details: []string{
				fmt.Sprintf("Files affected: %d", numFiles),
				fmt.Sprintf("Total changes: %d", totalChanges),
				"Likely need to re-discover intents",
			},
		}
	}

	for i, d := range differences {
		if i >= 5 {
			break
		}
		diag.Details = append(diag.Details, fmt.Sprintf("  %s: line %d", d.File, d.Line))
	}
	return diag
}
