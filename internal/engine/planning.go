package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/AgenticCurve/gitsplit/internal/diff"
	"github.com/AgenticCurve/gitsplit/internal/gitops"
	"github.com/AgenticCurve/gitsplit/internal/logging"
	"github.com/AgenticCurve/gitsplit/internal/oracle"
	"github.com/AgenticCurve/gitsplit/internal/session"
)

// Planner runs phase 2: turn confirmed intents into a validated plan
// mapping every changed line to exactly one intent.
type Planner struct {
	git    *gitops.Git
	oracle *oracle.Client
	sess   *session.Session
}

// NewPlanner wires the planning phase.
func NewPlanner(git *gitops.Git, client *oracle.Client, sess *session.Session) *Planner {
	return &Planner{git: git, oracle: client, sess: sess}
}

// Plan asks the oracle for a line-level plan. The conversation from
// discovery is continued so the oracle keeps its earlier analysis.
func (p *Planner) Plan(ctx context.Context, intents []session.Intent) (*session.ChangePlan, error) {
	if len(intents) == 0 {
		return nil, fmt.Errorf("no intents provided")
	}
	defer logging.StartTimer(logging.CategoryEngine, "planning").Stop()

	raw, err := p.git.RawDiff(ctx, p.sess.BaseBranch, p.sess.Branch)
	if err != nil {
		return nil, fmt.Errorf("planning failed: %w", err)
	}

	p.oracle.AddUserMessage(p.buildContext(intents, raw))
	return p.complete(ctx, intents)
}

// RetryWithError replans on the existing conversation after a failure.
func (p *Planner) RetryWithError(ctx context.Context, errText, diagnosis string) (*session.ChangePlan, error) {
	p.oracle.AddErrorContext(errText, diagnosis)
	return p.complete(ctx, p.sess.ConfirmedIntents)
}

// Replan reruns planning after a verification failure, naming the file
// plans that should be kept.
func (p *Planner) Replan(ctx context.Context, preservedFiles []string, errorContext string) (*session.ChangePlan, error) {
	raw, err := p.git.RawDiff(ctx, p.sess.BaseBranch, p.sess.Branch)
	if err != nil {
		return nil, fmt.Errorf("replanning failed: %w", err)
	}

	p.oracle.AddUserMessage(p.buildReplanContext(p.sess.ConfirmedIntents, raw, preservedFiles, errorContext))
	return p.complete(ctx, p.sess.ConfirmedIntents)
}

func (p *Planner) complete(ctx context.Context, intents []session.Intent) (*session.ChangePlan, error) {
	content, err := p.oracle.Complete(ctx)
	if err != nil {
		return nil, fmt.Errorf("oracle planning failed: %w", err)
	}

	known := make(map[string]bool, len(intents))
	for _, i := range intents {
		known[i.ID] = true
	}
	resp, err := oracle.ParsePlan(content, known)
	if err != nil {
		return nil, err
	}

	usage := p.oracle.Usage()
	p.sess.TokensUsed = usage.InputTokens + usage.OutputTokens
	p.sess.TotalCost = usage.Cost

	plan := buildPlan(intents, resp)
	p.sess.Plan = plan
	return plan, nil
}

func (p *Planner) buildContext(intents []session.Intent, raw string) string {
	var b strings.Builder
	b.WriteString("Now let's create a detailed change plan.\n\n")
	b.WriteString("## Confirmed Intents\n\n")
	for _, intent := range intents {
		fmt.Fprintf(&b, "### %s: %s\n%s\nFiles:\n", intent.ID, intent.Name, intent.Description)
		writeIntentFiles(&b, intent)
		b.WriteString("\n")
	}

	b.WriteString("## Full Diff\n```diff\n")
	b.WriteString(raw)
	b.WriteString("\n```\n")

	b.WriteString("\n## Instructions\n")
	b.WriteString("Create a precise plan that maps EVERY changed line to an intent.\n")
	b.WriteString("For lines that belong to multiple intents, specify the resolution strategy:\n")
	b.WriteString("- 'stack': Intent B depends on Intent A (B includes A's change)\n")
	b.WriteString("- 'merge': Combine the intents\n")
	b.WriteString("- 'duplicate': Both intents include the change\n")
	return b.String()
}

func (p *Planner) buildReplanContext(intents []session.Intent, raw string, preservedFiles []string, errorContext string) string {
	var b strings.Builder
	b.WriteString("## Previous Plan Failed\n")
	b.WriteString(errorContext)
	b.WriteString("\n\nPlease create an updated plan that fixes these issues.\n\n")

	if len(preservedFiles) > 0 {
		b.WriteString("## Preserved File Plans (do not change)\n")
		for _, path := range preservedFiles {
			fmt.Fprintf(&b, "  - %s\n", path)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Intents\n\n")
	for _, intent := range intents {
		fmt.Fprintf(&b, "### %s: %s\n", intent.ID, intent.Name)
		writeIntentFiles(&b, intent)
		b.WriteString("\n")
	}

	b.WriteString("## Full Diff\n```diff\n")
	b.WriteString(raw)
	b.WriteString("\n```\n")

	b.WriteString("\n## Instructions\n")
	b.WriteString("Re-create the plan, fixing the issues mentioned above.\n")
	b.WriteString("Pay special attention to the lines that caused the verification failure.\n")
	b.WriteString("CRITICAL: Line ranges must refer to the NEW file (feature branch).\n")
	b.WriteString("Read hunk headers carefully: @@ -old_start,old_count +new_start,new_count @@\n\n")
	b.WriteString("Output as JSON (same format as before).\n")
	return b.String()
}

func writeIntentFiles(b *strings.Builder, intent session.Intent) {
	for _, f := range intent.Files {
		if f.IsEntireFile {
			fmt.Fprintf(b, "  - %s (entire file)\n", f.Path)
			continue
		}
		ranges := make([]string, 0, len(f.LineRanges))
		for _, lr := range f.LineRanges {
			ranges = append(ranges, fmt.Sprintf("%d-%d", lr.Start, lr.End))
		}
		fmt.Fprintf(b, "  - %s (lines: %s)\n", f.Path, strings.Join(ranges, ", "))
	}
}

// buildPlan folds the oracle's plan response into the session model:
// dependencies onto intents, shared assignments into conflicts.
func buildPlan(intents []session.Intent, resp *oracle.PlanResponse) *session.ChangePlan {
	for _, dep := range resp.Dependencies {
		if dep.From == "" || dep.To == "" {
			continue
		}
		for i := range intents {
			if intents[i].ID != dep.From {
				continue
			}
			exists := false
			for _, d := range intents[i].Dependencies {
				if d == dep.To {
					exists = true
					break
				}
			}
			if !exists {
				intents[i].Dependencies = append(intents[i].Dependencies, dep.To)
			}
		}
	}

	order := resp.ExecutionOrder
	if len(order) == 0 {
		for _, i := range intents {
			order = append(order, i.ID)
		}
	}

	var conflicts []session.Conflict
	for _, fp := range resp.FilePlans {
		for _, a := range fp.Assignments {
			if a.IntentID != "shared" || len(a.SharedBy) < 2 {
				continue
			}
			strategy := session.Strategy(a.Strategy)
			if strategy == "" {
				strategy = session.StrategyStack
			}

			var overlaps []session.RangeOverlap
			for i := 0; i < len(a.SharedBy)-1; i++ {
				overlaps = append(overlaps, session.RangeOverlap{
					IntentA: a.SharedBy[i],
					IntentB: a.SharedBy[i+1],
					Overlap: diff.LineRange(a.Lines),
				})
			}

			conflicts = append(conflicts, session.Conflict{
				FilePath:          fp.Path,
				IntentIDs:         a.SharedBy,
				OverlappingRanges: overlaps,
				SuggestedStrategy: strategy,
			})
			logging.EngineDebug("Conflict in %s shared by %v (strategy %s)", fp.Path, a.SharedBy, strategy)
		}
	}

	return &session.ChangePlan{
		Intents:        intents,
		Conflicts:      conflicts,
		ExecutionOrder: order,
	}
}

// ResolveConflict records the chosen strategy on the session's plan.
func (p *Planner) ResolveConflict(conflict *session.Conflict, strategy session.Strategy) {
	conflict.Resolved = true
	conflict.ChosenStrategy = strategy

	if p.sess.Plan == nil {
		return
	}
	for i := range p.sess.Plan.Conflicts {
		c := &p.sess.Plan.Conflicts[i]
		if c.FilePath == conflict.FilePath {
			c.Resolved = true
			c.ChosenStrategy = strategy
		}
	}
}
