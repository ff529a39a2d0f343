package engine

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/AgenticCurve/gitsplit/internal/diff"
	"github.com/AgenticCurve/gitsplit/internal/gitops"
	"github.com/AgenticCurve/gitsplit/internal/logging"
	"github.com/AgenticCurve/gitsplit/internal/patch"
	"github.com/AgenticCurve/gitsplit/internal/session"
	"github.com/AgenticCurve/gitsplit/internal/verification"
)

// maxBranchNameLen caps the slugified branch name.
const maxBranchNameLen = 50

// ProgressFunc reports per-branch execution progress.
type ProgressFunc func(step, total int, branch, status string)

// Executor runs phase 3: create one stacked branch per intent, apply
// that intent's patches, commit, and finally verify the stack tip
// against the original branch.
type Executor struct {
	git      *gitops.Git
	verifier *verification.Verifier
	sess     *session.Session
	patches  *patch.Generator
	applier  *patch.Applier

	// buildCommand overrides build-system detection when set.
	buildCommand string
}

// SetBuildCommand pins the command used for per-branch build
// verification instead of detecting one from the repository.
func (e *Executor) SetBuildCommand(cmd string) { e.buildCommand = cmd }

// NewExecutor wires the execution phase.
func NewExecutor(git *gitops.Git, verifier *verification.Verifier, sess *session.Session) *Executor {
	return &Executor{
		git:      git,
		verifier: verifier,
		sess:     sess,
		patches:  patch.NewGenerator(git),
		applier:  patch.NewApplier(git),
	}
}

// Execute applies the plan. Branches stack: each intent branch is cut
// from the previous one, so the final branch holds every change and
// can be verified against the original. On any failure all created
// branches are deleted; the working tree is always returned to the
// original branch.
func (e *Executor) Execute(ctx context.Context, plan *session.ChangePlan, onProgress ProgressFunc) (*verification.Result, error) {
	return e.execute(ctx, plan, e.sess.BaseBranch, onProgress)
}

// execute stacks plan's intents on top of startBase. Execute passes the
// session base branch; rebuilds pass the branch below the rebuild point.
func (e *Executor) execute(ctx context.Context, plan *session.ChangePlan, startBase string, onProgress ProgressFunc) (result *verification.Result, err error) {
	if len(plan.ExecutionOrder) == 0 {
		return nil, fmt.Errorf("no execution order in plan")
	}
	defer logging.StartTimer(logging.CategoryEngine, "execution").Stop()

	originalBranch := e.sess.Branch
	originalHash, err := e.verifier.ContentHash(ctx, originalBranch)
	if err != nil {
		return nil, fmt.Errorf("execution failed: %w", err)
	}
	e.sess.OriginalHash = originalHash

	intentsByID := make(map[string]*session.Intent, len(plan.Intents))
	for i := range plan.Intents {
		intentsByID[plan.Intents[i].ID] = &plan.Intents[i]
	}

	fileDiffs, err := e.patches.FullDiff(ctx, e.sess.BaseBranch, originalBranch)
	if err != nil {
		return nil, fmt.Errorf("execution failed: %w", err)
	}
	diffsByPath := make(map[string]*diff.FileDiff, len(fileDiffs))
	for i := range fileDiffs {
		diffsByPath[fileDiffs[i].Path()] = &fileDiffs[i]
	}

	previousBranch := startBase
	var createdBranches []string
	total := len(plan.ExecutionOrder)

	defer func() {
		if err != nil {
			e.cleanupBranches(ctx, createdBranches)
		}
		// Always end on the original branch.
		if !e.sess.Options.DryRun {
			if cerr := e.git.Checkout(ctx, originalBranch); cerr != nil {
				logging.EngineDebug("Could not return to %s: %v", originalBranch, cerr)
			}
		}
	}()

	for step, intentID := range plan.ExecutionOrder {
		intent, ok := intentsByID[intentID]
		if !ok {
			return nil, fmt.Errorf("intent %s not found in plan", intentID)
		}

		branchName := generateBranchName(intent)
		intent.BranchName = branchName
		if onProgress != nil {
			onProgress(step+1, total, branchName, "creating")
		}

		if !e.sess.Options.DryRun {
			if err = e.createIntentBranch(ctx, branchName, previousBranch); err != nil {
				return nil, err
			}
			createdBranches = append(createdBranches, branchName)

			if onProgress != nil {
				onProgress(step+1, total, branchName, "applying changes")
			}
			if err = e.applyIntentPatches(ctx, intent, originalBranch, diffsByPath); err != nil {
				return nil, err
			}

			if !e.sess.Options.SkipBuildVerify {
				if onProgress != nil {
					onProgress(step+1, total, branchName, "verifying build")
				}
				ok, output := e.verifier.VerifyBuild(ctx, e.buildCommand)
				if !ok {
					err = fmt.Errorf("build failed for %s: %s", branchName, output)
					return nil, err
				}
			}

			if !e.sess.Options.SkipPR && e.git.HasRemote(ctx) {
				if onProgress != nil {
					onProgress(step+1, total, branchName, "pushing")
				}
				e.pushAndCreatePR(ctx, intent, branchName, previousBranch)
			}

			if onProgress != nil {
				onProgress(step+1, total, branchName, "done")
			}
		}

		previousBranch = branchName
	}

	e.sess.CreatedBranches = createdBranches

	if e.sess.Options.DryRun || len(createdBranches) == 0 {
		return &verification.Result{
			Passed:       true,
			OriginalHash: originalHash,
			FinalHash:    originalHash,
		}, nil
	}

	result, err = e.verifier.VerifySplit(ctx, originalBranch, createdBranches[len(createdBranches)-1])
	if err != nil {
		return nil, err
	}
	return result, nil
}

var (
	branchStripRe    = regexp.MustCompile(`[^\w\s-]`)
	branchSpaceRe    = regexp.MustCompile(`[\s_]+`)
	branchCollapseRe = regexp.MustCompile(`-+`)
	prNumberRe       = regexp.MustCompile(`/pull/(\d+)`)
)

// generateBranchName slugifies the intent name: lowercase, words
// joined by single dashes, truncated at a word boundary.
func generateBranchName(intent *session.Intent) string {
	name := strings.ToLower(intent.Name)
	name = branchStripRe.ReplaceAllString(name, "")
	name = branchSpaceRe.ReplaceAllString(name, "-")
	name = branchCollapseRe.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")

	if len(name) > maxBranchNameLen {
		truncated := name[:maxBranchNameLen]
		if idx := strings.LastIndex(truncated, "-"); idx > 0 {
			truncated = truncated[:idx]
		}
		name = truncated
	}
	return name
}

func (e *Executor) createIntentBranch(ctx context.Context, branchName, fromBranch string) error {
	if e.git.BranchExists(ctx, branchName) {
		if err := e.git.DeleteBranch(ctx, branchName, true); err != nil {
			return fmt.Errorf("cannot replace existing branch %s: %w", branchName, err)
		}
	}
	if err := e.git.CreateBranch(ctx, branchName, fromBranch); err != nil {
		return err
	}
	return e.git.Checkout(ctx, branchName)
}

// applyIntentPatches brings the working tree to include this intent's
// changes: whole files are checked out from the source branch, partial
// files go through patch synthesis with the line-overlay fallback.
func (e *Executor) applyIntentPatches(ctx context.Context, intent *session.Intent, sourceBranch string, diffsByPath map[string]*diff.FileDiff) error {
	changed := false

	for _, fc := range intent.Files {
		fd := diffsByPath[fc.Path]

		switch {
		case fc.IsEntireFile || len(fc.LineRanges) == 0 || fd == nil:
			if err := e.git.CheckoutFile(ctx, sourceBranch, fc.Path); err != nil {
				logging.EngineDebug("Could not checkout %s from %s: %v", fc.Path, sourceBranch, err)
			} else {
				changed = true
			}

		default:
			patchText := e.patches.ForLines(fd, fc.LineRanges)
			if patchText == "" {
				continue
			}
			if err := e.applier.Apply(ctx, patchText); err != nil {
				logging.Engine("Patch rejected for %s, falling back to line overlay: %v", fc.Path, err)
				if oerr := e.applier.OverlayLines(ctx, fc.Path, sourceBranch, fc.LineRanges); oerr != nil {
					return fmt.Errorf("failed to apply patch for %s lines %v: %w: %w",
						fc.Path, fc.LineRanges, patch.ErrPatchRejected, oerr)
				}
			}
			changed = true
		}
	}

	if !changed {
		return nil
	}
	if err := e.git.StageAll(ctx); err != nil {
		return err
	}
	message := intent.Name
	if intent.Description != "" {
		message += "\n\n" + intent.Description
	}
	_, err := e.git.Commit(ctx, message)
	return err
}

// pushAndCreatePR pushes the branch and opens a PR with the gh CLI.
// PR creation is best effort: a missing gh binary or a failed create
// never fails the split.
func (e *Executor) pushAndCreatePR(ctx context.Context, intent *session.Intent, branchName, baseBranch string) {
	if err := e.git.Push(ctx, branchName); err != nil {
		logging.Engine("Push failed for %s: %v", branchName, err)
		return
	}

	body := intent.Description
	if body == "" {
		body = "Created by gitsplit"
	}
	cmd := exec.CommandContext(ctx, "gh", "pr", "create",
		"--title", intent.Name,
		"--body", body,
		"--base", baseBranch,
		"--head", branchName)
	cmd.Dir = e.git.RepoPath()
	output, err := cmd.Output()
	if err != nil {
		logging.Engine("PR creation failed for %s: %v", branchName, err)
		return
	}

	prURL := strings.TrimSpace(string(output))
	intent.PRURL = prURL
	if m := prNumberRe.FindStringSubmatch(prURL); m != nil {
		fmt.Sscanf(m[1], "%d", &intent.PRNumber)
	}

	e.sess.CreatedPRs = append(e.sess.CreatedPRs, session.PullRequest{
		IntentID: intent.ID,
		Branch:   branchName,
		Number:   intent.PRNumber,
		URL:      prURL,
	})
	logging.Engine("Created PR %s for %s", prURL, branchName)
}

func (e *Executor) cleanupBranches(ctx context.Context, branches []string) {
	// A failed apply can leave the work tree dirty, which would block
	// the checkout below.
	if err := e.git.ResetHard(ctx, "HEAD"); err != nil {
		logging.EngineDebug("Cleanup reset failed: %v", err)
	}
	if err := e.git.Checkout(ctx, e.sess.Branch); err != nil {
		logging.EngineDebug("Cleanup checkout failed: %v", err)
	}
	for _, branch := range branches {
		if err := e.git.DeleteBranch(ctx, branch, true); err != nil {
			logging.EngineDebug("Cleanup could not delete %s: %v", branch, err)
		}
	}
}

// rebuildOrder splits plan's execution order at startingFrom: the ids
// to rerun, the branch they stack on, and the branches kept below. An
// unknown or empty id reruns everything from base.
func rebuildOrder(plan *session.ChangePlan, startingFrom, base string) (rerun []string, startBase string, below []string) {
	order := plan.ExecutionOrder
	if startingFrom == "" {
		return order, base, nil
	}

	for idx, id := range order {
		if id != startingFrom {
			continue
		}
		startBase = base
		for _, prevID := range order[:idx] {
			for i := range plan.Intents {
				if plan.Intents[i].ID == prevID && plan.Intents[i].BranchName != "" {
					below = append(below, plan.Intents[i].BranchName)
					startBase = plan.Intents[i].BranchName
				}
			}
		}
		return order[idx:], startBase, below
	}
	return order, base, nil
}

// RebuildFromPlan reruns execution, optionally starting from a given
/// intent: its branch and everything stacked above it are deleted and
// rebuilt on top of the branch below the rebuild point; branches below
// stay untouched.
func (e *Executor) RebuildFromPlan(ctx context.Context, plan *session.ChangePlan, startingFrom string, onProgress ProgressFunc) (*verification.Result, error) {
	order, startBase, below := rebuildOrder(plan, startingFrom, e.sess.BaseBranch)

	keep := make(map[string]bool, len(order))
	for _, id := range order {
		keep[id] = true
	}
	var intents []session.Intent
	for _, i := range plan.Intents {
		if !keep[i.ID] {
			continue
		}
		if i.BranchName != "" {
			if err := e.git.DeleteBranch(ctx, i.BranchName, true); err != nil {
				logging.EngineDebug("Could not delete %s before rebuild: %v", i.BranchName, err)
			}
		}
		intents = append(intents, i)
	}

	partial := &session.ChangePlan{
		Intents:        intents,
		Conflicts:      plan.Conflicts,
		ExecutionOrder: order,
	}
	result, err := e.execute(ctx, partial, startBase, onProgress)
	if err != nil {
		return nil, err
	}
	e.sess.CreatedBranches = append(below, e.sess.CreatedBranches...)
	return result, nil
}
