package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/AgenticCurve/gitsplit/internal/blocks"
	"github.com/AgenticCurve/gitsplit/internal/gitops"
	"github.com/AgenticCurve/gitsplit/internal/logging"
	"github.com/AgenticCurve/gitsplit/internal/oracle"
	"github.com/AgenticCurve/gitsplit/internal/session"
	"github.com/AgenticCurve/gitsplit/internal/verification"
)

// escalateAtAttempt is the attempt number at which the oracle tier is
// raised. Escalation is monotonic: tiers never come back down within a
// session.
const escalateAtAttempt = 3

// NextAction is the outcome of classifying a verification failure:
// either retry from some phase, or stop.
type NextAction interface {
	isNextAction()
}

// Retry directs the engine to resume from TargetPhase.
type Retry struct {
	TargetPhase session.Phase
}

// Terminate directs the engine to stop with Reason.
type Terminate struct {
	Reason string
}

func (Retry) isNextAction()     {}
func (Terminate) isNextAction() {}

// Reporter receives user-facing progress from the engine. The CLI
// renders it; tests use a silent implementation.
type Reporter interface {
	Scanning(branch, base string)
	Info(format string, args ...any)
	Error(format string, args ...any)
	Intents(intents []session.Intent)
	BranchProgress(step, total int, branch, status string)
	VerificationResult(result *verification.Result)
	Backtrack(from, to session.Phase, reason string)
	Retrying(attempt, maxAttempts int, cause string)

	// ConfirmIntents asks the user to approve the discovered intents.
	// Only called outside auto mode.
	ConfirmIntents(intents []session.Intent) (bool, error)
	// ResolveConflict asks the user to pick a strategy in babysit mode.
	ResolveConflict(c *session.Conflict) session.Strategy
}

// Engine drives the three-phase split with backtracking and
// self-healing retries.
type Engine struct {
	git      *gitops.Git
	oracle   *oracle.Client
	store    session.Store
	sess     *session.Session
	reporter Reporter

	verifier  *verification.Verifier
	discovery *Discovery
	planner   *Planner
	executor  *Executor
}

// New wires an engine around an existing session. The store is
// injected so callers choose JSON or SQLite persistence.
func New(git *gitops.Git, client *oracle.Client, store session.Store, sess *session.Session, reporter Reporter) *Engine {
	verifier := verification.NewVerifier(git)
	registry := blocks.NewRegistry()
	return &Engine{
		git:       git,
		oracle:    client,
		store:     store,
		sess:      sess,
		reporter:  reporter,
		verifier:  verifier,
		discovery: NewDiscovery(git, client, registry, sess),
		planner:   NewPlanner(git, client, sess),
		executor:  NewExecutor(git, verifier, sess),
	}
}

// Session exposes the engine's session for callers that display it.
func (e *Engine) Session() *session.Session { return e.sess }

// SetBuildCommand forwards a configured build command to the executor.
func (e *Engine) SetBuildCommand(cmd string) { e.executor.SetBuildCommand(cmd) }

// Rebuild reruns execution from the named intent, keeping the stacked
// branches below it. With an empty id the whole stack is rebuilt.
func (e *Engine) Rebuild(ctx context.Context, fromIntent string) (bool, error) {
	if e.sess.Plan == nil {
		return false, fmt.Errorf("session has no change plan to rebuild from")
	}

	result, err := e.executor.RebuildFromPlan(ctx, e.sess.Plan, fromIntent, e.reporter.BranchProgress)
	if err != nil {
		return false, err
	}
	e.reporter.VerificationResult(result)

	if result.Passed {
		e.sess.Phase = session.PhaseComplete
	} else {
		e.sess.Phase = session.PhaseFailed
	}
	return result.Passed, e.store.Save(e.sess)
}

// Run drives the session to completion. It returns true when the split
// verified, false when the user aborted or attempts were exhausted.
// The session is saved after every phase transition so an interrupted
// run resumes where it stopped.
func (e *Engine) Run(ctx context.Context) (ok bool, err error) {
	defer func() {
		if serr := e.store.Save(e.sess); serr != nil && err == nil {
			err = serr
		}
	}()

	for e.sess.CurrentAttempt <= e.sess.MaxAttempts {
		passed, done, stepErr := e.step(ctx)
		if stepErr != nil {
			e.reporter.Error("%v", stepErr)
			logging.Engine("Attempt %d failed: %v", e.sess.CurrentAttempt, stepErr)

			e.sess.CurrentAttempt++
			if e.sess.CurrentAttempt > e.sess.MaxAttempts {
				e.sess.Phase = session.PhaseFailed
				return false, nil
			}
			if serr := e.store.Save(e.sess); serr != nil {
				return false, serr
			}
			continue
		}
		if done {
			return passed, nil
		}
	}

	e.sess.Phase = session.PhaseFailed
	return false, nil
}

// step runs one pass through the phase machine. done reports whether
// the run is finished (successfully or not).
func (e *Engine) step(ctx context.Context) (passed, done bool, err error) {
	if e.sess.Phase == session.PhaseInit || e.sess.Phase == session.PhaseDiscovery {
		if err := e.runDiscovery(ctx); err != nil {
			return false, false, err
		}
	}

	if e.sess.Phase == session.PhaseDiscovery {
		proceed, err := e.confirmIntents()
		if err != nil {
			return false, false, err
		}
		if !proceed {
			return false, true, nil
		}
	}

	if e.sess.Phase == session.PhasePlanning {
		if err := e.runPlanning(ctx); err != nil {
			return false, false, err
		}
	}

	if e.sess.Phase == session.PhaseExecution {
		result, err := e.runExecution(ctx)
		if err != nil {
			return false, false, err
		}

		if result.Passed {
			e.sess.Phase = session.PhaseComplete
			if err := e.store.Save(e.sess); err != nil {
				return false, false, err
			}
			return true, true, nil
		}

		action := e.handleVerificationFailure(ctx, result)
		if t, isTerminate := action.(Terminate); isTerminate {
			e.sess.Phase = session.PhaseFailed
			e.reporter.Error("Split failed: %s", t.Reason)
			return false, true, nil
		}
	}

	return false, false, nil
}

func (e *Engine) runDiscovery(ctx context.Context) error {
	e.sess.Phase = session.PhaseDiscovery
	e.reporter.Scanning(e.sess.Branch, e.sess.BaseBranch)

	hint := ""
	if e.sess.Options.Auto {
		hint = e.sess.Options.AutoHint
	}
	intents, err := e.discovery.Discover(ctx, hint)
	if err != nil {
		// A malformed oracle reply gets one self-healing retry on the
		// same conversation before the attempt is charged.
		var perr *oracle.ParseError
		if !errors.As(err, &perr) {
			return err
		}
		e.reporter.Info("Oracle response was malformed, asking it to correct itself")
		intents, err = e.discovery.RetryWithError(ctx, perr.Error(),
			"Respond with exactly the JSON structure requested, no prose.")
		if err != nil {
			return err
		}
	}

	e.reporter.Intents(intents)
	return e.store.Save(e.sess)
}

func (e *Engine) confirmIntents() (bool, error) {
	if e.sess.Options.Auto {
		for i := range e.sess.DiscoveredIntents {
			e.sess.DiscoveredIntents[i].IsConfirmed = true
		}
		e.sess.ConfirmedIntents = e.sess.DiscoveredIntents
		e.sess.Phase = session.PhasePlanning
		return true, e.store.Save(e.sess)
	}

	proceed, err := e.reporter.ConfirmIntents(e.sess.DiscoveredIntents)
	if err != nil {
		return false, err
	}
	if !proceed {
		e.reporter.Info("Aborted")
		return false, nil
	}

	for i := range e.sess.DiscoveredIntents {
		e.sess.DiscoveredIntents[i].IsConfirmed = true
	}
	e.sess.ConfirmedIntents = e.sess.DiscoveredIntents
	e.sess.Phase = session.PhasePlanning
	return true, e.store.Save(e.sess)
}

func (e *Engine) runPlanning(ctx context.Context) error {
	e.reporter.Info("Creating change plan...")
	// The discovery conversation stays: the oracle plans with its own
	// intent analysis still in context.
	e.oracle.SetSystem(oracle.PlanningSystemPrompt)

	plan, err := e.planner.Plan(ctx, e.sess.ConfirmedIntents)
	if err != nil {
		return err
	}

	if len(plan.Conflicts) > 0 && e.sess.Options.Babysit {
		for i := range plan.Conflicts {
			c := &plan.Conflicts[i]
			if !c.Resolved {
				e.planner.ResolveConflict(c, e.reporter.ResolveConflict(c))
			}
		}
	}

	e.sess.Plan = plan
	e.sess.Phase = session.PhaseExecution
	return e.store.Save(e.sess)
}

func (e *Engine) runExecution(ctx context.Context) (*verification.Result, error) {
	if e.sess.Plan == nil {
		return nil, fmt.Errorf("no change plan available")
	}
	if e.sess.Options.DryRun {
		e.reporter.Info("Dry run - no branches will be created")
	}

	result, err := e.executor.Execute(ctx, e.sess.Plan, e.reporter.BranchProgress)
	if err != nil {
		return nil, err
	}
	e.reporter.VerificationResult(result)
	return result, nil
}

// handleVerificationFailure classifies the mismatch and transitions
// the session for the next attempt. The returned NextAction makes the
// decision explicit and testable.
func (e *Engine) handleVerificationFailure(ctx context.Context, result *verification.Result) NextAction {
	e.sess.CurrentAttempt++
	if e.sess.CurrentAttempt > e.sess.MaxAttempts {
		return Terminate{Reason: "maximum retry attempts exhausted"}
	}

	diag := verification.Classify(*result)
	e.reporter.Retrying(e.sess.CurrentAttempt, e.sess.MaxAttempts, diag.LikelyCause)

	errorDetails := ""
	for _, d := range diag.Details {
		errorDetails += d + "\n"
	}

	var action NextAction
	switch diag.Action {
	case verification.ActionBacktrackToDiscovery:
		e.reporter.Backtrack(e.sess.Phase, session.PhaseDiscovery, diag.LikelyCause)
		if _, err := e.discovery.Rediscover(ctx, nil, result.Diagnosis()); err != nil {
			e.reporter.Error("Re-discovery failed: %v", err)
			e.backtrackTo(session.PhaseDiscovery, result.Diagnosis(), nil, nil)
		} else {
			// New intents need confirmation again.
			e.sess.Phase = session.PhaseDiscovery
			e.recordBacktrack(session.PhaseExecution, session.PhaseDiscovery, diag.LikelyCause)
		}
		action = Retry{TargetPhase: session.PhaseDiscovery}

	case verification.ActionRetryPlanningWithContext:
		// File plans that verified clean are pinned so the oracle only
		// reworks the ones that diverged.
		preserved := preservedFilePlans(e.sess.Plan, result)
		e.reporter.Backtrack(e.sess.Phase, session.PhasePlanning, diag.LikelyCause)
		if plan, err := e.planner.Replan(ctx, preserved, result.Diagnosis()+"\n"+errorDetails); err != nil {
			e.reporter.Error("Re-planning failed: %v", err)
			e.backtrackTo(session.PhasePlanning, result.Diagnosis(), nil, preserved)
		} else {
			e.sess.Plan = plan
			e.sess.Phase = session.PhaseExecution
			e.recordBacktrack(session.PhaseExecution, session.PhasePlanning, diag.LikelyCause)
		}
		action = Retry{TargetPhase: session.PhasePlanning}

	default:
		// Planning retries cover both retry_planning variants and any
		// unknown action: replanning is the cheapest safe move.
		e.reporter.Backtrack(e.sess.Phase, session.PhasePlanning, diag.LikelyCause)
		if plan, err := e.planner.RetryWithError(ctx, result.Diagnosis(), errorDetails); err != nil {
			e.reporter.Error("Re-planning failed: %v", err)
			e.backtrackTo(session.PhasePlanning, result.Diagnosis(), nil, nil)
		} else {
			e.sess.Plan = plan
			e.sess.Phase = session.PhaseExecution
			e.recordBacktrack(session.PhaseExecution, session.PhasePlanning, diag.LikelyCause)
		}
		action = Retry{TargetPhase: session.PhasePlanning}
	}

	if e.sess.CurrentAttempt >= escalateAtAttempt {
		if e.oracle.EscalateTier() {
			e.reporter.Info("Escalated oracle to %s", e.oracle.Tier())
		}
	}

	if err := e.store.Save(e.sess); err != nil {
		logging.Engine("Could not save session after backtrack: %v", err)
	}
	return action
}

// preservedFilePlans lists planned files untouched by the verification
// differences; their assignments verified clean, so a replan keeps them.
func preservedFilePlans(plan *session.ChangePlan, result *verification.Result) []string {
	if plan == nil {
		return nil
	}
	differing := make(map[string]bool, len(result.Differences))
	for _, d := range result.Differences {
		differing[d.File] = true
	}

	seen := make(map[string]bool)
	var preserved []string
	for _, intent := range plan.Intents {
		for _, fc := range intent.Files {
			if differing[fc.Path] || seen[fc.Path] {
				continue
			}
			seen[fc.Path] = true
			preserved = append(preserved, fc.Path)
		}
	}
	sort.Strings(preserved)
	return preserved
}

func (e *Engine) recordBacktrack(from, to session.Phase, reason string) {
	e.sess.Backtracks = append(e.sess.Backtracks, session.Backtrack{
		FromPhase: from,
		ToPhase:   to,
		Reason:    reason,
		Attempt:   e.sess.CurrentAttempt,
	})
}

// backtrackTo rewinds the session phase, recording the retreat.
func (e *Engine) backtrackTo(target session.Phase, reason string, preservedIntents, preservedFiles []string) {
	e.sess.Backtracks = append(e.sess.Backtracks, session.Backtrack{
		FromPhase:        e.sess.Phase,
		ToPhase:          target,
		Reason:           reason,
		Attempt:          e.sess.CurrentAttempt,
		PreservedIntents: preservedIntents,
		PreservedFiles:   preservedFiles,
	})
	e.sess.Phase = target
	e.reporter.Backtrack(e.sess.Phase, target, reason)
}
