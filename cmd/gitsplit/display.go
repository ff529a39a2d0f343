package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AgenticCurve/gitsplit/internal/session"
	"github.com/AgenticCurve/gitsplit/internal/verification"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAF00"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C6C6C"))

	branchStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AFFF"))
)

// consoleReporter renders engine progress to the terminal and handles
// the interactive prompts.
type consoleReporter struct {
	in *bufio.Reader
}

func newConsoleReporter() *consoleReporter {
	return &consoleReporter{in: bufio.NewReader(os.Stdin)}
}

func (r *consoleReporter) Scanning(branch, base string) {
	fmt.Printf("%s %s...%s\n", titleStyle.Render("Scanning"), branchStyle.Render(base), branchStyle.Render(branch))
}

func (r *consoleReporter) Info(format string, args ...any) {
	fmt.Println(mutedStyle.Render(fmt.Sprintf(format, args...)))
}

func (r *consoleReporter) Error(format string, args ...any) {
	fmt.Println(errorStyle.Render("✗ " + fmt.Sprintf(format, args...)))
}

func (r *consoleReporter) Intents(intents []session.Intent) {
	fmt.Printf("\n%s\n", titleStyle.Render(fmt.Sprintf("Found %d distinct intents:", len(intents))))
	for _, intent := range intents {
		fmt.Printf("  %s %s %s\n",
			branchStyle.Render(intent.ID+":"),
			intent.Name,
			mutedStyle.Render(fmt.Sprintf("(+%d -%d)", intent.TotalAdditions(), intent.TotalDeletions())))
		for _, f := range intent.Files {
			detail := "entire file"
			if !f.IsEntireFile {
				var ranges []string
				for _, lr := range f.LineRanges {
					ranges = append(ranges, fmt.Sprintf("%d-%d", lr.Start, lr.End))
				}
				detail = "lines " + strings.Join(ranges, ", ")
			}
			fmt.Printf("    %s %s\n", f.Path, mutedStyle.Render("("+detail+")"))
		}
	}
	fmt.Println()
}

func (r *consoleReporter) BranchProgress(step, total int, branch, status string) {
	fmt.Printf("  [%d/%d] %s %s\n", step, total, branchStyle.Render(branch), mutedStyle.Render(status))
}

func (r *consoleReporter) VerificationResult(result *verification.Result) {
	if result.Passed {
		fmt.Println(successStyle.Render("✓ Verification passed: content hashes match"))
		fmt.Println(mutedStyle.Render("  " + result.OriginalHash))
		return
	}
	fmt.Println(errorStyle.Render("✗ Verification failed"))
	fmt.Println(mutedStyle.Render(fmt.Sprintf("  original: %s", result.OriginalHash)))
	fmt.Println(mutedStyle.Render(fmt.Sprintf("  final:    %s", result.FinalHash)))
	for i, d := range result.Differences {
		if i >= 5 {
			fmt.Println(mutedStyle.Render(fmt.Sprintf("  ... and %d more", len(result.Differences)-5)))
			break
		}
		fmt.Printf("  %s: %s\n", d.File, d.Description)
	}
}

func (r *consoleReporter) Backtrack(from, to session.Phase, reason string) {
	fmt.Println(warnStyle.Render(fmt.Sprintf("↩ Backtracking %s → %s: %s", from, to, reason)))
}

func (r *consoleReporter) Retrying(attempt, maxAttempts int, cause string) {
	fmt.Println(warnStyle.Render(fmt.Sprintf("Retry %d/%d: %s", attempt, maxAttempts, cause)))
}

func (r *consoleReporter) ConfirmIntents(intents []session.Intent) (bool, error) {
	fmt.Print("Proceed with this split? [Y/n] ")
	line, err := r.in.ReadString('\n')
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "" || answer == "y" || answer == "yes", nil
}

func (r *consoleReporter) ResolveConflict(c *session.Conflict) session.Strategy {
	fmt.Printf("\n%s\n", warnStyle.Render(fmt.Sprintf(
		"File %q has overlapping changes for intents: %s",
		c.FilePath, strings.Join(c.IntentIDs, ", "))))
	fmt.Println("  [s] Stack (later intent depends on the earlier one)")
	fmt.Println("  [m] Merge (combine into a single branch)")
	fmt.Println("  [d] Duplicate (both intents include the change)")
	fmt.Print("Choose [s/m/d]: ")

	line, err := r.in.ReadString('\n')
	if err != nil {
		return session.StrategyStack
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "m":
		return session.StrategyMerge
	case "d":
		return session.StrategyDuplicate
	default:
		return session.StrategyStack
	}
}

func printSplitComplete(sess *session.Session) {
	fmt.Println(successStyle.Render("\n✓ Split complete"))
	for _, intent := range sess.ConfirmedIntents {
		line := fmt.Sprintf("  %s", branchStyle.Render(intent.BranchName))
		if intent.PRURL != "" {
			line += mutedStyle.Render("  " + intent.PRURL)
		}
		fmt.Println(line)
	}
	fmt.Println(mutedStyle.Render(fmt.Sprintf(
		"\nTokens used: %d  Cost: $%.4f", sess.TokensUsed, sess.TotalCost)))
	if !sess.Options.DryRun {
		fmt.Println(mutedStyle.Render(fmt.Sprintf(
			"Original branch %q preserved. Delete it manually when ready.", sess.Branch)))
	}
}
