package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AgenticCurve/gitsplit/internal/gitops"
	"github.com/AgenticCurve/gitsplit/internal/verification"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <original-ref> <split-tip-ref>",
	Short: "Check that a split's final branch matches the original content",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		git, err := gitops.New(ctx, flagWorkspace)
		if err != nil {
			return err
		}

		verifier := verification.NewVerifier(git)
		result, err := verifier.VerifySplit(ctx, args[0], args[1])
		if err != nil {
			return err
		}

		reporter := newConsoleReporter()
		reporter.VerificationResult(result)
		if result.Passed {
			return nil
		}

		diag := verification.Classify(*result)
		fmt.Printf("\n%s %s\n", titleStyle.Render("Diagnosis:"), diag.LikelyCause)
		fmt.Printf("%s %s, suggested action: %s\n",
			mutedStyle.Render("severity:"), diag.Severity, diag.Action)
		for _, line := range diag.Details {
			fmt.Println(mutedStyle.Render("  " + line))
		}
		return fmt.Errorf("verification failed with %d difference(s)", len(result.Differences))
	},
}
