package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AgenticCurve/gitsplit/internal/engine"
	"github.com/AgenticCurve/gitsplit/internal/gitops"
	"github.com/AgenticCurve/gitsplit/internal/session"
)

var (
	flagAuto        bool
	flagHint        string
	flagBabysit     bool
	flagDryRun      bool
	flagBase        string
	flagSkipPR      bool
	flagSkipBuild   bool
	flagMaxAttempts int
)

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Split the current branch into stacked intent branches",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if flagHint != "" {
			flagAuto = true
		}

		git, err := gitops.New(ctx, flagWorkspace)
		if err != nil {
			return err
		}

		branch, err := git.CurrentBranch(ctx)
		if err != nil {
			return err
		}
		base := flagBase
		if base == "" {
			base = cfg.Git.BaseBranch
		}
		if base == "" {
			base = git.DefaultBranch(ctx)
		}
		if branch == base {
			return fmt.Errorf("already on base branch %q, nothing to split", base)
		}

		client, err := newOracleClient()
		if err != nil {
			return err
		}

		store, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		sess := session.New(branch, base)
		sess.MaxAttempts = cfg.Session.MaxAttempts
		if flagMaxAttempts > 0 {
			sess.MaxAttempts = flagMaxAttempts
		}
		sess.MaxCost = cfg.Oracle.MaxCost
		sess.Options = session.Options{
			Auto:            flagAuto,
			AutoHint:        flagHint,
			Babysit:         flagBabysit,
			DryRun:          flagDryRun,
			Verbose:         flagVerbose,
			SkipBuildVerify: flagSkipBuild,
			SkipPR:          flagSkipPR,
		}

		logger.Info("starting split",
			zap.String("session", sess.ID),
			zap.String("branch", branch),
			zap.String("base", base))

		reporter := newConsoleReporter()
		eng := engine.New(git, client, store, sess, reporter)
		eng.SetBuildCommand(cfg.Git.BuildCommand)

		if flagDryRun {
			fmt.Println(warnStyle.Render("Dry run: no branches will be created."))
		}

		ok, err := eng.Run(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("split did not complete (session %s, phase %s)", sess.ID, sess.Phase)
		}
		printSplitComplete(sess)
		return nil
	},
}

func init() {
	splitCmd.Flags().BoolVar(&flagAuto, "auto", false, "skip intent confirmation")
	splitCmd.Flags().StringVar(&flagHint, "hint", "", "guidance for intent discovery (implies --auto)")
	splitCmd.Flags().BoolVar(&flagBabysit, "babysit", false, "confirm every conflict resolution interactively")
	splitCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "discover and plan without touching branches")
	splitCmd.Flags().StringVar(&flagBase, "base", "", "base branch to diff against (default: auto-detect)")
	splitCmd.Flags().BoolVar(&flagSkipPR, "no-pr", false, "do not open pull requests")
	splitCmd.Flags().BoolVar(&flagSkipBuild, "no-verify-build", false, "skip per-branch build verification")
	splitCmd.Flags().IntVar(&flagMaxAttempts, "max-attempts", 0, "override the retry budget")
}
