package main

import (
	"errors"
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

var flagRebuildFrom string

var resumeCmd = &cobra.Command{
	Use:   "resume [session-id]",
	Short: "Resume an interrupted split session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		git, err := gitops.New(ctx, flagWorkspace)
		if err != nil {
			return err
		}

		store, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		var sess *session.Session
		if len(args) == 1 {
			sess, err = store.Load(args[0])
		} else {
			var branch string
			branch, err = git.CurrentBranch(ctx)
			if err != nil {
				return err
			}
			sess, err = store.Latest(branch)
		}
		if errors.Is(err, session.ErrNotFound) {
			return fmt.Errorf("no resumable session found; run 'gitsplit sessions' to list them")
		}
		if err != nil {
			return err
		}
		if sess.Terminal() {
			return fmt.Errorf("session %s already finished in phase %q", sess.ID, sess.Phase)
		}

		client, err := newOracleClient()
		if err != nil {
			return err
		}

		logger.Info("resuming session",
			zap.String("session", sess.ID),
			zap.String("phase", string(sess.Phase)),
			zap.Int("attempt", sess.CurrentAttempt))
		fmt.Printf("%s %s %s\n",
			titleStyle.Render("Resuming"),
			sess.ID,
			mutedStyle.Render(fmt.Sprintf("(phase %s, attempt %d/%d)", sess.Phase, sess.CurrentAttempt, sess.MaxAttempts)))

		reporter := newConsoleReporter()
		eng := engine.New(git, client, store, sess, reporter)
		eng.SetBuildCommand(cfg.Git.BuildCommand)

		var ok bool
		if cmd.Flags().Changed("from") {
			ok, err = eng.Rebuild(ctx, flagRebuildFrom)
		} else {
			ok, err = eng.Run(ctx)
		}
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
	resumeCmd.Flags().StringVar(&flagRebuildFrom, "from", "",
		"rebuild the stacked branches starting at this intent id (branches below it are kept)")
}
