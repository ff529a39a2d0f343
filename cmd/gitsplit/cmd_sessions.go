package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AgenticCurve/gitsplit/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List saved split sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		summaries, err := store.List()
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println(mutedStyle.Render("No saved sessions."))
			return nil
		}

		fmt.Println(titleStyle.Render("Sessions:"))
		for _, s := range summaries {
			phase := mutedStyle.Render(string(s.Phase))
			switch s.Phase {
			case session.PhaseComplete:
				phase = successStyle.Render(string(s.Phase))
			case session.PhaseFailed:
				phase = errorStyle.Render(string(s.Phase))
			}
			fmt.Printf("  %s  %s  %s  %s\n",
				s.ID,
				branchStyle.Render(s.Branch),
				phase,
				mutedStyle.Render(s.UpdatedAt.Format("2006-01-02 15:04")))
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openStore()
		if err != nil {
			return err
		}
		defer closeStore()

		if err := store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Deleted " + args[0]))
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}
