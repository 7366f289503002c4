package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/gardencalm/internal/session"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionStatsCmd, sessionClearCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions",
}

var sessionStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate session statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		store, err := session.NewFileStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open session store: %w", err)
		}

		stats, err := store.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("session stats: %w", err)
		}

		if stats.Sessions == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Sessions\t%d\n", stats.Sessions)
		fmt.Fprintf(w, "Messages\t%d\n", stats.Messages)
		fmt.Fprintf(w, "Messages/session\t%.1f\n", stats.MessagesPerSession)
		if !stats.OldestSession.IsZero() {
			fmt.Fprintf(w, "Oldest\t%s\n", stats.OldestSession.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(w, "Newest\t%s\n", stats.NewestSession.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear <user|all>",
	Short: "Clear a user's session or all sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		sessionsDir := filepath.Join(cfg.DataDir, "sessions")

		if args[0] == "all" {
			if err := os.RemoveAll(sessionsDir); err != nil {
				return fmt.Errorf("remove sessions directory: %w", err)
			}
			fmt.Println("All sessions cleared.")
			return nil
		}

		// Remove a specific session file (validate path to prevent traversal)
		sessionFile := filepath.Join(sessionsDir, args[0]+".json")
		resolved, err := filepath.Abs(sessionFile)
		if err != nil {
			return fmt.Errorf("resolve path: %w", err)
		}
		absSessionsDir, _ := filepath.Abs(sessionsDir)
		if !strings.HasPrefix(resolved, absSessionsDir+string(filepath.Separator)) {
			return fmt.Errorf("invalid user ID: %s", args[0])
		}
		if _, err := os.Stat(sessionFile); os.IsNotExist(err) {
			return fmt.Errorf("session not found: %s", args[0])
		}
		if err := os.Remove(sessionFile); err != nil {
			return fmt.Errorf("remove session file: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Session %s cleared.\n", args[0])
		return nil
	},
}
