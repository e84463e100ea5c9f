// Package main provides the history command for covergate
package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bebsworthy/covergate/internal/debug"
	"github.com/bebsworthy/covergate/internal/reporter"
	"github.com/bebsworthy/covergate/internal/store"
)

// History command flags
var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "Inspect past validation sessions",
	Long: `List past validation sessions, or show one session in detail.

Every run records its session and attempts in a local SQLite database
(historyPath in the configuration, .covergate/history.db by default).
Without arguments the most recent sessions are listed; with a session
id, or a unique prefix of one, every attempt of that session is shown.`,
	Example: `  # List recent sessions
  covergate history

  # List more of them
  covergate history --limit 50

  # Show one session in detail
  covergate history 3f2a1b4c`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of sessions to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	st, err := openHistory()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			debug.LogError(cerr, "closing history store")
		}
	}()

	if len(args) == 1 {
		return showSession(st, args[0])
	}
	return listSessions(st)
}

// openHistory opens the history database. The configuration names its
// location when present; a missing or broken configuration falls back
// to the default path so history stays readable.
func openHistory() (*store.Store, error) {
	path := defaultHistoryPath
	if cfg, err := loadConfig(); err == nil {
		path = historyPath(cfg)
	} else {
		debug.LogError(err, "loading config for history path")
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history at %s: %w", path, err)
	}
	return st, nil
}

// listSessions prints the most recent sessions as a table
func listSessions(st *store.Store) error {
	sessions, err := st.Sessions(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions recorded.")
		fmt.Println("\nRun a validation with: covergate run --candidates <file>")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SESSION\tSOURCE\tCOVERAGE\tATTEMPTS\tSTARTED") //nolint:errcheck // Best effort table output
	for i := range sessions {
		rec := &sessions[i]
		coverage := fmt.Sprintf("%.1f%% -> %.1f%%", rec.BaselineCoverage*100, rec.FinalCoverage*100)
		if !rec.Finished() {
			coverage = fmt.Sprintf("%.1f%% -> ?", rec.BaselineCoverage*100)
		}
		attempts := fmt.Sprintf("%d/%d committed", rec.Committed, rec.Attempts)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", //nolint:errcheck // Best effort table output
			shortID(rec.ID), rec.SourceFile, coverage, attempts,
			rec.StartedAt.Local().Format("2006-01-02 15:04"))
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush table output: %w", err)
	}

	fmt.Println("\nShow a session with: covergate history <session-id>")
	return nil
}

// showSession prints one session and every attempt it recorded
func showSession(st *store.Store, idPrefix string) error {
	rec, err := st.Session(idPrefix)
	if err != nil {
		return err
	}

	fmt.Printf("Session %s\n", rec.ID)
	fmt.Printf("  Source file: %s\n", rec.SourceFile)
	fmt.Printf("  Test file:   %s\n", rec.TestFile)
	if rec.Language != "" {
		framework := rec.Framework
		if framework == "" {
			framework = "unknown framework"
		}
		fmt.Printf("  Language:    %s (%s)\n", rec.Language, framework)
	}
	fmt.Printf("  Command:     %s\n", rec.Command)
	if rec.ReportPath != "" {
		fmt.Printf("  Report:      %s\n", rec.ReportPath)
	}
	fmt.Printf("  Started:     %s\n", rec.StartedAt.Local().Format(time.RFC1123))
	if rec.Finished() {
		fmt.Printf("  Finished:    %s\n", rec.FinishedAt.Local().Format(time.RFC1123))
		fmt.Printf("  Coverage:    %.1f%% -> %.1f%%", rec.BaselineCoverage*100, rec.FinalCoverage*100)
		if rec.DesiredCoverage > 0 {
			if rec.FinalCoverage*100 >= rec.DesiredCoverage {
				fmt.Printf(" (desired %.1f%% reached)", rec.DesiredCoverage)
			} else {
				fmt.Printf(" (desired %.1f%% not reached)", rec.DesiredCoverage)
			}
		}
		fmt.Println()
	} else {
		fmt.Printf("  Coverage:    %.1f%% at baseline, session did not finish\n", rec.BaselineCoverage*100)
	}

	attempts, err := st.Attempts(rec.ID)
	if err != nil {
		return fmt.Errorf("failed to load attempts: %w", err)
	}
	if len(attempts) == 0 {
		fmt.Println("\nNo attempts recorded.")
		return nil
	}

	rep := reporter.NewRunReporter()
	fmt.Printf("\nAttempts (%d):\n", len(attempts))
	for i := range attempts {
		fmt.Println(rep.FormatAttempt(&attempts[i]))
	}
	return nil
}

// shortID truncates a session id for table display
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
