package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/config"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/replay"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/state"
)

// errDiverged marks a replay whose outcome differs from the recorded one.
var errDiverged = errors.New("replay diverged")

// #region main

func main() {
	err := newRoot().Execute()
	switch {
	case err == nil:
		os.Exit(0)
	case errors.Is(err, errDiverged):
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

func newRoot() *cobra.Command {
	var dbPath, sessionID, fixturePath string
	cmd := &cobra.Command{
		Use:           "replay (--db path/to/persona_state.db [--session id] | --fixture path/to/fixture.json)",
		Short:         "Re-run recorded turn responses through the orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (dbPath == "") == (fixturePath == "") {
				return errors.New("exactly one of --db or --fixture is required")
			}
			out := cmd.OutOrStdout()
			if fixturePath != "" {
				return runFixtureMode(fixturePath, out)
			}
			return runDBMode(dbPath, sessionID, out)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "path to the snapshot database (DB mode)")
	cmd.Flags().StringVar(&sessionID, "session", "", "session to replay, defaults to the active one")
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "path to fixture JSON (fixture mode)")
	return cmd
}

// #endregion main

// #region db-mode

// runDBMode replays a stored session with the scoring parameters from the environment,
// which should match the ones the live session ran with.
func runDBMode(dbPath, sessionID string, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := state.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	rec, err := replay.FromStore(store, sessionID)
	if err != nil {
		return err
	}
	if len(rec.Interactions) == 0 {
		return fmt.Errorf("session %s has no committed turns", rec.SessionID)
	}

	results, final := replay.Replay(rec.Start, rec.Interactions, cfg.Orchestrator())

	fmt.Fprintf(out, "Session %s\n\n", rec.SessionID)
	fmt.Fprintf(out, "%-10s| %-6s| %-10s| %9s| %9s| %s\n", "Version", "Kind", "Action", "Stored", "Replayed", "Match")
	fmt.Fprintf(out, "%-10s+%-7s+%-11s+%10s+%10s+%s\n", "----------", "-------", "-----------", "----------", "----------", "------")
	for i, r := range results {
		exp := rec.Expected[i]
		match := "OK"
		if r.Engagement != exp.Engagement || r.Ended != exp.Ended {
			match = "DIFF"
		}
		fmt.Fprintf(out, "%-10s| %-6s| %-10s| %9d| %9d| %s\n",
			shortID(exp.VersionID), r.Kind, r.Action, exp.Engagement, r.Engagement, match)
	}

	mismatches := rec.Compare(results)
	printSummary(out, replay.Summarize(results, final), len(mismatches))
	if len(mismatches) > 0 {
		return errDiverged
	}
	return nil
}

// #endregion db-mode

// #region fixture-mode

func runFixtureMode(path string, out io.Writer) error {
	f, err := replay.LoadFixture(path)
	if err != nil {
		return err
	}

	results, final, mismatches := f.Run()

	if f.Description != "" {
		fmt.Fprintf(out, "%s\n\n", f.Description)
	}
	fmt.Fprintf(out, "%-5s| %-6s| %-10s| %10s| %s\n", "Step", "Kind", "Action", "Engagement", "Ended")
	fmt.Fprintf(out, "%-5s+%-7s+%-11s+%11s+%s\n", "-----", "-------", "-----------", "-----------", "------")
	for i, r := range results {
		fmt.Fprintf(out, "%-5d| %-6s| %-10s| %10d| %v\n", i, r.Kind, r.Action, r.Engagement, r.Ended)
	}
	for _, m := range mismatches {
		fmt.Fprintf(out, "  DIFF %s\n", m)
	}

	printSummary(out, replay.Summarize(results, final), len(mismatches))
	if len(mismatches) > 0 {
		return errDiverged
	}
	return nil
}

// #endregion fixture-mode

// #region output

func printSummary(out io.Writer, s replay.ReplaySummary, diverge int) {
	fmt.Fprintf(out, "\nSummary: %d total, %d processed, %d skipped, %d errors, %d diverge\n",
		s.TotalTurns, s.Processed, s.Skipped, s.Errors, diverge)
	if s.Ended {
		fmt.Fprintf(out, "Ended: %s at engagement %d\n", s.EndReason, s.FinalState.Score.Engagement)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
