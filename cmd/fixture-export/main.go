package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/config"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/replay"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/state"
)

// #region main

func main() {
	if err := newRoot().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRoot() *cobra.Command {
	var dbPath, sessionID, outPath, description string
	cmd := &cobra.Command{
		Use:           "fixture-export --db path/to/db --out path/to/fixture.json",
		Short:         "Export a stored session as a replay fixture",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(dbPath, sessionID, outPath, description)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "path to the snapshot database")
	cmd.Flags().StringVar(&sessionID, "session", "", "session to export, defaults to the active one")
	cmd.Flags().StringVar(&outPath, "out", "", "output fixture JSON path")
	cmd.Flags().StringVar(&description, "description", "", "fixture description")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// #endregion main

// #region export

// run exports with the scoring parameters from the environment, which should
// match the ones the live session ran with.
func run(dbPath, sessionID, outPath, description string) error {
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
	if description == "" {
		description = fmt.Sprintf("Exported from session %s", rec.SessionID)
	}

	f, err := replay.ExportFixture(rec, cfg.Orchestrator(), description)
	if err != nil {
		return err
	}
	if len(f.Steps) == 0 {
		return fmt.Errorf("session %s has no committed operations", rec.SessionID)
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(outPath, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}

	fmt.Printf("Exported %d steps from session %s to %s\n", len(f.Steps), rec.SessionID, outPath)
	return nil
}

// #endregion export
