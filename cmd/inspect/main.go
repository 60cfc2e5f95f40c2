package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/orchestrator"
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
	var (
		dbPath  string
		last    int
		version string
		restore string
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:           "inspect --db path/to/persona_state.db",
		Short:         "List, inspect and restore stored conversation snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := state.NewStore(dbPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			switch {
			case restore != "":
				return runRestore(store, restore, out)
			case version != "":
				return runDetailMode(store, version, jsonOut, out)
			default:
				return runListMode(store, last, jsonOut, out)
			}
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "path to the snapshot database")
	cmd.Flags().IntVar(&last, "last", 20, "show N most recent versions")
	cmd.Flags().StringVar(&version, "version", "", "show single version detail")
	cmd.Flags().StringVar(&restore, "restore", "", "make the given version active again")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}

// #endregion main

// #region list-mode

type listRow struct {
	VersionID  string `json:"version_id"`
	SessionID  string `json:"session_id"`
	Trigger    string `json:"trigger"`
	Decision   string `json:"decision"`
	Reason     string `json:"reason,omitempty"`
	Engagement int    `json:"engagement"`
	Ended      bool   `json:"ended"`
	CreatedAt  string `json:"created_at"`
}

func runListMode(store *state.Store, last int, jsonOut bool, out io.Writer) error {
	versions, err := store.ListVersionsWithProvenance(last)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(os.Stderr, "no versions found")
		return nil
	}

	// store returns DESC, reverse for chronological
	rows := make([]listRow, len(versions))
	for i, vp := range versions {
		rows[len(versions)-1-i] = listRow{
			VersionID:  vp.VersionID,
			SessionID:  vp.SessionID,
			Trigger:    vp.TriggerType,
			Decision:   vp.Decision,
			Reason:     vp.Reason,
			Engagement: vp.Engagement,
			Ended:      vp.Ended,
			CreatedAt:  vp.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(out, rows)
	}
	printListTable(out, rows)
	return nil
}

func printListTable(out io.Writer, rows []listRow) {
	fmt.Fprintf(out, "%-10s  %-10s  %-16s  %-8s  %10s  %-5s  %s\n",
		"Version", "Session", "Trigger", "Decision", "Engagement", "Ended", "Time")
	fmt.Fprintf(out, "%-10s+-%-10s+-%-16s+-%-8s+-%10s+-%-5s+-%s\n",
		"----------", "----------", "----------------", "--------", "----------", "-----", "--------------------")
	for _, r := range rows {
		fmt.Fprintf(out, "%-10s  %-10s  %-16s  %-8s  %10d  %-5v  %s\n",
			shortID(r.VersionID), shortID(r.SessionID), r.Trigger, r.Decision, r.Engagement, r.Ended, r.CreatedAt)
	}
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	VersionID  string  `json:"version_id"`
	ParentID   string  `json:"parent_id"`
	SessionID  string  `json:"session_id"`
	TurnID     string  `json:"turn_id,omitempty"`
	CreatedAt  string  `json:"created_at"`
	Trigger    string  `json:"trigger"`
	Decision   string  `json:"decision"`
	Reason     string  `json:"reason"`
	Summary    summary `json:"summary"`
	HasReplay  bool    `json:"has_turn_response"`
	StateError string  `json:"state_error,omitempty"`
}

type summary struct {
	Engagement     int    `json:"engagement"`
	StagnantStreak int    `json:"stagnant_streak"`
	ZeroStreak     int    `json:"zero_engagement_streak"`
	Goal           string `json:"goal,omitempty"`
	GoalProgress   int    `json:"goal_progress,omitempty"`
	GoalPinned     bool   `json:"goal_pinned,omitempty"`
	Action         string `json:"action,omitempty"`
	ActionProgress int    `json:"action_progress,omitempty"`
	ActionPaused   bool   `json:"action_paused,omitempty"`
	Records        int    `json:"records"`
	Ended          bool   `json:"ended"`
	EndReason      string `json:"end_reason,omitempty"`
}

func summarize(st orchestrator.ConversationState) summary {
	s := summary{
		Engagement:     st.Score.Engagement,
		StagnantStreak: st.Score.StagnantStreak,
		ZeroStreak:     st.Score.ZeroEngagementStreak,
		Records:        st.History.Len(),
		Ended:          st.Ended,
		EndReason:      string(st.EndReason),
	}
	if g := st.DisplayedGoal(); g != nil {
		s.Goal, s.GoalProgress, s.GoalPinned = g.Text, g.Progress, g.Pinned
	}
	if a := st.Action; a != nil {
		s.Action, s.ActionProgress, s.ActionPaused = a.Description, a.Progress, a.Paused
	}
	return s
}

func runDetailMode(store *state.Store, versionID string, jsonOut bool, out io.Writer) error {
	vp, err := store.GetVersionWithProvenance(versionID)
	if err != nil {
		return err
	}

	d := detailOutput{
		VersionID: vp.VersionID,
		ParentID:  vp.ParentID,
		SessionID: vp.SessionID,
		TurnID:    vp.TurnID,
		CreatedAt: vp.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Trigger:   vp.TriggerType,
		Decision:  vp.Decision,
		Reason:    vp.Reason,
		HasReplay: vp.ResponseJSON != "",
	}
	var st orchestrator.ConversationState
	if err := json.Unmarshal([]byte(vp.StateJSON), &st); err != nil {
		d.StateError = err.Error()
	} else {
		d.Summary = summarize(st)
	}

	if jsonOut {
		return printJSON(out, d)
	}

	fmt.Fprintf(out, "Version:    %s\n", d.VersionID)
	fmt.Fprintf(out, "Parent:     %s\n", d.ParentID)
	fmt.Fprintf(out, "Session:    %s\n", d.SessionID)
	fmt.Fprintf(out, "Created:    %s\n", d.CreatedAt)
	fmt.Fprintf(out, "Trigger:    %s\n", d.Trigger)
	fmt.Fprintf(out, "Decision:   %s\n", d.Decision)
	fmt.Fprintf(out, "Reason:     %s\n", d.Reason)
	if d.StateError != "" {
		fmt.Fprintf(out, "\nState could not be decoded: %s\n", d.StateError)
		return nil
	}

	s := d.Summary
	fmt.Fprintf(out, "\nConversation:\n")
	fmt.Fprintf(out, "  Engagement:  %d (stagnant %d, zero %d)\n", s.Engagement, s.StagnantStreak, s.ZeroStreak)
	if s.Goal != "" {
		fmt.Fprintf(out, "  Goal:        %s %d%% pinned=%v\n", s.Goal, s.GoalProgress, s.GoalPinned)
	}
	if s.Action != "" {
		fmt.Fprintf(out, "  Action:      %s %d%% paused=%v\n", s.Action, s.ActionProgress, s.ActionPaused)
	}
	fmt.Fprintf(out, "  Records:     %d\n", s.Records)
	fmt.Fprintf(out, "  Ended:       %v %s\n", s.Ended, s.EndReason)
	return nil
}

// #endregion detail-mode

// #region restore

func runRestore(store *state.Store, versionID string, out io.Writer) error {
	if err := store.Rollback(versionID); err != nil {
		return err
	}
	fmt.Fprintf(out, "active version is now %s\n", versionID)
	return nil
}

// #endregion restore

// #region output

func printJSON(out io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(out, string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
