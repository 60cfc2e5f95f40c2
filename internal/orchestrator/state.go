package orchestrator

import (
	"errors"
	"strings"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/engagement"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/ending"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/goal"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/history"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/scenario"
)

var ErrEmptyGoal = errors.New("goal text is empty")

// #region new-conversation

// NewConversation starts a conversation under sc. A configured goal starts pinned
// and displayed; backstory lines become the first records.
func NewConversation(sc scenario.Scenario, score engagement.Score, backstory ...string) ConversationState {
	st := ConversationState{
		History:  history.New(),
		Score:    score,
		Scenario: sc,
	}
	for _, line := range backstory {
		if strings.TrimSpace(line) == "" {
			continue
		}
		st.History = st.History.Append(history.NewRecord(history.RoleBackstory, line))
	}
	if sc.PinnedGoal != "" {
		st.Goal = &goal.State{Text: sc.PinnedGoal, Pinned: true}
		st.LastDisplayedGoal = sc.PinnedGoal
	}
	return st
}

// #endregion

// #region display

// DisplayedGoal returns the goal banner to show, which is always nil while an action
// is active.
func (s ConversationState) DisplayedGoal() *goal.State {
	if s.Action != nil {
		return nil
	}
	return s.Goal
}

// #endregion

// #region mutations

// WithPinnedGoal fixes text as the scenario's permanent goal.
func (s ConversationState) WithPinnedGoal(text string) (ConversationState, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return s, ErrEmptyGoal
	}
	if s.Ended {
		return s, ErrConversationEnded
	}
	next := s
	next.Scenario.PinnedGoal = text
	if s.Action == nil {
		next.Goal = goal.Pin(s.Goal, text)
		next.LastDisplayedGoal = text
	}
	return next, nil
}

// WithoutPinnedGoal clears the permanent goal. The displayed goal stays until the
// next turn reports what is emerging.
func (s ConversationState) WithoutPinnedGoal() (ConversationState, error) {
	if s.Ended {
		return s, ErrConversationEnded
	}
	next := s
	next.Scenario.PinnedGoal = ""
	next.Goal = goal.Unpin(s.Goal)
	return next, nil
}

// WithEnded marks the conversation ended. An already-ended state keeps its reason.
func (s ConversationState) WithEnded(reason ending.Reason) ConversationState {
	if s.Ended {
		return s
	}
	next := s
	next.Ended = true
	next.EndReason = reason
	return next
}

// WithImage applies a detached image patch to the record it targets.
func (s ConversationState) WithImage(recordID, image string) (ConversationState, error) {
	h, err := s.History.PatchImage(recordID, image)
	if err != nil {
		return s, err
	}
	next := s
	next.History = h
	return next, nil
}

// #endregion
