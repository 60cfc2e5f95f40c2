package orchestrator

// #region imports
import (
	"github.com/rs/zerolog/log"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/action"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/engagement"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/ending"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/goal"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/history"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/imagesync"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/metrics"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/scenario"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/turn"
)

// #endregion

// #region orchestrator-struct

// Orchestrator applies one turn response to the conversation state.
type Orchestrator struct {
	config Config
	images ImageDispatcher
	ending *ending.Evaluator
}

// #endregion

// #region constructor

// NewOrchestrator creates an orchestrator. images may be nil, in which case every
// turn carries the previous image forward.
func NewOrchestrator(config Config, images ImageDispatcher) *Orchestrator {
	return &Orchestrator{
		config: config,
		images: images,
		ending: ending.NewEvaluator(config.End),
	}
}

// Config returns the parameters the orchestrator runs with.
func (o *Orchestrator) Config() Config {
	return o.config
}

// #endregion

// #region process-turn

// ProcessTurn is the single mutation entry point for a turn. The steps run in a
// fixed order because each reads what the previous one wrote:
//
//  1. scenario deltas
//  2. goal change annotation
//  3. AI record append
//  4. feedback and engagement
//  5. image dispatch or carry-forward
//  6. action/goal priority
//  7. end-of-conversation
func (o *Orchestrator) ProcessTurn(st ConversationState, resp turn.Response, in TurnInput) (TurnResult, error) {
	if st.Ended {
		return TurnResult{State: st}, ErrConversationEnded
	}

	next := st
	next.PendingFeedback = nil
	result := TurnResult{UserActionSuggested: resp.UserActionSuggested}

	// 1. Scenario deltas
	next.Scenario = scenario.Apply(st.Scenario, resp.PersonaDelta, resp.EnvironmentDelta, resp.VisualDelta)

	// 2. Goal change annotation
	pinned := next.Scenario.PinnedGoal != ""
	result.Annotation = goal.Diff(st.LastDisplayedGoal, resp.EmergingGoal, pinned)

	// 3. AI record
	previousImage := st.History.LatestImage()
	dispatch := o.images != nil && resp.GenerateImage && next.Scenario.HasVisual()

	rec := history.NewRecord(history.RoleAI, resp.DialogueText())
	rec.Segments = append([]history.Segment(nil), resp.Segments...)
	rec.BodyLanguage = resp.BodyLanguage
	rec.GoalChange = result.Annotation
	if dispatch {
		rec.ImagePending = true
	} else {
		rec.Image = previousImage
	}
	next.History = next.History.Append(rec)
	result.AIRecordID = rec.ID

	// 4. Feedback and engagement
	if resp.Feedback != nil && in.UserTurnID != "" {
		h, err := next.History.AttachFeedback(in.UserTurnID, *resp.Feedback)
		if err != nil {
			log.Warn().Err(err).Str("user_turn_id", in.UserTurnID).Msg("[ORCH] feedback not correlated, skipping scoring")
		} else {
			next.History = h
			next.PendingFeedback = &PendingFeedback{UserTurnID: in.UserTurnID, Feedback: *resp.Feedback}
			scored := engagement.Update(next.Score, resp.Feedback.EngagementDelta, o.config.Engagement)
			next.Score = scored.Score
			result.EngagementApplied = scored.Applied
		}
	}

	// 5. Image dispatch
	if dispatch {
		job := imagesync.Job{
			RecordID:    rec.ID,
			Persona:     next.Scenario.Persona,
			Environment: next.Scenario.Environment,
			Visual:      *next.Scenario.Visual,
			Fallback:    previousImage,
		}
		if o.images.Dispatch(job) {
			result.ImageDispatched = true
		} else {
			metrics.RecordImageJob("rejected")
			if h, err := next.History.PatchImage(rec.ID, previousImage); err == nil {
				next.History = h
			}
		}
	}

	// 6. Action/goal priority
	acted := action.Resolve(st.Action, resp.ActiveAction, in.FastForward)
	next.Action = acted.Action
	result.ActionEvent = acted.Event

	var achievement *goal.Achievement
	result.GoalPhase = goal.PhaseNone
	if acted.Engaged {
		next.Goal = nil
	} else {
		resolved := goal.Resolve(goal.Input{
			PinnedGoal:    next.Scenario.PinnedGoal,
			InitialGoal:   next.Scenario.InitialGoal,
			Emerging:      resp.EmergingGoal,
			Progress:      resp.GoalProgress,
			Achieved:      resp.GoalAchieved,
			LastCompleted: st.LastCompletedGoal,
			Completed:     st.CompletedGoals,
			Annotation:    result.Annotation,
		})
		next.Goal = resolved.Goal
		next.Scenario.PinnedGoal = resolved.PinnedGoal
		next.LastCompletedGoal = resolved.LastCompleted
		next.CompletedGoals = resolved.Completed
		result.GoalPhase = resolved.Phase
		next.LastDisplayedGoal = ""
		if resolved.Goal != nil {
			next.LastDisplayedGoal = resolved.Goal.Text
		}
		achievement = resolved.Achievement
		result.GoalChanged = resolved.Changed
	}
	result.Achievement = achievement

	// 7. End of conversation
	result.End = o.ending.Run(ending.EndInput{
		ExplicitEnd:           resp.EndingConversation,
		PreconfiguredAchieved: achievement != nil && achievement.Preconfigured && achievement.WasPinned,
		Engagement:            next.Score.Engagement,
		ZeroEngagementStreak:  next.Score.ZeroEngagementStreak,
	})
	triggered := result.End.Triggered()
	for _, name := range triggered {
		metrics.RecordEndCheck(name)
	}
	if result.End.End {
		next.Ended = true
		next.EndReason = result.End.Reason
	}

	log.Debug().
		Str("record_id", rec.ID).
		Int("engagement", next.Score.Engagement).
		Int("applied", result.EngagementApplied).
		Str("action_event", string(result.ActionEvent)).
		Str("goal_phase", string(result.GoalPhase)).
		Strs("end_checks", triggered).
		Bool("image_dispatched", result.ImageDispatched).
		Bool("ended", next.Ended).
		Msg("[ORCH] turn processed")

	result.State = next
	return result, nil
}

// #endregion
