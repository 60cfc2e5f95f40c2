package session

// #region imports
import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/ending"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/history"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/logging"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/metrics"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/orchestrator"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/scenario"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/state"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/turn"
)

// #endregion

const tracerName = "persona-controller/session"

// #region session-struct

// Session owns one conversation. Operations are serialized by a mutex; only one
// turn service call may be outstanding at a time. Image patches from the worker
// pool are applied under the same mutex.
type Session struct {
	id      string
	svc     TurnService
	orch    *orchestrator.Orchestrator
	store   *state.Store
	timeout time.Duration
	tracer  trace.Tracer

	mu      sync.Mutex
	state   orchestrator.ConversationState
	pending bool

	endOnce sync.Once
	done    chan struct{}
}

// pendingTurn is a submission prepared under the lock and completed after the
// turn service returns.
type pendingTurn struct {
	trigger    history.TriggerKind
	retry      bool
	dialogue   string
	gesture    string
	userTurnID string
	request    turn.Request
}

// #endregion

// #region constructor

// New starts a conversation under sc. The scenario's configured goal starts pinned.
func New(sc scenario.Scenario, svc TurnService, orch *orchestrator.Orchestrator, opts Options) *Session {
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	s := &Session{
		id:      id,
		svc:     svc,
		orch:    orch,
		store:   opts.Store,
		timeout: opts.Timeout,
		tracer:  otel.Tracer(tracerName),
		done:    make(chan struct{}),
	}

	if opts.Initial != nil {
		s.state = *opts.Initial
	} else {
		backstory := opts.Backstory
		if len(backstory) == 0 {
			backstory = sc.Backstory
		}
		s.state = orchestrator.NewConversation(
			scenario.Prepare(sc),
			orch.Config().Engagement.Start(),
			backstory...,
		)
	}
	if s.state.Ended {
		s.endOnce.Do(func() { close(s.done) })
	}

	s.mu.Lock()
	s.commitLocked("start", "", "", logging.DecisionCommit, "conversation started")
	s.mu.Unlock()

	metrics.RecordEngagement(s.state.Score.Engagement)
	log.Info().Str("session_id", id).Int("engagement", s.state.Score.Engagement).Msg("[SESSION] started")
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current conversation state.
func (s *Session) State() orchestrator.ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending reports whether a turn service call is outstanding.
func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Done is closed when the conversation ends.
func (s *Session) Done() <-chan struct{} { return s.done }

// #endregion

// #region submissions

// SubmitUserTurn sends dialogue and/or a gesture. Either may be empty, not both.
func (s *Session) SubmitUserTurn(ctx context.Context, dialogue, gesture string) (orchestrator.TurnResult, error) {
	dialogue = strings.TrimSpace(dialogue)
	gesture = strings.TrimSpace(gesture)
	if dialogue == "" && gesture == "" {
		return orchestrator.TurnResult{}, ErrEmptyTurn
	}
	return s.submit(ctx, history.TriggerUserTurn, dialogue, gesture)
}

// SubmitSilentContinue lets the persona carry on without user input.
func (s *Session) SubmitSilentContinue(ctx context.Context) (orchestrator.TurnResult, error) {
	return s.submit(ctx, history.TriggerSilentContinue, "", "")
}

// SubmitFastForward skips ahead, completing any active action.
func (s *Session) SubmitFastForward(ctx context.Context) (orchestrator.TurnResult, error) {
	return s.submit(ctx, history.TriggerFastForward, "", "")
}

// RetryLastFailedTurn removes the trailing failed submission and sends it again.
func (s *Session) RetryLastFailedTurn(ctx context.Context) (orchestrator.TurnResult, error) {
	s.mu.Lock()
	if err := s.guardLocked(); err != nil {
		s.mu.Unlock()
		return orchestrator.TurnResult{}, err
	}
	h, marker, ok := s.state.History.RollbackFailedTurn()
	if !ok {
		s.mu.Unlock()
		return orchestrator.TurnResult{}, ErrNothingToRetry
	}
	s.state.History = h
	f := marker.Failure
	p := s.prepareLocked(f.Trigger, f.Dialogue, f.Gesture)
	p.retry = true
	s.mu.Unlock()

	log.Info().Str("marker_id", marker.ID).Str("trigger", string(f.Trigger)).Msg("[SESSION] retrying failed turn")
	return s.run(ctx, p)
}

func (s *Session) submit(ctx context.Context, trigger history.TriggerKind, dialogue, gesture string) (orchestrator.TurnResult, error) {
	s.mu.Lock()
	if err := s.guardLocked(); err != nil {
		s.mu.Unlock()
		return orchestrator.TurnResult{}, err
	}
	p := s.prepareLocked(trigger, dialogue, gesture)
	s.mu.Unlock()

	return s.run(ctx, p)
}

func (s *Session) guardLocked() error {
	if s.state.Ended {
		return ErrConversationEnded
	}
	if s.pending {
		return ErrTurnInFlight
	}
	return nil
}

// prepareLocked appends the user records and builds the request. The dialogue
// record comes first so feedback correlates to it; a gesture-only turn scores the
// gesture record.
func (s *Session) prepareLocked(trigger history.TriggerKind, dialogue, gesture string) pendingTurn {
	p := pendingTurn{trigger: trigger, dialogue: dialogue, gesture: gesture}

	if dialogue != "" {
		rec := history.NewRecord(history.RoleUser, dialogue)
		s.state.History = s.state.History.Append(rec)
		p.userTurnID = rec.ID
	}
	if gesture != "" {
		rec := history.NewRecord(history.RoleUserAction, gesture)
		s.state.History = s.state.History.Append(rec)
		if p.userTurnID == "" {
			p.userTurnID = rec.ID
		}
	}

	input := dialogue
	switch {
	case trigger == history.TriggerSilentContinue:
		input = turn.SilentContinueToken
	case trigger == history.TriggerFastForward:
		input = turn.FastForwardToken
	case input == "":
		input = "*" + gesture + "*"
	}

	p.request = buildRequest(s.state, input, trigger == history.TriggerFastForward)
	s.pending = true
	return p
}

func buildRequest(st orchestrator.ConversationState, input string, fastForward bool) turn.Request {
	records := st.History.Records()
	visible := records[:0]
	for _, r := range records {
		if !r.IsFailureMarker() {
			visible = append(visible, r)
		}
	}
	req := turn.Request{
		History:           visible,
		UserInput:         input,
		CurrentEngagement: st.Score.Engagement,
		Scenario:          st.Scenario,
		LastKnownPose:     st.Scenario.LastKnownPose(),
		FastForward:       fastForward,
	}
	if st.Action != nil {
		a := *st.Action
		req.ActiveAction = &a
		req.ActionPaused = a.Paused
	}
	return req
}

// #endregion

// #region run

// run calls the turn service outside the lock and applies the result.
func (s *Session) run(ctx context.Context, p pendingTurn) (orchestrator.TurnResult, error) {
	start := time.Now()
	resp, err := s.generate(ctx, p)
	elapsed := time.Since(start)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = false

	label := string(p.trigger)
	if p.retry {
		label = "retry"
	}
	if err != nil {
		metrics.RecordTurn(label, "failed", elapsed)
		return orchestrator.TurnResult{State: s.state}, s.failLocked(p, err)
	}

	// EndConversation may have run while the call was outstanding.
	if s.state.Ended {
		metrics.RecordTurn(label, "discarded", elapsed)
		return orchestrator.TurnResult{State: s.state}, ErrConversationEnded
	}

	res, err := s.orch.ProcessTurn(s.state, resp, orchestrator.TurnInput{
		UserTurnID:  p.userTurnID,
		FastForward: p.trigger == history.TriggerFastForward,
	})
	if err != nil {
		return orchestrator.TurnResult{State: s.state}, err
	}
	s.state = res.State
	metrics.RecordTurn(label, "ok", elapsed)
	metrics.RecordEngagement(s.state.Score.Engagement)

	reason := "turn processed"
	if p.retry {
		reason = "retry processed"
	}
	respJSON, err := json.Marshal(resp)
	if err != nil {
		log.Warn().Err(err).Str("session_id", s.id).Msg("[STORE] marshal turn response")
	}
	s.commitLocked(string(p.trigger), p.userTurnID, string(respJSON), logging.DecisionCommit, reason)

	log.Info().
		Str("session_id", s.id).
		Str("trigger", string(p.trigger)).
		Int("engagement", s.state.Score.Engagement).
		Int("applied", res.EngagementApplied).
		Dur("elapsed", elapsed).
		Msg("[SESSION] turn complete")

	if res.End.End {
		s.markEndedLocked(res.End.Reason)
	}
	return res, nil
}

func (s *Session) generate(ctx context.Context, p pendingTurn) (turn.Response, error) {
	ctx, span := s.tracer.Start(ctx, "turn.generate", trace.WithAttributes(
		attribute.String("session.id", s.id),
		attribute.String("turn.trigger", string(p.trigger)),
		attribute.Int("turn.engagement", p.request.CurrentEngagement),
		attribute.Bool("turn.retry", p.retry),
	))
	defer span.End()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.svc.Generate(ctx, p.request)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return turn.Response{}, err
	}
	return resp, nil
}

// failLocked records the failed submission as a marker so it can be retried.
func (s *Session) failLocked(p pendingTurn, cause error) error {
	marker := history.NewRecord(history.RoleSystem, "The conversation hit a snag. Retry to send your turn again.")
	marker.Failure = &history.Failure{
		Trigger:  p.trigger,
		Dialogue: p.dialogue,
		Gesture:  p.gesture,
		Error:    cause.Error(),
	}
	s.state.History = s.state.History.Append(marker)
	s.commitLocked(string(p.trigger), p.userTurnID, "", logging.DecisionFailed, cause.Error())

	log.Warn().Err(cause).Str("session_id", s.id).Str("marker_id", marker.ID).Msg("[SESSION] turn service failed")
	return &ServiceError{Trigger: p.trigger, MarkerID: marker.ID, Err: cause}
}

// #endregion

// #region goal-pin

// PinGoal fixes text as the permanent goal. Empty text pins the displayed goal.
func (s *Session) PinGoal(text string) (orchestrator.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text = strings.TrimSpace(text)
	if text == "" {
		if g := s.state.DisplayedGoal(); g != nil {
			text = g.Text
		}
	}
	if text == "" {
		return s.state, ErrNoGoalText
	}
	next, err := s.state.WithPinnedGoal(text)
	if err != nil {
		return s.state, err
	}
	s.state = next
	s.commitLocked("pin", "", "", logging.DecisionCommit, text)
	log.Info().Str("session_id", s.id).Str("goal", text).Msg("[SESSION] goal pinned")
	return s.state, nil
}

// UnpinGoal clears the permanent goal. The display follows the next turn.
func (s *Session) UnpinGoal() (orchestrator.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Scenario.PinnedGoal == "" {
		return s.state, nil
	}
	next, err := s.state.WithoutPinnedGoal()
	if err != nil {
		return s.state, err
	}
	s.state = next
	s.commitLocked("unpin", "", "", logging.DecisionCommit, "")
	log.Info().Str("session_id", s.id).Msg("[SESSION] goal unpinned")
	return s.state, nil
}

// #endregion

// #region end

// EndConversation ends the conversation on request. Ending twice is a no-op that
// returns the final state.
func (s *Session) EndConversation(userInitiated bool) orchestrator.ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Ended {
		return s.state
	}
	reason := ending.ReasonSystemEnded
	if userInitiated {
		reason = ending.ReasonUserEnded
	}
	s.state = s.state.WithEnded(reason)
	s.commitLocked("end", "", "", logging.DecisionCommit, string(reason))
	s.markEndedLocked(reason)
	return s.state
}

func (s *Session) markEndedLocked(reason ending.Reason) {
	metrics.RecordEnded(string(reason))
	log.Info().Str("session_id", s.id).Str("reason", string(reason)).Msg("[SESSION] conversation ended")
	s.endOnce.Do(func() { close(s.done) })
}

// #endregion

// #region image-patch

// PatchImage applies a detached image result to the record it targets and saves a
// snapshot so a resumed session sees it. It keeps working after the conversation
// has ended.
func (s *Session) PatchImage(recordID, image string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.state.WithImage(recordID, image)
	if err != nil {
		return err
	}
	s.state = next
	s.commitLocked("image", "", "", logging.DecisionCommit, recordID)
	log.Debug().Str("session_id", s.id).Str("record_id", recordID).Msg("[SESSION] image patched")
	return nil
}

// #endregion

// #region snapshots

// commitLocked writes a snapshot and its provenance row when a store is configured.
// Storage failures are logged and never fail the operation.
func (s *Session) commitLocked(trigger, turnID, responseJSON, decision, reason string) {
	if s.store == nil {
		return
	}
	data, err := json.Marshal(s.state)
	if err != nil {
		log.Error().Err(err).Msg("[STORE] marshal snapshot")
		return
	}
	rec, err := s.store.CommitSnapshot(state.SnapshotRecord{
		VersionID:  uuid.New().String(),
		SessionID:  s.id,
		TurnID:     turnID,
		StateJSON:  string(data),
		Engagement: s.state.Score.Engagement,
		Ended:      s.state.Ended,
	})
	if err != nil {
		log.Error().Err(err).Str("session_id", s.id).Msg("[STORE] commit snapshot")
		return
	}
	err = logging.LogDecision(s.store.DB(), logging.ProvenanceEntry{
		VersionID:    rec.VersionID,
		SessionID:    s.id,
		TurnID:       turnID,
		TriggerType:  trigger,
		ResponseJSON: responseJSON,
		Decision:     decision,
		Reason:       reason,
	})
	if err != nil {
		log.Error().Err(err).Str("version_id", rec.VersionID).Msg("[STORE] log provenance")
	}
}

// #endregion
