package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/danielpatrickdp/persona-sim/go-controller/internal/action"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/goal"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/history"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/orchestrator"
	"github.com/danielpatrickdp/persona-sim/go-controller/internal/session"
)

// #region requests

// TurnRequest is the body of POST /v1/turns.
type TurnRequest struct {
	Dialogue string `json:"dialogue"`
	Gesture  string `json:"gesture"`
}

// PinRequest is the optional body of PUT /v1/goal/pin. Empty text pins the displayed goal.
type PinRequest struct {
	Text string `json:"text"`
}

// EndRequest is the optional body of POST /v1/end.
type EndRequest struct {
	UserInitiated *bool `json:"user_initiated"`
}

// #endregion requests

// #region responses

// TurnEvents are the transient indicators of one processed turn.
type TurnEvents struct {
	AIRecordID          string              `json:"ai_record_id"`
	Annotation          *history.GoalChange `json:"annotation,omitempty"`
	GoalChanged         bool                `json:"goal_changed"`
	Achievement         *goal.Achievement   `json:"achievement,omitempty"`
	GoalPhase           goal.Phase          `json:"goal_phase"`
	ActionEvent         action.Event        `json:"action_event"`
	EngagementApplied   int                 `json:"engagement_applied"`
	ImageDispatched     bool                `json:"image_dispatched"`
	UserActionSuggested bool                `json:"user_action_suggested"`
}

// TurnResponse is returned by every turn submission.
type TurnResponse struct {
	State  orchestrator.ConversationState `json:"state"`
	Events TurnEvents                     `json:"events"`
}

// StateResponse is returned by GET /v1/state and the goal/end operations.
type StateResponse struct {
	SessionID     string                         `json:"session_id"`
	Pending       bool                           `json:"pending"`
	DisplayedGoal *goal.State                    `json:"displayed_goal,omitempty"`
	State         orchestrator.ConversationState `json:"state"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	MarkerID  string `json:"marker_id,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// #endregion responses

// #region handlers

type handlers struct {
	ctrl Controller
}

func (h *handlers) getState(c *gin.Context) {
	c.JSON(http.StatusOK, h.stateResponse(h.ctrl.State()))
}

func (h *handlers) submitTurn(c *gin.Context) {
	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	res, err := h.ctrl.SubmitUserTurn(c.Request.Context(), req.Dialogue, req.Gesture)
	h.writeTurn(c, res, err)
}

func (h *handlers) silentContinue(c *gin.Context) {
	res, err := h.ctrl.SubmitSilentContinue(c.Request.Context())
	h.writeTurn(c, res, err)
}

func (h *handlers) fastForward(c *gin.Context) {
	res, err := h.ctrl.SubmitFastForward(c.Request.Context())
	h.writeTurn(c, res, err)
}

func (h *handlers) retry(c *gin.Context) {
	res, err := h.ctrl.RetryLastFailedTurn(c.Request.Context())
	h.writeTurn(c, res, err)
}

func (h *handlers) pinGoal(c *gin.Context) {
	var req PinRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
			return
		}
	}
	st, err := h.ctrl.PinGoal(req.Text)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.stateResponse(st))
}

func (h *handlers) unpinGoal(c *gin.Context) {
	st, err := h.ctrl.UnpinGoal()
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.stateResponse(st))
}

func (h *handlers) end(c *gin.Context) {
	req := EndRequest{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
			return
		}
	}
	userInitiated := req.UserInitiated == nil || *req.UserInitiated
	c.JSON(http.StatusOK, h.stateResponse(h.ctrl.EndConversation(userInitiated)))
}

// #endregion handlers

// #region helpers

func (h *handlers) writeTurn(c *gin.Context, res orchestrator.TurnResult, err error) {
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, TurnResponse{
		State: res.State,
		Events: TurnEvents{
			AIRecordID:          res.AIRecordID,
			Annotation:          res.Annotation,
			GoalChanged:         res.GoalChanged,
			Achievement:         res.Achievement,
			GoalPhase:           res.GoalPhase,
			ActionEvent:         res.ActionEvent,
			EngagementApplied:   res.EngagementApplied,
			ImageDispatched:     res.ImageDispatched,
			UserActionSuggested: res.UserActionSuggested,
		},
	})
}

func (h *handlers) stateResponse(st orchestrator.ConversationState) StateResponse {
	return StateResponse{
		SessionID:     h.ctrl.ID(),
		Pending:       h.ctrl.Pending(),
		DisplayedGoal: st.DisplayedGoal(),
		State:         st,
	}
}

// handleError maps control-surface errors to HTTP statuses.
func handleError(c *gin.Context, err error) {
	var svcErr *session.ServiceError
	switch {
	case errors.As(err, &svcErr):
		c.AbortWithStatusJSON(http.StatusBadGateway, ErrorResponse{
			Error:     err.Error(),
			MarkerID:  svcErr.MarkerID,
			Retryable: svcErr.Retryable(),
		})
	case errors.Is(err, session.ErrTurnInFlight),
		errors.Is(err, session.ErrConversationEnded),
		errors.Is(err, session.ErrNothingToRetry):
		c.AbortWithStatusJSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, session.ErrEmptyTurn),
		errors.Is(err, session.ErrNoGoalText),
		errors.Is(err, orchestrator.ErrEmptyGoal):
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

// #endregion helpers
