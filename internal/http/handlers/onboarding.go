package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fitcoach-core/server/internal/agent/model"
	"github.com/fitcoach-core/server/internal/agent/orchestrator"
	"github.com/fitcoach-core/server/internal/completion"
	errx "github.com/fitcoach-core/server/internal/core/error"
	"github.com/fitcoach-core/server/internal/http/middleware"
	"github.com/fitcoach-core/server/internal/http/response"
	"github.com/fitcoach-core/server/internal/metrics"
	"github.com/fitcoach-core/server/internal/onboarding"
)

type OnboardingHandler struct {
	store      onboarding.Store
	orch       *orchestrator.Orchestrator
	completion *completion.Controller
	metrics    *metrics.Metrics
}

func NewOnboardingHandler(store onboarding.Store, orch *orchestrator.Orchestrator, ctrl *completion.Controller, m *metrics.Metrics) *OnboardingHandler {
	return &OnboardingHandler{store: store, orch: orch, completion: ctrl, metrics: m}
}

// stateView is the raw onboarding row as clients see it.
type stateView struct {
	UserID              string                   `json:"user_id"`
	CurrentState        int                      `json:"current_state"`
	IsComplete          bool                     `json:"is_complete"`
	CurrentAgent        string                   `json:"current_agent"`
	CompletedStates     []int                    `json:"completed_states"`
	AgentContext        map[string]model.Section `json:"agent_context"`
	ConversationHistory []model.Message          `json:"conversation_history"`
	AgentHistory        []model.AgentVisit       `json:"agent_history"`
	CreatedAt           time.Time                `json:"created_at"`
	UpdatedAt           time.Time                `json:"updated_at"`
}

func newStateView(row *onboarding.OnboardingState) stateView {
	history := row.History()
	for i := range history {
		history[i].Timestamp = history[i].Timestamp.UTC()
	}
	visits := row.Visits()
	for i := range visits {
		visits[i].EnteredAt = visits[i].EnteredAt.UTC()
		if visits[i].ExitedAt != nil {
			at := visits[i].ExitedAt.UTC()
			visits[i].ExitedAt = &at
		}
	}
	return stateView{
		UserID:              row.UserID,
		CurrentState:        row.CurrentState,
		IsComplete:          row.IsComplete,
		CurrentAgent:        row.CurrentAgent,
		CompletedStates:     row.CompletedStates(),
		AgentContext:        row.Sections(),
		ConversationHistory: history,
		AgentHistory:        visits,
		CreatedAt:           row.CreatedAt.UTC(),
		UpdatedAt:           row.UpdatedAt.UTC(),
	}
}

// POST /onboarding/start
func (h *OnboardingHandler) Start(c *gin.Context) {
	row, created, err := h.store.Start(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	if created {
		response.RespondCreated(c, newStateView(row))
		return
	}
	response.RespondOK(c, newStateView(row))
}

// GET /onboarding/progress
func (h *OnboardingHandler) Progress(c *gin.Context) {
	p, err := h.store.Progress(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, p)
}

// GET /onboarding/state
func (h *OnboardingHandler) State(c *gin.Context) {
	row, err := h.store.Load(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, newStateView(row))
}

type stepRequest struct {
	Step int            `json:"step"`
	Data map[string]any `json:"data"`
}

// POST /onboarding/step
func (h *OnboardingHandler) Step(c *gin.Context) {
	var req stepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, errx.InvalidInput("body", "request body must be a JSON object with step and data"))
		return
	}
	res, err := onboarding.ApplyStep(c.Request.Context(), h.store, middleware.UserID(c), req.Step, req.Data)
	h.metrics.ObserveStepSave(stepLabel(req.Step), err)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, res)
}

func stepLabel(step int) string {
	if _, ok := onboarding.State(step); !ok {
		return "invalid"
	}
	return onboarding.MustState(step).Key
}

// POST /onboarding/chat
func (h *OnboardingHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, errx.InvalidInput("body", "request body must be a JSON object with a message"))
		return
	}
	resp, err := h.orch.Dispatch(c.Request.Context(), orchestrator.Request{
		UserID:         middleware.UserID(c),
		Query:          req.Message,
		AgentOverride:  req.AgentType,
		VoiceMode:      req.VoiceMode,
		OnboardingMode: true,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, newTurnView(resp))
}

// GET /onboarding/current-agent
func (h *OnboardingHandler) CurrentAgent(c *gin.Context) {
	info, err := h.orch.CurrentAgent(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, info)
}

// POST /onboarding/complete
func (h *OnboardingHandler) Complete(c *gin.Context) {
	res, err := h.completion.Complete(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondCreated(c, res)
}
