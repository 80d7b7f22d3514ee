package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fitcoach-core/server/internal/agent/model"
	"github.com/fitcoach-core/server/internal/agent/orchestrator"
	errx "github.com/fitcoach-core/server/internal/core/error"
	"github.com/fitcoach-core/server/internal/http/middleware"
	"github.com/fitcoach-core/server/internal/http/response"
	"github.com/fitcoach-core/server/internal/onboarding"
	logx "github.com/fitcoach-core/server/pkg/logger"
)

const currentStateHeader = "X-Current-State"

type chatRequest struct {
	Message   string `json:"message"`
	AgentType string `json:"agent_type"`
	VoiceMode bool   `json:"voice_mode"`
	// CurrentState is the state the client shows; /chat/onboarding rejects
	// the turn when it is stale.
	CurrentState *int `json:"current_state"`
	// OnboardingMode selects the onboarding flow on /chat/stream; it
	// defaults to true.
	OnboardingMode *bool `json:"onboarding_mode"`
}

// turnView is the body of /onboarding/chat.
type turnView struct {
	Message      string               `json:"message"`
	AgentType    model.AgentKind      `json:"agent_type"`
	CurrentStep  int                  `json:"current_step"`
	StepComplete bool                 `json:"step_complete"`
	NextAction   string               `json:"next_action"`
	ToolsUsed    []string             `json:"tools_used"`
	IsComplete   bool                 `json:"is_complete"`
	Progress     *onboarding.Progress `json:"progress,omitempty"`
}

func newTurnView(r *orchestrator.Response) turnView {
	return turnView{
		Message:      r.Message,
		AgentType:    r.AgentType,
		CurrentStep:  r.CurrentState,
		StepComplete: r.StepComplete,
		NextAction:   r.NextAction,
		ToolsUsed:    r.ToolsUsed,
		IsComplete:   r.IsComplete,
		Progress:     r.Progress,
	}
}

// stateTurnView adds the pre/post state comparison the chat frontend uses
// to drive its progress indicator.
type stateTurnView struct {
	turnView
	InitialState int            `json:"initial_state"`
	CurrentState int            `json:"current_state"`
	StateUpdated bool           `json:"state_updated"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func newStateTurnView(r *orchestrator.Response) stateTurnView {
	return stateTurnView{
		turnView:     newTurnView(r),
		InitialState: r.InitialState,
		CurrentState: r.CurrentState,
		StateUpdated: r.StateUpdated,
		Metadata:     r.Metadata,
	}
}

type ChatHandler struct {
	orch *orchestrator.Orchestrator
}

func NewChatHandler(orch *orchestrator.Orchestrator) *ChatHandler {
	return &ChatHandler{orch: orch}
}

func bindChat(c *gin.Context) (chatRequest, bool) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, errx.InvalidInput("body", "request body must be a JSON object with a message"))
		return req, false
	}
	return req, true
}

// expectedState reads the client's state from the body, falling back to
// the X-Current-State header.
func expectedState(c *gin.Context, req chatRequest) (*int, error) {
	if req.CurrentState != nil {
		return req.CurrentState, nil
	}
	v := strings.TrimSpace(c.GetHeader(currentStateHeader))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, errx.InvalidInputf("current_state", "%s must be a state number", currentStateHeader)
	}
	return &n, nil
}

// POST /chat/onboarding
func (h *ChatHandler) Onboarding(c *gin.Context) {
	req, ok := bindChat(c)
	if !ok {
		return
	}
	expected, err := expectedState(c, req)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	resp, err := h.orch.Dispatch(c.Request.Context(), orchestrator.Request{
		UserID:         middleware.UserID(c),
		Query:          req.Message,
		AgentOverride:  req.AgentType,
		VoiceMode:      req.VoiceMode,
		OnboardingMode: true,
		ExpectedState:  expected,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, newStateTurnView(resp))
}

// POST /chat
func (h *ChatHandler) Chat(c *gin.Context) {
	req, ok := bindChat(c)
	if !ok {
		return
	}
	resp, err := h.orch.Dispatch(c.Request.Context(), orchestrator.Request{
		UserID:        middleware.UserID(c),
		Query:         req.Message,
		AgentOverride: req.AgentType,
		VoiceMode:     req.VoiceMode,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, newStateTurnView(resp))
}

// POST /chat/stream
func (h *ChatHandler) Stream(c *gin.Context) {
	req, ok := bindChat(c)
	if !ok {
		return
	}
	expected, err := expectedState(c, req)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	onboardingMode := true
	if req.OnboardingMode != nil {
		onboardingMode = *req.OnboardingMode
	}
	userID := middleware.UserID(c)
	ts, err := h.orch.DispatchStream(c.Request.Context(), orchestrator.Request{
		UserID:         userID,
		Query:          req.Message,
		AgentOverride:  req.AgentType,
		VoiceMode:      req.VoiceMode,
		OnboardingMode: onboardingMode,
		ExpectedState:  expected,
	})
	if err != nil {
		response.RespondError(c, err)
		return
	}
	defer ts.Close()

	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	for chunk := range ts.Chunks() {
		writeEvent(c, gin.H{"chunk": chunk})
	}
	resp, err := ts.Result()
	if err != nil {
		_ = c.Error(err)
		writeEvent(c, gin.H{"error": errx.MessageOf(err), "error_code": errx.CodeOf(err)})
		return
	}
	writeEvent(c, gin.H{
		"done":          true,
		"agent_type":    resp.AgentType,
		"current_state": resp.CurrentState,
		"state_updated": resp.StateUpdated,
		"next_action":   resp.NextAction,
	})
}

// writeEvent sends one SSE data frame.
func writeEvent(c *gin.Context, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		logx.Error().Err(err).Msg("sse payload not encodable")
		return
	}
	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", b); err != nil {
		return
	}
	c.Writer.Flush()
}

// POST /chat/voice/warmup
func (h *ChatHandler) WarmUp(c *gin.Context) {
	kind, err := h.orch.WarmUp(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"agent_type": kind})
}

// DELETE /chat/voice/session
func (h *ChatHandler) EndVoiceSession(c *gin.Context) {
	h.orch.EndVoiceSession(middleware.UserID(c))
	c.Status(http.StatusNoContent)
}
