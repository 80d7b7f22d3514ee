// Package orchestrator routes a user turn to the agent that owns the user's
// onboarding state, enforces the onboarding access rules and reports how the
// turn moved the user's progress.
package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fitcoach-core/server/internal/agent/agents"
	"github.com/fitcoach-core/server/internal/agent/extractor"
	"github.com/fitcoach-core/server/internal/agent/model"
	"github.com/fitcoach-core/server/internal/agent/repo"
	errx "github.com/fitcoach-core/server/internal/core/error"
	"github.com/fitcoach-core/server/internal/metrics"
	"github.com/fitcoach-core/server/internal/onboarding"
	logx "github.com/fitcoach-core/server/pkg/logger"
)

// Next actions reported to clients after a turn.
const (
	ActionContinue = "continue_conversation"
	ActionProceed  = "proceed_to_next_state"
	ActionComplete = "complete_onboarding"
)

const (
	modeText   = "text"
	modeVoice  = "voice"
	modeStream = "stream"
)

type Extractor interface {
	Extract(ctx context.Context, req extractor.Request) (*extractor.Result, error)
}

type AgentFactory interface {
	New(ctx context.Context, kind model.AgentKind, actx *model.AgentContext) (agents.Agent, error)
}

// TurnLocker admits one turn per user at a time. The release func must be
// called once the turn has finished.
type TurnLocker interface {
	Acquire(ctx context.Context, userID string, ttl time.Duration) (func(context.Context) error, error)
}

// Config wires the orchestrator. Extractor, Locker, Metrics and Now are
// optional.
type Config struct {
	Store        onboarding.Store
	Agents       AgentFactory
	Extractor    Extractor
	Locker       TurnLocker
	Metrics      *metrics.Metrics
	Conversation model.ConversationConfig
	Now          func() time.Time
}

// Request is one user turn.
type Request struct {
	UserID string
	Query  string
	// AgentOverride names an agent explicitly; empty lets the current state decide.
	AgentOverride  string
	VoiceMode      bool
	OnboardingMode bool
	// ExpectedState is the state the client believes the user is in.
	ExpectedState *int
}

type Response struct {
	Message      string               `json:"message"`
	AgentType    model.AgentKind      `json:"agent_type"`
	ToolsUsed    []string             `json:"tools_used"`
	Metadata     map[string]any       `json:"metadata,omitempty"`
	InitialState int                  `json:"initial_state"`
	CurrentState int                  `json:"current_state"`
	StateUpdated bool                 `json:"state_updated"`
	StepComplete bool                 `json:"step_complete"`
	IsComplete   bool                 `json:"is_complete"`
	NextAction   string               `json:"next_action"`
	Progress     *onboarding.Progress `json:"progress,omitempty"`
}

// AgentInfo describes the agent that would answer the user's next turn.
type AgentInfo struct {
	AgentType        model.AgentKind       `json:"agent_type"`
	CurrentState     int                   `json:"current_state"`
	CurrentStateInfo *onboarding.StateInfo `json:"current_state_info,omitempty"`
	OwnedStates      []int                 `json:"owned_states"`
	IsComplete       bool                  `json:"is_complete"`
}

type Orchestrator struct {
	store     onboarding.Store
	agents    AgentFactory
	extractor Extractor
	locker    TurnLocker
	metrics   *metrics.Metrics
	conv      model.ConversationConfig
	now       func() time.Time
	voice     *agentCache
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil || cfg.Agents == nil {
		return nil, fmt.Errorf("orchestrator needs a store and an agent factory")
	}
	if cfg.Locker == nil {
		cfg.Locker = repo.NewMemoryTurnLocker()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Conversation.TurnLockTTL <= 0 {
		cfg.Conversation.TurnLockTTL = 90 * time.Second
	}
	if cfg.Conversation.StreamIdleTimeout <= 0 {
		cfg.Conversation.StreamIdleTimeout = 60 * time.Second
	}
	if cfg.Conversation.VoiceAgentTTL <= 0 {
		cfg.Conversation.VoiceAgentTTL = 30 * time.Minute
	}
	return &Orchestrator{
		store:     cfg.Store,
		agents:    cfg.Agents,
		extractor: cfg.Extractor,
		locker:    cfg.Locker,
		metrics:   cfg.Metrics,
		conv:      cfg.Conversation,
		now:       cfg.Now,
		voice:     newAgentCache(cfg.Conversation.VoiceAgentTTL, cfg.Now),
	}, nil
}

// turn is the prepared state of one dispatch.
type turn struct {
	req     Request
	kind    model.AgentKind
	agent   agents.Agent
	initial int
	started time.Time
	unlock  func(context.Context) error
}

func (t *turn) release(ctx context.Context) {
	if t.unlock == nil {
		return
	}
	if err := t.unlock(context.WithoutCancel(ctx)); err != nil {
		logx.Warn().Err(err).Str("user_id", t.req.UserID).Msg("turn lock release failed")
	}
	t.unlock = nil
}

// Dispatch runs one complete turn and persists it.
func (o *Orchestrator) Dispatch(ctx context.Context, req Request) (*Response, error) {
	t, err := o.begin(ctx, req)
	if err != nil {
		return nil, err
	}
	defer t.release(ctx)

	mode := modeText
	var resp *model.AgentResponse
	if req.VoiceMode {
		mode = modeVoice
		var text string
		text, err = t.agent.ProcessVoice(ctx, req.Query)
		resp = &model.AgentResponse{Content: text, AgentType: t.kind, ToolsUsed: []string{}}
	} else {
		resp, err = t.agent.ProcessText(ctx, req.Query)
	}
	o.metrics.ObserveTurn(t.kind.String(), mode, t.started, err)
	if err != nil {
		logx.Warn().Err(err).Str("user_id", req.UserID).Str("agent", t.kind.String()).Msg("turn failed")
		return nil, err
	}
	return o.finish(ctx, t, resp)
}

// begin takes the user's turn lock, applies the access rules, runs the
// extractor pre-pass and builds the agent. On error the lock is released.
func (o *Orchestrator) begin(ctx context.Context, req Request) (_ *turn, err error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, errx.InvalidInput("message", "message must not be empty")
	}
	unlock, err := o.locker.Acquire(ctx, req.UserID, o.conv.TurnLockTTL)
	if err != nil {
		return nil, err
	}
	t := &turn{req: req, started: o.now(), unlock: unlock}
	defer func() {
		if err != nil {
			t.release(ctx)
		}
	}()

	row, err := o.store.Load(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	override, err := gate(row, req)
	if err != nil {
		return nil, err
	}
	if req.ExpectedState != nil && *req.ExpectedState != row.CurrentState {
		return nil, errx.StateMismatch(row.CurrentState, *req.ExpectedState)
	}
	t.initial = row.CurrentState

	t.kind = model.KindGeneral
	if override != "" {
		t.kind = override
	}
	if req.OnboardingMode {
		if row.CurrentState == 0 {
			if row, err = o.store.AdvanceTo(ctx, req.UserID, 1); err != nil {
				return nil, err
			}
		}
		row = o.prefill(ctx, row, req.Query)
		if override == "" {
			t.kind = onboarding.OwningAgent(row.CurrentState)
		}
		if row, err = o.store.RecordAgentVisit(ctx, req.UserID, row.CurrentState, t.kind); err != nil {
			return nil, err
		}
	}

	actx := row.Snapshot(o.now())
	if t.agent, err = o.agentFor(ctx, req.UserID, t.kind, actx, req.VoiceMode); err != nil {
		return nil, err
	}
	logx.Debug().
		Str("user_id", req.UserID).
		Str("agent", t.kind.String()).
		Int("state", row.CurrentState).
		Bool("voice", req.VoiceMode).
		Msg("turn dispatched")
	return t, nil
}

// gate applies the onboarding access rules. It returns the explicitly
// requested agent, or "" when the caller should pick one.
func gate(row *onboarding.OnboardingState, req Request) (model.AgentKind, error) {
	var override model.AgentKind
	if req.AgentOverride != "" {
		k, ok := model.ParseAgentKind(req.AgentOverride)
		if !ok {
			return "", errx.InvalidInputf("agent_type", "unknown agent type %q", req.AgentOverride)
		}
		override = k
	}
	if req.OnboardingMode {
		if row.IsComplete {
			return "", errx.AlreadyCompleted().WithStatus(http.StatusForbidden)
		}
		if override != "" && !override.IsSpecialist() {
			return "", errx.AgentNotAvailable(override.String(), "onboarding")
		}
		return override, nil
	}
	if !row.IsComplete {
		return "", errx.OnboardingRequired()
	}
	if override.IsSpecialist() {
		return "", errx.AgentNotAvailable(override.String(), "post-onboarding")
	}
	return override, nil
}

// prefill saves whatever the extractor can read from the utterance into the
// current state's section. It is best effort: failures leave row as it was.
func (o *Orchestrator) prefill(ctx context.Context, row *onboarding.OnboardingState, query string) *onboarding.OnboardingState {
	if o.extractor == nil {
		return row
	}
	meta, ok := onboarding.State(row.CurrentState)
	if !ok {
		return row
	}
	fields := meta.ExtractableFields()
	if len(fields) == 0 {
		return row
	}
	known := row.Section(meta.Key)
	res, err := o.extractor.Extract(ctx, extractor.Request{
		History: model.TrimTail(row.History(), o.conv.TailTurns),
		Query:   query,
		Fields:  fields,
		Known:   known,
	})
	if err != nil {
		logx.Warn().Err(err).Str("user_id", row.UserID).Int("state", meta.Number).Msg("extractor pre-pass skipped")
		return row
	}
	section := onboarding.CompletingPartial(meta.Number, known, onboarding.NormalizePartial(meta.Number, res.Values()))
	if len(section) == 0 {
		return row
	}
	if _, err := o.store.SaveSection(ctx, row.UserID, meta.Key, section); err != nil {
		logx.Warn().Err(err).Str("user_id", row.UserID).Str("section", meta.Key).Msg("extracted fields not saved")
		return row
	}
	updated, err := onboarding.SyncProgress(ctx, o.store, row.UserID)
	if err != nil {
		logx.Warn().Err(err).Str("user_id", row.UserID).Msg("progress sync after extraction failed")
		return row
	}
	logx.Debug().Str("user_id", row.UserID).Str("section", meta.Key).Int("fields", len(section)).Msg("extracted fields saved")
	return updated
}

func (o *Orchestrator) agentFor(ctx context.Context, userID string, kind model.AgentKind, actx *model.AgentContext, voice bool) (agents.Agent, error) {
	if !voice {
		return o.agents.New(ctx, kind, actx)
	}
	key := cacheKey{userID: userID, kind: kind}
	if a, ok := o.voice.get(key); ok {
		a.SetContext(actx)
		return a, nil
	}
	a, err := o.agents.New(ctx, kind, actx)
	if err != nil {
		return nil, err
	}
	o.voice.put(key, a)
	return a, nil
}

// finish appends the user and assistant messages and reports the state
// change against the state loaded before the turn.
func (o *Orchestrator) finish(ctx context.Context, t *turn, resp *model.AgentResponse) (*Response, error) {
	row, err := o.store.AppendMessages(ctx, t.req.UserID,
		model.NewUserMessage(t.req.Query, t.started),
		model.NewAssistantMessage(resp.Content, t.kind, o.now()),
	)
	if err != nil {
		return nil, err
	}

	progress := onboarding.BuildProgress(row)
	step := t.initial
	if step < 1 {
		step = 1
	}
	out := &Response{
		Message:      resp.Content,
		AgentType:    t.kind,
		ToolsUsed:    resp.ToolsUsed,
		Metadata:     resp.Metadata,
		InitialState: t.initial,
		CurrentState: row.CurrentState,
		StateUpdated: row.CurrentState > t.initial,
		StepComplete: row.StepComplete(step),
		IsComplete:   row.IsComplete,
		Progress:     &progress,
	}
	if out.ToolsUsed == nil {
		out.ToolsUsed = []string{}
	}
	out.NextAction = nextAction(progress, out.StateUpdated)

	logx.Info().
		Str("user_id", t.req.UserID).
		Str("agent", t.kind.String()).
		Int("initial_state", t.initial).
		Int("current_state", row.CurrentState).
		Bool("state_updated", out.StateUpdated).
		Strs("tools", out.ToolsUsed).
		Msg("turn finished")
	return out, nil
}

func nextAction(p onboarding.Progress, stateUpdated bool) string {
	switch {
	case p.CanComplete && !p.IsComplete:
		return ActionComplete
	case stateUpdated:
		return ActionProceed
	default:
		return ActionContinue
	}
}

// resolveKind returns the agent that serves the user's next turn.
func resolveKind(row *onboarding.OnboardingState) model.AgentKind {
	if row.IsComplete {
		return model.KindGeneral
	}
	return onboarding.OwningAgent(row.CurrentState)
}

// CurrentAgent reports the agent that would answer the user's next
// onboarding turn.
func (o *Orchestrator) CurrentAgent(ctx context.Context, userID string) (*AgentInfo, error) {
	row, err := o.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	kind := resolveKind(row)
	info := &AgentInfo{
		AgentType:    kind,
		CurrentState: row.CurrentState,
		OwnedStates:  []int{},
		IsComplete:   row.IsComplete,
	}
	if m, ok := onboarding.State(row.CurrentState); ok {
		info.CurrentStateInfo = m.Info()
	}
	for _, m := range onboarding.StatesOwnedBy(kind) {
		info.OwnedStates = append(info.OwnedStates, m.Number)
	}
	return info, nil
}
