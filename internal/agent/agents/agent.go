// Package agents implements the conversational agents that own onboarding
// states, plus the tool-less general and tracker agents used afterwards.
package agents

import (
	"context"
	"fmt"
	"sync"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/fitcoach-core/server/internal/agent/conversations"
	"github.com/fitcoach-core/server/internal/agent/model"
	"github.com/fitcoach-core/server/internal/agent/prompts"
	"github.com/fitcoach-core/server/internal/metrics"
	"github.com/fitcoach-core/server/internal/onboarding"
)

// Agent is the contract every conversational agent implements.
type Agent interface {
	Kind() model.AgentKind
	Tools() []tool.BaseTool
	SystemPrompt(ctx context.Context) (string, error)
	// ProcessText runs the full tool loop and returns the final reply.
	ProcessText(ctx context.Context, text string) (*model.AgentResponse, error)
	// StreamResponse yields reply chunks as the model produces them. The
	// reader ends with io.EOF, or with the turn's error.
	StreamResponse(ctx context.Context, text string) (*schema.StreamReader[string], error)
	// ProcessVoice answers without tools in at most prompts.VoiceMaxWords words.
	ProcessVoice(ctx context.Context, text string) (string, error)
	WarmUp(ctx context.Context) error
	// SetContext swaps the snapshot a long-lived agent works from.
	SetContext(actx *model.AgentContext)
}

// Deps are the process-wide collaborators shared by all agents.
type Deps struct {
	ChatModel    einomodel.ToolCallingChatModel
	ModelName    string
	Store        onboarding.Store
	Messages     *conversations.MessagesManager
	Metrics      *metrics.Metrics
	MaxToolCalls int
	Now          func() time.Time
}

// toolDef is one registered tool: its schema and its handler. Handlers
// report failures in the result, never as Go errors.
type toolDef struct {
	info *schema.ToolInfo
	run  func(ctx context.Context, args map[string]any) *ToolResult
}

// Base carries the behavior shared by every agent: prompt assembly, the
// tool loop, streaming and voice mode.
type Base struct {
	kind model.AgentKind
	deps Deps
	actx *model.AgentContext
	// vars adds the agent's own prompt placeholders.
	vars func() map[string]any

	tools     []tool.BaseTool
	toolsNode *compose.ToolsNode
	bound     einomodel.ToolCallingChatModel

	mu       sync.Mutex
	userText string
}

func newBase(kind model.AgentKind, deps Deps, actx *model.AgentContext) *Base {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Messages == nil {
		deps.Messages = conversations.NewMessagesManager(model.ConversationConfig{})
	}
	if actx == nil {
		actx = &model.AgentContext{}
	}
	return &Base{kind: kind, deps: deps, actx: actx}
}

func (b *Base) Kind() model.AgentKind { return b.kind }

func (b *Base) Tools() []tool.BaseTool { return b.tools }

func (b *Base) SetContext(actx *model.AgentContext) {
	if actx == nil {
		return
	}
	b.mu.Lock()
	b.actx = actx
	b.mu.Unlock()
}

func (b *Base) agentContext() *model.AgentContext {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.actx
}

func (b *Base) userID() string { return b.agentContext().UserID }

func (b *Base) beginTurn(text string) {
	b.mu.Lock()
	b.userText = text
	b.mu.Unlock()
}

// turnText is the user utterance of the turn being processed.
func (b *Base) turnText() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.userText
}

// workingState is the state the agent talks about: the current state when
// the agent owns it, otherwise its first incomplete state.
func (b *Base) workingState(actx *model.AgentContext) (onboarding.StateMetadata, bool) {
	owned := onboarding.StatesOwnedBy(b.kind)
	if len(owned) == 0 {
		return onboarding.StateMetadata{}, false
	}
	for _, m := range owned {
		if m.Number == actx.CurrentState {
			return m, true
		}
	}
	for _, m := range owned {
		if !m.IsComplete(actx.Section(m.Key)) {
			return m, true
		}
	}
	return owned[len(owned)-1], true
}

func (b *Base) promptVars() map[string]any {
	actx := b.agentContext()
	vars := map[string]any{
		"TotalStates":        onboarding.TotalStates,
		"StateNumber":        actx.CurrentState,
		"StateName":          "",
		"StateDescription":   "",
		"MissingFields":      []string{},
		"FitnessLevel":       actx.FitnessLevel,
		"PrimaryGoal":        actx.PrimaryGoal,
		"ApprovalPhrases":    approvalList(),
		"FitnessAssessment":  actx.SectionJSON(onboarding.SectionFitnessAssessment),
		"GoalSetting":        actx.SectionJSON(onboarding.SectionGoalSetting),
		"WorkoutConstraints": actx.SectionJSON(onboarding.SectionWorkoutConstraints),
		"WorkoutPlan":        actx.SectionJSON(onboarding.SectionWorkoutPlan),
		"WorkoutSchedule":    actx.SectionJSON(onboarding.SectionWorkoutSchedule),
		"DietPreferences":    actx.SectionJSON(onboarding.SectionDietPreferences),
		"MealPlan":           actx.SectionJSON(onboarding.SectionMealPlan),
		"MealSchedule":       actx.SectionJSON(onboarding.SectionMealSchedule),
		"Hydration":          actx.SectionJSON(onboarding.SectionHydration),
	}
	if meta, ok := b.workingState(actx); ok {
		vars["StateNumber"] = meta.Number
		vars["StateName"] = meta.Name
		vars["StateDescription"] = meta.Description
		vars["MissingFields"] = meta.MissingFields(actx.Section(meta.Key))
	}
	if b.vars != nil {
		for k, v := range b.vars() {
			vars[k] = v
		}
	}
	return vars
}

func (b *Base) SystemPrompt(ctx context.Context) (string, error) {
	return prompts.RenderAgentSystem(ctx, b.kind, b.promptVars())
}

// register builds the tools node and binds the tool schemas to the model.
// Agents without tools talk to the plain model.
func (b *Base) register(ctx context.Context, defs ...toolDef) error {
	b.bound = b.deps.ChatModel
	if len(defs) == 0 {
		return nil
	}
	infos := make([]*schema.ToolInfo, 0, len(defs))
	for _, d := range defs {
		b.tools = append(b.tools, b.newTool(d))
		infos = append(infos, d.info)
	}
	bound, err := b.deps.ChatModel.WithTools(infos)
	if err != nil {
		return fmt.Errorf("failed to bind tools: %w", err)
	}
	b.bound = bound

	node, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:                b.tools,
		ExecuteSequentially:  true,
		UnknownToolsHandler:  unknownTool,
		ToolArgumentsHandler: sanitizeArguments,
	})
	if err != nil {
		return fmt.Errorf("failed to create tools node: %w", err)
	}
	b.toolsNode = node
	return nil
}
