package agents

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/fitcoach-core/server/internal/agent/model"
	errx "github.com/fitcoach-core/server/internal/core/error"
	"github.com/fitcoach-core/server/internal/onboarding"
	"github.com/fitcoach-core/server/internal/plans"
)

// WorkoutPlanningAgent owns states 3 to 5. Generated plans are proposals
// until the user approves them in the current turn.
type WorkoutPlanningAgent struct {
	*Base

	mu     sync.Mutex
	latest *plans.WorkoutPlan
}

func NewWorkoutPlanningAgent(ctx context.Context, deps Deps, actx *model.AgentContext) (*WorkoutPlanningAgent, error) {
	a := &WorkoutPlanningAgent{Base: newBase(model.KindWorkoutPlanning, deps, actx)}
	a.vars = func() map[string]any {
		return map[string]any{
			"ConstraintsTool": ToolSaveWorkoutConstraints,
			"GenerateTool":    ToolGenerateWorkoutPlan,
			"ModifyTool":      ToolModifyWorkoutPlan,
			"SavePlanTool":    ToolSaveWorkoutPlan,
			"ScheduleTool":    ToolSaveWorkoutSchedule,
		}
	}
	err := a.register(ctx,
		a.saveConstraints(),
		a.generatePlan(),
		a.modifyPlan(),
		a.savePlan(),
		a.saveSchedule(),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *WorkoutPlanningAgent) remember(p plans.WorkoutPlan) {
	a.mu.Lock()
	a.latest = &p
	a.mu.Unlock()
}

// currentPlan resolves the plan under discussion: the one proposed during
// this session, then the stored proposal or plan, then what the model sent.
func (a *WorkoutPlanningAgent) currentPlan(ctx context.Context, sent any) (plans.WorkoutPlan, error) {
	a.mu.Lock()
	latest := a.latest
	a.mu.Unlock()
	if latest != nil {
		return *latest, nil
	}
	row, err := a.deps.Store.Load(ctx, a.userID())
	if err != nil {
		return plans.WorkoutPlan{}, err
	}
	section := row.Section(onboarding.SectionWorkoutPlan)
	for _, k := range []string{"proposed_plan", "plan"} {
		if section.Has(k) {
			return plans.DecodeWorkoutPlan(section[k])
		}
	}
	if sent != nil {
		return plans.DecodeWorkoutPlan(sent)
	}
	return plans.WorkoutPlan{}, errx.InvalidInput("plan", "there is no workout plan yet, generate one first")
}

// propose stores p as an unapproved proposal.
func (a *WorkoutPlanningAgent) propose(ctx context.Context, p plans.WorkoutPlan) *ToolResult {
	res := a.saveSection(ctx, 4, onboarding.WorkoutProposal(p))
	if !res.Success {
		return res
	}
	a.remember(p)
	res.Message = "Plan generated but not saved as final. Present it to the user and ask whether it works for them."
	res.Data = map[string]any{
		"plan":          p.AsMap(),
		"rationale":     p.Rationale,
		"user_approved": false,
	}
	return res
}

func (a *WorkoutPlanningAgent) saveConstraints() toolDef {
	return toolDef{
		info: toolInfo(ToolSaveWorkoutConstraints,
			"Save available equipment, injuries and training limitations.",
			map[string]*schema.ParameterInfo{
				"equipment":   listParam("Available equipment, empty if none", true),
				"injuries":    listParam("Current or past injuries, empty if none", true),
				"limitations": listParam("Training limitations, empty if none", true),
				"location":    strParam("Where the user trains", false, plans.Locations...),
			}),
		run: func(ctx context.Context, args map[string]any) *ToolResult {
			section, err := onboarding.NormalizeSection(3, args)
			if err != nil {
				return failure(err)
			}
			return a.saveSection(ctx, 3, section)
		},
	}
}

func (a *WorkoutPlanningAgent) generatePlan() toolDef {
	return toolDef{
		info: toolInfo(ToolGenerateWorkoutPlan,
			"Generate a workout plan proposal from the collected profile. The plan is not final until the user approves it.",
			map[string]*schema.ParameterInfo{
				"frequency":        intParam("Workouts per week, 2 to 7", true),
				"location":         strParam("Where the user trains", true, plans.Locations...),
				"duration_minutes": intParam("Minutes per session, 20 to 180", true),
				"training_split":   strParam("Optional split override", false, plans.Splits...),
				"equipment":        listParam("Optional equipment override", false),
			}),
		run: func(ctx context.Context, args map[string]any) *ToolResult {
			prefs, err := pickFields(4, args, "frequency", "location", "duration_minutes", "training_split")
			if err != nil {
				return failure(err)
			}
			row, err := a.deps.Store.Load(ctx, a.userID())
			if err != nil {
				return failure(err)
			}
			in := onboarding.WorkoutInputFromSections(row.Sections(), prefs)
			if eq, ok := plans.ToStrings(args["equipment"]); ok && len(eq) > 0 {
				in.Equipment = eq
			}
			p, err := plans.GenerateWorkoutPlan(in)
			if err != nil {
				return failure(err)
			}
			return a.propose(ctx, p)
		},
	}
}

func (a *WorkoutPlanningAgent) modifyPlan() toolDef {
	return toolDef{
		info: toolInfo(ToolModifyWorkoutPlan,
			"Adjust the current workout plan proposal. The result is a new proposal that needs approval.",
			map[string]*schema.ParameterInfo{
				"modifications": objectParam("Changes to apply", true, map[string]*schema.ParameterInfo{
					"frequency":        intParam("Workouts per week, 2 to 7", false),
					"duration_minutes": intParam("Minutes per session, 20 to 180", false),
					"location":         strParam("Where the user trains", false, plans.Locations...),
					"training_split":   strParam("Split override", false, plans.Splits...),
					"equipment":        listParam("Available equipment", false),
					"limitations":      listParam("Limitations to respect", false),
				}),
			}),
		run: func(ctx context.Context, args map[string]any) *ToolResult {
			mods, _ := args["modifications"].(map[string]any)
			current, err := a.currentPlan(ctx, args["current_plan"])
			if err != nil {
				return failure(err)
			}
			p, err := plans.ModifyWorkoutPlan(current, mods)
			if err != nil {
				return failure(err)
			}
			return a.propose(ctx, p)
		},
	}
}

func (a *WorkoutPlanningAgent) savePlan() toolDef {
	return toolDef{
		info: toolInfo(ToolSaveWorkoutPlan,
			"Save the proposed workout plan as final. Only call this after the user explicitly approved the plan in their latest message.",
			map[string]*schema.ParameterInfo{
				"user_approved": boolParam("True only when the user explicitly approved the plan", true),
			}),
		run: func(ctx context.Context, args map[string]any) *ToolResult {
			if res := approvalGate(args, a.turnText()); res != nil {
				return res
			}
			p, err := a.currentPlan(ctx, args["plan"])
			if err != nil {
				return failure(err)
			}
			res := a.saveSection(ctx, 4, onboarding.WorkoutApproval(p, a.deps.Now()))
			if res.Success {
				a.remember(p)
			}
			return res
		},
	}
}

func (a *WorkoutPlanningAgent) saveSchedule() toolDef {
	return toolDef{
		info: toolInfo(ToolSaveWorkoutSchedule,
			"Save the training days and start times. days and times are parallel lists.",
			map[string]*schema.ParameterInfo{
				"days":  listParam("Training day names, Monday to Sunday", true),
				"times": listParam("HH:MM start time for each day", true),
			}),
		run: func(ctx context.Context, args map[string]any) *ToolResult {
			section, err := onboarding.NormalizeSection(5, args)
			if err != nil {
				return failure(err)
			}
			return a.saveSection(ctx, 5, section)
		},
	}
}

// approvalGate refuses a final save unless the model flagged approval and
// the user's latest message actually approves. Nothing is written when it
// refuses.
func approvalGate(args map[string]any, userText string) *ToolResult {
	approved := false
	if v, ok := args["user_approved"]; ok && v != nil {
		nv, err := onboarding.NormalizeField(4, "user_approved", v)
		if err != nil {
			return failure(err)
		}
		approved, _ = nv.(bool)
	}
	if !approved {
		return refused("user_approved", "the plan is only saved after the user approves it; present it and ask whether it works for them")
	}
	if !IsApproval(userText) {
		return refused("user_approved", "the user's latest message is not an approval; ask them to confirm the plan first")
	}
	return nil
}
