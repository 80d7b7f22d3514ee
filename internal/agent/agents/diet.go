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

// DietPlanningAgent owns states 6 to 8.
type DietPlanningAgent struct {
	*Base

	mu     sync.Mutex
	latest *plans.MealPlan
}

func NewDietPlanningAgent(ctx context.Context, deps Deps, actx *model.AgentContext) (*DietPlanningAgent, error) {
	a := &DietPlanningAgent{Base: newBase(model.KindDietPlanning, deps, actx)}
	a.vars = func() map[string]any {
		return map[string]any{
			"PreferencesTool": ToolSaveDietPreferences,
			"GenerateTool":    ToolGenerateMealPlan,
			"ModifyTool":      ToolModifyMealPlan,
			"SavePlanTool":    ToolSaveMealPlan,
			"ScheduleTool":    ToolSaveMealSchedule,
		}
	}
	err := a.register(ctx,
		a.savePreferences(),
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

func (a *DietPlanningAgent) remember(p plans.MealPlan) {
	a.mu.Lock()
	a.latest = &p
	a.mu.Unlock()
}

func (a *DietPlanningAgent) currentPlan(ctx context.Context, sent any) (plans.MealPlan, error) {
	a.mu.Lock()
	latest := a.latest
	a.mu.Unlock()
	if latest != nil {
		return *latest, nil
	}
	row, err := a.deps.Store.Load(ctx, a.userID())
	if err != nil {
		return plans.MealPlan{}, err
	}
	section := row.Section(onboarding.SectionMealPlan)
	for _, k := range []string{"proposed_plan", "plan"} {
		if section.Has(k) {
			return plans.DecodeMealPlan(section[k])
		}
	}
	if sent != nil {
		return plans.DecodeMealPlan(sent)
	}
	return plans.MealPlan{}, errx.InvalidInput("plan", "there is no meal plan yet, generate one first")
}

func (a *DietPlanningAgent) propose(ctx context.Context, p plans.MealPlan) *ToolResult {
	res := a.saveSection(ctx, 7, onboarding.MealProposal(p))
	if !res.Success {
		return res
	}
	a.remember(p)
	res.Message = "Meal plan generated but not saved as final. Present the targets and ask whether they work for the user."
	res.Data = map[string]any{
		"plan":          p.AsMap(),
		"notes":         p.Notes,
		"user_approved": false,
	}
	return res
}

func (a *DietPlanningAgent) savePreferences() toolDef {
	return toolDef{
		info: toolInfo(ToolSaveDietPreferences,
			"Save the user's diet type, allergies, intolerances, dislikes and cooking effort.",
			map[string]*schema.ParameterInfo{
				"diet_type":    strParam("Diet type", true, plans.DietTypes...),
				"allergies":    listParam("Food allergies, empty if none", true),
				"dislikes":     listParam("Disliked foods, empty if none", true),
				"intolerances": listParam("Food intolerances", false),
				"prep_level":   strParam("Cooking effort", false, plans.PrepLevels...),
			}),
		run: func(ctx context.Context, args map[string]any) *ToolResult {
			section, err := onboarding.NormalizeSection(6, args)
			if err != nil {
				return failure(err)
			}
			return a.saveSection(ctx, 6, section)
		},
	}
}

func (a *DietPlanningAgent) generatePlan() toolDef {
	return toolDef{
		info: toolInfo(ToolGenerateMealPlan,
			"Generate calorie and macro targets with sample meals. The plan is not final until the user approves it.",
			map[string]*schema.ParameterInfo{
				"meal_frequency": intParam("Meals per day, 2 to 6", false),
				"prep_level":     strParam("Cooking effort", false, plans.PrepLevels...),
				"daily_calories": intParam("Optional calorie target override, 1000 to 6000", false),
			}),
		run: func(ctx context.Context, args map[string]any) *ToolResult {
			prefs, err := pickFields(7, args, "meal_frequency", "daily_calories")
			if err != nil {
				return failure(err)
			}
			prep, err := pickFields(6, args, "prep_level")
			if err != nil {
				return failure(err)
			}
			for k, v := range prep {
				prefs[k] = v
			}
			row, err := a.deps.Store.Load(ctx, a.userID())
			if err != nil {
				return failure(err)
			}
			p, err := plans.GenerateMealPlan(onboarding.DietInputFromSections(row.Sections(), prefs))
			if err != nil {
				return failure(err)
			}
			if kcal, ok := prefs["daily_calories"]; ok {
				if p, err = plans.ModifyMealPlan(p, map[string]any{"daily_calories": kcal}); err != nil {
					return failure(err)
				}
			}
			return a.propose(ctx, p)
		},
	}
}

func (a *DietPlanningAgent) modifyPlan() toolDef {
	return toolDef{
		info: toolInfo(ToolModifyMealPlan,
			"Adjust the current meal plan proposal. The result is a new proposal that needs approval.",
			map[string]*schema.ParameterInfo{
				"modifications": objectParam("Changes to apply", true, map[string]*schema.ParameterInfo{
					"daily_calories":     intParam("Daily calorie target, 1000 to 6000", false),
					"meal_frequency":     intParam("Meals per day, 2 to 6", false),
					"protein_percentage": numParam("Protein share of calories", false),
					"carbs_percentage":   numParam("Carbohydrate share of calories", false),
					"fats_percentage":    numParam("Fat share of calories", false),
					"diet_type":          strParam("Diet type", false, plans.DietTypes...),
					"prep_level":         strParam("Cooking effort", false, plans.PrepLevels...),
					"allergies":          listParam("Food allergies", false),
					"intolerances":       listParam("Food intolerances", false),
					"dislikes":           listParam("Disliked foods", false),
				}),
			}),
		run: func(ctx context.Context, args map[string]any) *ToolResult {
			mods, _ := args["modifications"].(map[string]any)
			current, err := a.currentPlan(ctx, args["current_plan"])
			if err != nil {
				return failure(err)
			}
			p, err := plans.ModifyMealPlan(current, mods)
			if err != nil {
				return failure(err)
			}
			return a.propose(ctx, p)
		},
	}
}

func (a *DietPlanningAgent) savePlan() toolDef {
	return toolDef{
		info: toolInfo(ToolSaveMealPlan,
			"Save the proposed meal plan as final. Only call this after the user explicitly approved the plan in their latest message.",
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
			res := a.saveSection(ctx, 7, onboarding.MealApproval(p, a.deps.Now()))
			if res.Success {
				a.remember(p)
			}
			return res
		},
	}
}

func (a *DietPlanningAgent) saveSchedule() toolDef {
	return toolDef{
		info: toolInfo(ToolSaveMealSchedule,
			"Save meal names and HH:MM times in the order they are eaten.",
			map[string]*schema.ParameterInfo{
				"meals": {
					Type:     schema.Array,
					Desc:     "Ordered meals",
					Required: true,
					ElemInfo: objectParam("One meal", false, map[string]*schema.ParameterInfo{
						"meal_name":      strParam("Meal name such as breakfast or lunch", true),
						"scheduled_time": strParam("HH:MM time", true),
					}),
				},
			}),
		run: func(ctx context.Context, args map[string]any) *ToolResult {
			section, err := onboarding.NormalizeSection(8, args)
			if err != nil {
				return failure(err)
			}
			return a.saveSection(ctx, 8, section)
		},
	}
}
