package agents

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/fitcoach-core/server/internal/agent/model"
	errx "github.com/fitcoach-core/server/internal/core/error"
)

// SchedulingAgent owns state 9.
type SchedulingAgent struct {
	*Base
}

func NewSchedulingAgent(ctx context.Context, deps Deps, actx *model.AgentContext) (*SchedulingAgent, error) {
	a := &SchedulingAgent{Base: newBase(model.KindScheduling, deps, actx)}
	a.vars = func() map[string]any {
		return map[string]any{
			"HydrationTool":   ToolSaveHydration,
			"SupplementsTool": ToolSaveSupplements,
		}
	}
	if err := a.register(ctx, a.saveHydration(), a.saveSupplements()); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *SchedulingAgent) saveHydration() toolDef {
	return toolDef{
		info: toolInfo(ToolSaveHydration,
			"Save the daily water target and how often to send water reminders.",
			map[string]*schema.ParameterInfo{
				"daily_water_target_ml":      intParam("Daily water target in millilitres, 500 to 8000", true),
				"reminder_frequency_minutes": intParam("Minutes between reminders, 15 to 480", true),
			}),
		run: func(ctx context.Context, args map[string]any) *ToolResult {
			section, err := pickFields(9, args, "daily_water_target_ml", "reminder_frequency_minutes")
			if err != nil {
				return failure(err)
			}
			for _, k := range []string{"daily_water_target_ml", "reminder_frequency_minutes"} {
				if !section.Has(k) {
					return failure(errx.InvalidInputf(k, "%s is required", k))
				}
			}
			return a.saveSection(ctx, 9, section)
		},
	}
}

func (a *SchedulingAgent) saveSupplements() toolDef {
	return toolDef{
		info: toolInfo(ToolSaveSupplements,
			"Save whether the user wants supplement guidance and what they already take.",
			map[string]*schema.ParameterInfo{
				"interested": boolParam("True if the user wants supplement guidance", true),
				"current":    listParam("Supplements the user already takes", false),
			}),
		run: func(ctx context.Context, args map[string]any) *ToolResult {
			section, err := pickFields(9, map[string]any{
				"supplement_interested": args["interested"],
				"current_supplements":   args["current"],
			}, "supplement_interested", "current_supplements")
			if err != nil {
				return failure(err)
			}
			if !section.Has("supplement_interested") {
				return failure(errx.InvalidInput("interested", "interested is required"))
			}
			return a.saveSection(ctx, 9, section)
		},
	}
}
