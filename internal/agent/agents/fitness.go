package agents

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/fitcoach-core/server/internal/agent/model"
	"github.com/fitcoach-core/server/internal/onboarding"
	"github.com/fitcoach-core/server/internal/plans"
)

// FitnessAssessmentAgent owns states 1 and 2.
type FitnessAssessmentAgent struct {
	*Base
}

func NewFitnessAssessmentAgent(ctx context.Context, deps Deps, actx *model.AgentContext) (*FitnessAssessmentAgent, error) {
	a := &FitnessAssessmentAgent{Base: newBase(model.KindFitnessAssessment, deps, actx)}
	a.vars = func() map[string]any {
		return map[string]any{
			"FitnessTool": ToolSaveFitnessAssessment,
			"GoalsTool":   ToolSaveGoals,
		}
	}
	if err := a.register(ctx, a.saveAssessment(), a.saveGoals()); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *FitnessAssessmentAgent) saveAssessment() toolDef {
	return toolDef{
		info: toolInfo(ToolSaveFitnessAssessment,
			"Save the user's fitness level and physical limitations once both are known.",
			map[string]*schema.ParameterInfo{
				"fitness_level":  strParam("Training experience", true, plans.FitnessLevels...),
				"limitations":    listParam("Physical limitations or health conditions, empty if none", true),
				"energy_level":   intParam("Self-rated energy from 1 to 10", false),
				"stress_level":   intParam("Self-rated stress from 1 to 10", false),
				"sleep_quality":  intParam("Self-rated sleep quality from 1 to 10", false),
				"body_weight_kg": numParam("Current body weight in kilograms", false),
			}),
		run: func(ctx context.Context, args map[string]any) *ToolResult {
			section, err := onboarding.NormalizeSection(1, args)
			if err != nil {
				return failure(err)
			}
			return a.saveSection(ctx, 1, section)
		},
	}
}

func (a *FitnessAssessmentAgent) saveGoals() toolDef {
	return toolDef{
		info: toolInfo(ToolSaveGoals,
			"Save the user's primary goal, and optionally a secondary goal and body targets.",
			map[string]*schema.ParameterInfo{
				"primary_goal":   strParam("Main training goal", true, plans.Goals...),
				"secondary_goal": strParam("Optional second goal", false, plans.Goals...),
				"targets": objectParam("Optional body targets", false, map[string]*schema.ParameterInfo{
					"target_weight_kg":           numParam("Target body weight in kilograms", false),
					"target_body_fat_percentage": numParam("Target body fat percentage", false),
				}),
			}),
		run: func(ctx context.Context, args map[string]any) *ToolResult {
			section, err := onboarding.NormalizeSection(2, args)
			if err != nil {
				return failure(err)
			}
			return a.saveSection(ctx, 2, section)
		},
	}
}
