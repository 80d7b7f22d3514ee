package onboarding

import (
	"context"
	"time"

	"github.com/fitcoach-core/server/internal/agent/model"
	errx "github.com/fitcoach-core/server/internal/core/error"
	"github.com/fitcoach-core/server/internal/plans"
	logx "github.com/fitcoach-core/server/pkg/logger"
)

// StepResult reports the outcome of a direct section save.
type StepResult struct {
	Step          int           `json:"step"`
	StepComplete  bool          `json:"step_complete"`
	CurrentState  int           `json:"current_state"`
	NextStateInfo *StateInfo    `json:"next_state_info"`
	Section       model.Section `json:"section"`
	Progress      Progress      `json:"progress"`
}

// ApplyStep validates and saves one section outside the chat flow. Data is
// validated before ordering is checked; nothing is written on failure.
func ApplyStep(ctx context.Context, store Store, userID string, step int, data map[string]any) (*StepResult, error) {
	if _, ok := State(step); !ok {
		return nil, errx.InvalidInputf("step", "step must be between 1 and %d, got %d", TotalStates, step)
	}
	section, err := NormalizeSection(step, data)
	if err != nil {
		return nil, err
	}

	row, err := store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if row.IsComplete {
		return nil, errx.AlreadyCompleted()
	}
	if !StepAllowed(row.CurrentState, step) {
		return nil, errx.InvalidInputf("step", "step %d is not available yet, onboarding is at state %d", step, row.CurrentState)
	}

	switch step {
	case 4:
		if section, err = workoutStepSection(row, section, store.Now()); err != nil {
			return nil, err
		}
	case 7:
		if section, err = mealStepSection(row, section, store.Now()); err != nil {
			return nil, err
		}
	}

	row, err = store.SaveStep(ctx, userID, step, section)
	if err != nil {
		return nil, err
	}
	meta := MustState(step)
	saved := row.Section(meta.Key)
	progress := BuildProgress(row)
	logx.Info().Str("user_id", userID).Int("step", step).Int("state", row.CurrentState).Msg("onboarding step saved")
	return &StepResult{
		Step:          step,
		StepComplete:  meta.IsComplete(saved),
		CurrentState:  row.CurrentState,
		NextStateInfo: progress.NextStateInfo,
		Section:       saved,
		Progress:      progress,
	}, nil
}

// workoutStepSection generates the plan when the form did not send one and
// turns the section into an approval or a proposal. A form submission counts
// as approval unless user_approved=false is sent explicitly.
func workoutStepSection(row *OnboardingState, section model.Section, now time.Time) (model.Section, error) {
	var plan plans.WorkoutPlan
	if raw, ok := section["plan"]; ok {
		p, err := plans.DecodeWorkoutPlan(raw)
		if err != nil {
			return nil, err
		}
		plan = p
	} else {
		p, err := plans.GenerateWorkoutPlan(WorkoutInputFromSections(row.Sections(), section))
		if err != nil {
			return nil, err
		}
		plan = p
	}
	approved := true
	if section.Has("user_approved") {
		approved = section.Bool("user_approved")
	}
	var out model.Section
	if approved {
		out = WorkoutApproval(plan, now)
	} else {
		out = WorkoutProposal(plan)
	}
	return dropNil(out), nil
}

func mealStepSection(row *OnboardingState, section model.Section, now time.Time) (model.Section, error) {
	var plan plans.MealPlan
	if raw, ok := section["plan"]; ok {
		p, err := plans.DecodeMealPlan(raw)
		if err != nil {
			return nil, err
		}
		plan = p
	} else {
		p, err := plans.GenerateMealPlan(DietInputFromSections(row.Sections(), section))
		if err != nil {
			return nil, err
		}
		plan = p
	}
	plan, err := plans.ModifyMealPlan(plan, map[string]any{
		"daily_calories":     section["daily_calories"],
		"protein_percentage": section["protein_percentage"],
		"carbs_percentage":   section["carbs_percentage"],
		"fats_percentage":    section["fats_percentage"],
	})
	if err != nil {
		return nil, err
	}
	if mf, _ := plans.ToInt(section["meal_frequency"]); mf != plan.MealFrequency {
		if plan, err = plans.ModifyMealPlan(plan, map[string]any{"meal_frequency": mf}); err != nil {
			return nil, err
		}
	}
	approved := true
	if section.Has("user_approved") {
		approved = section.Bool("user_approved")
	}
	var out model.Section
	if approved {
		out = MealApproval(plan, now)
	} else {
		out = MealProposal(plan)
	}
	return dropNil(out), nil
}

func dropNil(s model.Section) model.Section {
	for k, v := range s {
		if v == nil {
			delete(s, k)
		}
	}
	return s
}
