package onboarding

import (
	"context"
	"errors"
	"testing"
	"time"

	errx "github.com/fitcoach-core/server/internal/core/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureSteps() map[int]map[string]any {
	return map[int]map[string]any{
		1: {"fitness_level": "intermediate", "limitations": []any{}, "energy_level": 7, "stress_level": 4, "sleep_quality": 6},
		2: {"primary_goal": "muscle_gain", "secondary_goal": "general_fitness", "target_weight_kg": 82.5},
		3: {"equipment": []any{"barbell", "dumbbells"}, "injuries": []any{}, "limitations": []any{}, "location": "gym"},
		4: {"frequency": 4, "location": "gym", "duration_minutes": 60},
		5: {"days": []any{"Monday", "Wednesday", "Friday", "Saturday"}, "times": []any{"07:00", "07:00", "18:00", "09:00"}},
		6: {"diet_type": "omnivore", "allergies": []any{}, "dislikes": []any{"olives"}},
		7: {"daily_calories": 2800, "protein_percentage": 30, "carbs_percentage": 45, "fats_percentage": 25, "meal_frequency": 4},
		8: {"meals": []any{
			map[string]any{"meal_name": "breakfast", "scheduled_time": "08:00"},
			map[string]any{"meal_name": "lunch", "scheduled_time": "13:00"},
			map[string]any{"meal_name": "snack", "scheduled_time": "16:00"},
			map[string]any{"meal_name": "dinner", "scheduled_time": "19:00"},
		}},
		9: {"daily_water_target_ml": 3000, "reminder_frequency_minutes": 60, "supplement_interested": true, "current_supplements": []any{"creatine"}},
	}
}

func driveSteps(t *testing.T, store Store, userID string, upTo int) {
	t.Helper()
	steps := fixtureSteps()
	for n := 1; n <= upTo; n++ {
		res, err := ApplyStep(context.Background(), store, userID, n, steps[n])
		require.NoError(t, err, "step %d", n)
		require.True(t, res.StepComplete, "step %d", n)
	}
}

func TestApplyStepHappyPath(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	_, _, err := store.Start(ctx, "u1")
	require.NoError(t, err)

	prev := 0
	steps := fixtureSteps()
	for n := 1; n <= TotalStates; n++ {
		res, err := ApplyStep(ctx, store, "u1", n, steps[n])
		require.NoError(t, err, "step %d", n)
		assert.True(t, res.StepComplete)
		assert.GreaterOrEqual(t, res.CurrentState, prev)
		prev = res.CurrentState
	}

	p, err := store.Progress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 9, p.CurrentState)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, p.CompletedStates)
	assert.Equal(t, 100, p.CompletionPercentage)
	assert.True(t, p.CanComplete)
	assert.Nil(t, p.NextStateInfo)

	row, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	workout := row.Section(SectionWorkoutPlan)
	assert.Equal(t, true, workout["user_approved"])
	assert.Equal(t, "upper_lower", workout["training_split"])
	assert.True(t, workout.Has("plan"))
	assert.False(t, workout.Has("proposed_plan"))

	meal := row.Section(SectionMealPlan)
	assert.Equal(t, float64(2800), meal["daily_calories"])
	assert.Equal(t, float64(30), meal["protein_percentage"])

	sched := row.Section(SectionWorkoutSchedule)
	assert.Len(t, sched["slots"], 4)
}

func TestApplyStepOrdering(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	_, _, err := store.Start(ctx, "u1")
	require.NoError(t, err)
	steps := fixtureSteps()

	_, err = ApplyStep(ctx, store, "u1", 2, steps[2])
	require.Error(t, err)
	assert.Equal(t, "step", errx.FieldOf(err))

	res, err := ApplyStep(ctx, store, "u1", 1, steps[1])
	require.NoError(t, err)
	assert.Equal(t, 2, res.CurrentState)

	_, err = ApplyStep(ctx, store, "u1", 3, steps[3])
	require.Error(t, err)
	assert.Equal(t, "step", errx.FieldOf(err))

	// Re-submitting an earlier step does not move state backwards.
	_, err = ApplyStep(ctx, store, "u1", 2, steps[2])
	require.NoError(t, err)
	res, err = ApplyStep(ctx, store, "u1", 1, steps[1])
	require.NoError(t, err)
	assert.Equal(t, 3, res.CurrentState)

	_, err = ApplyStep(ctx, store, "u1", 10, map[string]any{})
	require.Error(t, err)
	assert.Equal(t, "step", errx.FieldOf(err))

	_, err = ApplyStep(ctx, store, "ghost", 1, steps[1])
	assert.True(t, errors.Is(err, errx.ErrNotFound))
}

func TestApplyStepMacroViolationLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	_, _, err := store.Start(ctx, "u1")
	require.NoError(t, err)
	driveSteps(t, store, "u1", 6)

	before, err := store.Load(ctx, "u1")
	require.NoError(t, err)

	_, err = ApplyStep(ctx, store, "u1", 7, map[string]any{
		"daily_calories": 2800, "protein_percentage": 30, "carbs_percentage": 40, "fats_percentage": 40, "meal_frequency": 4,
	})
	require.Error(t, err)
	assert.Equal(t, errx.CodeValidation, errx.CodeOf(err))
	assert.Contains(t, errx.FieldOf(err), "macros")

	after, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, before.CurrentState, after.CurrentState)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
	assert.Nil(t, after.Section(SectionMealPlan))
}

func TestApplyStepScheduleViolations(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	_, _, err := store.Start(ctx, "u1")
	require.NoError(t, err)
	driveSteps(t, store, "u1", 4)

	_, err = ApplyStep(ctx, store, "u1", 5, map[string]any{"days": []any{"Funday", "Wednesday"}, "times": []any{"07:00", "08:00"}})
	require.Error(t, err)
	assert.Contains(t, errx.MessageOf(err), "invalid day name")

	_, err = ApplyStep(ctx, store, "u1", 5, map[string]any{"days": []any{"Monday", "Wednesday"}, "times": []any{"07:00", "25:00"}})
	require.Error(t, err)
	assert.Contains(t, errx.MessageOf(err), "time format")

	row, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, row.CurrentState)
	assert.Nil(t, row.Section(SectionWorkoutSchedule))
}

func TestApplyStepUnapprovedPlanDoesNotAdvance(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	_, _, err := store.Start(ctx, "u1")
	require.NoError(t, err)
	driveSteps(t, store, "u1", 3)

	res, err := ApplyStep(ctx, store, "u1", 4, map[string]any{
		"frequency": 3, "location": "gym", "duration_minutes": 45, "user_approved": false,
	})
	require.NoError(t, err)
	assert.False(t, res.StepComplete)
	assert.Equal(t, 4, res.CurrentState)

	row, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	section := row.Section(SectionWorkoutPlan)
	assert.Equal(t, false, section["user_approved"])
	assert.True(t, section.Has("proposed_plan"))
	assert.False(t, section.Has("plan"))
	assert.False(t, row.Step4Complete)
}

func TestApplyStepMealTimesMap(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	_, _, err := store.Start(ctx, "u1")
	require.NoError(t, err)
	driveSteps(t, store, "u1", 7)

	res, err := ApplyStep(ctx, store, "u1", 8, map[string]any{
		"meal_times": map[string]any{"dinner": "19:00", "breakfast": "08:00", "lunch": "13:00"},
	})
	require.NoError(t, err)
	assert.Equal(t, 9, res.CurrentState)

	row, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	meals := SectionMeals(row.Section(SectionMealSchedule))
	require.Len(t, meals, 3)
	assert.Equal(t, "breakfast", meals[0].Name)
	assert.Equal(t, "dinner", meals[2].Name)

	_, err = ApplyStep(ctx, store, "u1", 8, map[string]any{
		"meals": []any{
			map[string]any{"meal_name": "breakfast", "scheduled_time": "08:00"},
			map[string]any{"meal_name": "lunch", "scheduled_time": "09:30"},
		},
	})
	require.Error(t, err)
	assert.Equal(t, "meal_schedule", errx.FieldOf(err))
}

func TestApplyStepStampsApprovalsWithTheStoreClock(t *testing.T) {
	ctx := context.Background()
	_, db := newTestStore(t)
	at := time.Date(2024, 3, 4, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	store := NewGormStore(db, func() time.Time { return at })
	_, _, err := store.Start(ctx, "u1")
	require.NoError(t, err)
	driveSteps(t, store, "u1", 7)

	row, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	for _, key := range []string{SectionWorkoutPlan, SectionMealPlan} {
		assert.Equal(t, "2024-03-04T08:30:00Z", row.Section(key).String("approved_at"), key)
	}
}
