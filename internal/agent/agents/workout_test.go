package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitcoach-core/server/internal/agent/llm/llmtest"
	errx "github.com/fitcoach-core/server/internal/core/error"
	"github.com/fitcoach-core/server/internal/onboarding"
	"github.com/fitcoach-core/server/internal/plans"
)

// workoutTurn runs one text turn against a fresh workout agent built from
// the stored row, like a request would.
func (e *env) workoutTurn(t *testing.T, text string, replies ...llmtest.Reply) ToolResult {
	t.Helper()
	ctx := context.Background()
	e.llm.Push(replies...)
	start := len(e.llm.Requests())
	a, err := NewWorkoutPlanningAgent(ctx, e.deps, e.snapshot(t))
	require.NoError(t, err)
	_, err = a.ProcessText(ctx, text)
	require.NoError(t, err)
	reqs := e.llm.Requests()[start:]
	require.GreaterOrEqual(t, len(reqs), 2)
	return lastToolResult(t, reqs[len(reqs)-1])
}

func TestWorkoutPlanNeedsApprovalBeforeSaving(t *testing.T) {
	e := newEnv(t, 3)
	require.Equal(t, 4, e.row(t).CurrentState)

	res := e.workoutTurn(t, "Build me a plan, 4 days at the gym, an hour each",
		llmtest.Call(ToolGenerateWorkoutPlan, map[string]any{"frequency": 4, "location": "gym", "duration_minutes": 60}),
		llmtest.Text("Here is your 4-day plan. Does this work for you?"),
	)
	require.True(t, res.Success, res.Message)
	assert.Nil(t, res.NextState)
	assert.Equal(t, false, res.Data["user_approved"])
	assert.NotEmpty(t, res.Data["rationale"])

	row := e.row(t)
	section := row.Section(onboarding.SectionWorkoutPlan)
	assert.True(t, section.Has("proposed_plan"))
	assert.False(t, section.Has("plan"))
	assert.Equal(t, false, section["user_approved"])
	assert.Equal(t, 4, row.CurrentState)
	assert.False(t, row.StepComplete(4))

	t.Run("model claims approval the user never gave", func(t *testing.T) {
		before := e.row(t)
		res := e.workoutTurn(t, "Can you tell me more about day two?",
			llmtest.Call(ToolSaveWorkoutPlan, map[string]any{"user_approved": true}),
			llmtest.Text("Day two is your lower body day."),
		)
		assert.False(t, res.Success)
		assert.Equal(t, errx.CodeValidation, res.ErrorCode)
		assert.Equal(t, "user_approved", res.Field)
		assert.Equal(t, before.UpdatedAt, e.row(t).UpdatedAt)
	})

	t.Run("save without the approval flag", func(t *testing.T) {
		before := e.row(t)
		res := e.workoutTurn(t, "looks good",
			llmtest.Call(ToolSaveWorkoutPlan, map[string]any{"user_approved": false}),
			llmtest.Text("Just to confirm, shall I lock this in?"),
		)
		assert.False(t, res.Success)
		assert.Equal(t, "user_approved", res.Field)
		after := e.row(t)
		assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
		assert.Equal(t, 4, after.CurrentState)
	})

	t.Run("explicit approval saves and advances", func(t *testing.T) {
		res := e.workoutTurn(t, "Looks good, let's do it!",
			llmtest.Call(ToolSaveWorkoutPlan, map[string]any{"user_approved": true}),
			llmtest.Text("Saved. Which days suit you?"),
		)
		require.True(t, res.Success, res.Message)
		assert.Equal(t, 5, res.CurrentState)
		require.NotNil(t, res.NextState)
		assert.Equal(t, 5, *res.NextState)

		row := e.row(t)
		section := row.Section(onboarding.SectionWorkoutPlan)
		assert.True(t, section.Has("plan"))
		assert.True(t, section.Has("approved_at"))
		assert.False(t, section.Has("proposed_plan"))
		assert.Equal(t, true, section["user_approved"])
		assert.True(t, row.StepComplete(4))
		assert.Equal(t, 5, row.CurrentState)
	})

	t.Run("modifying an approved plan resets approval", func(t *testing.T) {
		res := e.workoutTurn(t, "Actually make it three days",
			llmtest.Call(ToolModifyWorkoutPlan, map[string]any{"modifications": map[string]any{"frequency": 3}}),
			llmtest.Text("Here's the 3-day version. Does it work?"),
		)
		require.True(t, res.Success, res.Message)

		row := e.row(t)
		section := row.Section(onboarding.SectionWorkoutPlan)
		assert.Equal(t, false, section["user_approved"])
		assert.False(t, section.Has("plan"))
		proposed, err := plans.DecodeWorkoutPlan(section["proposed_plan"])
		require.NoError(t, err)
		assert.Equal(t, 3, proposed.Frequency)
		assert.False(t, row.StepComplete(4))
		assert.Equal(t, 5, row.CurrentState)
	})
}

func TestSaveWorkoutPlanWithoutProposal(t *testing.T) {
	e := newEnv(t, 3)
	res := e.workoutTurn(t, "yes",
		llmtest.Call(ToolSaveWorkoutPlan, map[string]any{"user_approved": true}),
		llmtest.Text("Let me build a plan first."),
	)
	assert.False(t, res.Success)
	assert.Equal(t, errx.CodeValidation, res.ErrorCode)
	assert.Equal(t, "plan", res.Field)
}

func TestWorkoutConstraintsAndSchedule(t *testing.T) {
	e := newEnv(t, 2)
	res := e.workoutTurn(t, "I have dumbbells at home and a bad knee",
		llmtest.Call(ToolSaveWorkoutConstraints, map[string]any{
			"equipment": []any{"dumbbells"}, "injuries": []any{"bad knee"}, "limitations": []any{}, "location": "home",
		}),
		llmtest.Text("Noted."),
	)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, 4, res.CurrentState)

	res = e.workoutTurn(t, "Mondays at 25:00",
		llmtest.Call(ToolSaveWorkoutSchedule, map[string]any{"days": []any{"Monday"}, "times": []any{"25:00"}}),
		llmtest.Text("That time doesn't exist, when instead?"),
	)
	assert.False(t, res.Success)
	assert.Equal(t, errx.CodeValidation, res.ErrorCode)
}

func TestApprovalPhrases(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Yes please", true},
		{"That LOOKS GOOD to me", true},
		{"perfect", true},
		{"Let’s do it", true},
		{"I'm happy with this plan", true},
		{"hmm, not sure", false},
		{"can you change day 2?", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, IsApproval(tt.text))
		})
	}
}
