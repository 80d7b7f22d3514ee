package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitcoach-core/server/internal/agent/agents"
	"github.com/fitcoach-core/server/internal/agent/llm/llmtest"
	"github.com/fitcoach-core/server/internal/agent/model"
	errx "github.com/fitcoach-core/server/internal/core/error"
	"github.com/fitcoach-core/server/internal/onboarding"
)

func TestGate(t *testing.T) {
	tests := []struct {
		name       string
		complete   bool
		onboarding bool
		override   string
		want       model.AgentKind
		err        error
		status     int
	}{
		{"onboarding picks by state", false, true, "", "", nil, 0},
		{"onboarding specialist override", false, true, "workout_planning", model.KindWorkoutPlanning, nil, 0},
		{"onboarding after completion", true, true, "", "", errx.ErrAlreadyCompleted, http.StatusForbidden},
		{"general during onboarding", false, true, "general", "", errx.ErrAgentNotAvailable, http.StatusForbidden},
		{"general alias during onboarding", false, true, model.CurrentAgentGeneral, "", errx.ErrAgentNotAvailable, http.StatusForbidden},
		{"tracker during onboarding", false, true, "tracker", "", errx.ErrAgentNotAvailable, http.StatusForbidden},
		{"chat before completion", false, false, "", "", errx.ErrOnboardingRequired, http.StatusForbidden},
		{"specialist after completion", true, false, "diet_planning", "", errx.ErrAgentNotAvailable, http.StatusForbidden},
		{"chat after completion", true, false, "", "", nil, 0},
		{"tracker after completion", true, false, "tracker", model.KindTracker, nil, 0},
		{"unknown agent", false, true, "sommelier", "", errx.ErrInvalidInput, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := &onboarding.OnboardingState{UserID: testUser, CurrentState: 3, IsComplete: tt.complete}
			got, err := gate(row, Request{UserID: testUser, OnboardingMode: tt.onboarding, AgentOverride: tt.override})
			if tt.err != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.err), err.Error())
				assert.Equal(t, tt.status, errx.StatusOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFirstTurnEntersStateOne(t *testing.T) {
	f := newFixture(t, 0)
	f.llm.Push(llmtest.Text("Welcome! How would you describe your fitness level?"))

	resp, err := f.orch.Dispatch(context.Background(), onboardingTurn("Hi there"))
	require.NoError(t, err)
	assert.Equal(t, model.KindFitnessAssessment, resp.AgentType)
	assert.Equal(t, 0, resp.InitialState)
	assert.Equal(t, 1, resp.CurrentState)
	assert.True(t, resp.StateUpdated)
	assert.False(t, resp.StepComplete)
	assert.Equal(t, ActionProceed, resp.NextAction)
	assert.Equal(t, []string{}, resp.ToolsUsed)
	require.NotNil(t, resp.Progress)
	assert.Equal(t, 0, resp.Progress.CompletionPercentage)

	row := f.row(t)
	history := row.History()
	require.Len(t, history, 2)
	assert.Equal(t, model.RoleUser, history[0].Role)
	assert.Equal(t, "Hi there", history[0].Content)
	assert.Equal(t, model.RoleAssistant, history[1].Role)
	assert.Equal(t, "fitness_assessment", history[1].AgentType)
	assert.False(t, history[1].Timestamp.Before(history[0].Timestamp))

	visits := row.Visits()
	require.Len(t, visits, 1)
	assert.Equal(t, "fitness_assessment", visits[0].Agent)
	assert.Nil(t, visits[0].ExitedAt)
}

func TestExtractorPrefillRunsBeforeTheAgent(t *testing.T) {
	f := newFixture(t, 0)
	f.ext.Push(llmtest.Text(`{"fitness_level":"intermediate","limitations":[],"energy_level":null}`))
	f.llm.Push(llmtest.Text("Nice. What is your main goal?"))

	resp, err := f.orch.Dispatch(context.Background(), onboardingTurn("I'm intermediate, no injuries or limitations"))
	require.NoError(t, err)
	assert.Equal(t, 2, resp.CurrentState)
	assert.True(t, resp.StateUpdated)
	assert.True(t, resp.StepComplete)
	assert.Equal(t, model.KindFitnessAssessment, resp.AgentType)

	row := f.row(t)
	assert.Equal(t, "intermediate", row.Section(onboarding.SectionFitnessAssessment)["fitness_level"])
	assert.True(t, row.StepComplete(1))

	reqs := f.llm.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Messages[0].Content, "Current state: 2 - Goal Setting")
	assert.Len(t, f.ext.Requests(), 1)
}

func TestExtractorPrefillKeepsCrossFieldRules(t *testing.T) {
	f := newFixture(t, 4)
	f.ext.Push(llmtest.Text(`{"days":["Monday","Wednesday","Friday"],"times":["07:00"]}`))
	f.llm.Push(llmtest.Text("What time on Wednesday and Friday?"))

	resp, err := f.orch.Dispatch(context.Background(), onboardingTurn("Mon, Wed and Fri at 7"))
	require.NoError(t, err)
	assert.Equal(t, 5, resp.CurrentState)
	assert.False(t, resp.StepComplete)

	row := f.row(t)
	assert.Equal(t, 5, row.CurrentState)
	assert.False(t, row.StepComplete(5))
	section := row.Section(onboarding.SectionWorkoutSchedule)
	assert.False(t, section.Has("days"))
	assert.Equal(t, []any{"07:00"}, section["times"])
	assert.False(t, onboarding.MustState(5).IsComplete(section))
}

func TestExtractorFailureDoesNotBlockTheTurn(t *testing.T) {
	f := newFixture(t, 0)
	f.ext.Push(llmtest.Failure(errors.New("quota exceeded")))
	f.llm.Push(llmtest.Text("Tell me about your training so far."))

	resp, err := f.orch.Dispatch(context.Background(), onboardingTurn("hello"))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.CurrentState)
	assert.Empty(t, f.row(t).Section(onboarding.SectionFitnessAssessment))
}

func TestToolSaveIsReportedAsStateUpdate(t *testing.T) {
	f := newFixture(t, 1)
	require.Equal(t, 2, f.row(t).CurrentState)
	f.llm.Push(
		llmtest.Call(agents.ToolSaveGoals, map[string]any{"primary_goal": "muscle_gain"}),
		llmtest.Text("Muscle gain it is. The workout coach takes it from here."),
	)

	req := onboardingTurn("I want to build muscle")
	req.ExpectedState = intPtr(2)
	resp, err := f.orch.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.InitialState)
	assert.Equal(t, 3, resp.CurrentState)
	assert.True(t, resp.StateUpdated)
	assert.True(t, resp.StepComplete)
	assert.Equal(t, ActionProceed, resp.NextAction)
	assert.Equal(t, []string{agents.ToolSaveGoals}, resp.ToolsUsed)

	next, err := f.orch.CurrentAgent(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, model.KindWorkoutPlanning, next.AgentType)
	assert.Equal(t, []int{3, 4, 5}, next.OwnedStates)
	require.NotNil(t, next.CurrentStateInfo)
	assert.Equal(t, onboarding.SectionWorkoutConstraints, next.CurrentStateInfo.Key)
}

func TestStateIsComparedAgainstThePreTurnValue(t *testing.T) {
	f := newFixture(t, 3)
	f.llm.Push(llmtest.Text("Let's look at how often you can train."))

	req := onboardingTurn("what now?")
	req.ExpectedState = intPtr(4)
	resp, err := f.orch.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 4, resp.InitialState)
	assert.Equal(t, 4, resp.CurrentState)
	assert.False(t, resp.StateUpdated)
	assert.False(t, resp.StepComplete)
	assert.Equal(t, ActionContinue, resp.NextAction)
	assert.Equal(t, model.KindWorkoutPlanning, resp.AgentType)
}

func TestStateMismatchIsRejectedBeforeAnyWork(t *testing.T) {
	f := newFixture(t, 1)
	req := onboardingTurn("hello")
	req.ExpectedState = intPtr(1)

	_, err := f.orch.Dispatch(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrStateMismatch))
	assert.Equal(t, http.StatusBadRequest, errx.StatusOf(err))
	assert.Empty(t, f.llm.Requests())
	assert.Empty(t, f.ext.Requests())
	assert.Empty(t, f.row(t).History())

	f.llm.Push(llmtest.Text("What is your main goal?"))
	req.ExpectedState = intPtr(2)
	_, err = f.orch.Dispatch(context.Background(), req)
	require.NoError(t, err, "the failed turn must release its lock")
}

func TestCompletedUsers(t *testing.T) {
	f := newFixture(t, onboarding.TotalStates)
	f.complete(t)
	ctx := context.Background()

	_, err := f.orch.Dispatch(ctx, onboardingTurn("let's continue"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrAlreadyCompleted))
	assert.Equal(t, http.StatusForbidden, errx.StatusOf(err))

	f.llm.Push(llmtest.Text("Your plan is ready. Anything else?"))
	resp, err := f.orch.Dispatch(ctx, Request{UserID: testUser, Query: "how am I doing?"})
	require.NoError(t, err)
	assert.Equal(t, model.KindGeneral, resp.AgentType)
	assert.True(t, resp.IsComplete)
	assert.False(t, resp.StateUpdated)
	assert.Equal(t, ActionContinue, resp.NextAction)

	info, err := f.orch.CurrentAgent(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, model.KindGeneral, info.AgentType)
	assert.True(t, info.IsComplete)
}

func TestCanCompleteSuggestsCompletion(t *testing.T) {
	f := newFixture(t, 8)
	f.llm.Push(
		llmtest.Call(agents.ToolSaveHydration, map[string]any{"daily_water_target_ml": 3000, "reminder_frequency_minutes": 60}),
		llmtest.Call(agents.ToolSaveSupplements, map[string]any{"interested": false}),
		llmtest.Text("All set! You can finish onboarding now."),
	)
	resp, err := f.orch.Dispatch(context.Background(), onboardingTurn("3 liters a day, remind me hourly, no supplements"))
	require.NoError(t, err)
	assert.Equal(t, model.KindScheduling, resp.AgentType)
	assert.True(t, resp.Progress.CanComplete)
	assert.Equal(t, 100, resp.Progress.CompletionPercentage)
	assert.Equal(t, ActionComplete, resp.NextAction)
}

func TestDispatchErrors(t *testing.T) {
	t.Run("onboarding not finished", func(t *testing.T) {
		f := newFixture(t, 2)
		_, err := f.orch.Dispatch(context.Background(), Request{UserID: testUser, Query: "hi"})
		assert.True(t, errors.Is(err, errx.ErrOnboardingRequired))
	})
	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t, 0)
		_, err := f.orch.Dispatch(context.Background(), Request{UserID: "nobody", Query: "hi", OnboardingMode: true})
		assert.Equal(t, http.StatusNotFound, errx.StatusOf(err))
	})
	t.Run("empty message", func(t *testing.T) {
		f := newFixture(t, 0)
		_, err := f.orch.Dispatch(context.Background(), onboardingTurn("   "))
		assert.True(t, errors.Is(err, errx.ErrInvalidInput))
		assert.Equal(t, "message", errx.FieldOf(err))
	})
	t.Run("model failure persists nothing", func(t *testing.T) {
		f := newFixture(t, 1)
		f.llm.Push(llmtest.Failure(errors.New("upstream 503")))
		_, err := f.orch.Dispatch(context.Background(), onboardingTurn("hello"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errx.ErrLLM))
		row := f.row(t)
		assert.Empty(t, row.History())
		assert.Equal(t, 2, row.CurrentState)
	})
	t.Run("turn already running", func(t *testing.T) {
		f := newFixture(t, 1)
		ctx := context.Background()
		release, err := f.orch.locker.Acquire(ctx, testUser, time.Minute)
		require.NoError(t, err)
		_, err = f.orch.Dispatch(ctx, onboardingTurn("hello"))
		assert.True(t, errors.Is(err, errx.ErrTurnInProgress))
		require.NoError(t, release(ctx))
	})
}

func TestAgentVisitsFollowTheOwningAgent(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	f.llm.Push(
		llmtest.Call(agents.ToolSaveGoals, map[string]any{"primary_goal": "fat_loss"}),
		llmtest.Text("Got it."),
		llmtest.Text("What equipment do you have?"),
	)
	_, err := f.orch.Dispatch(ctx, onboardingTurn("I want to lose fat"))
	require.NoError(t, err)
	_, err = f.orch.Dispatch(ctx, onboardingTurn("ok what next"))
	require.NoError(t, err)

	row := f.row(t)
	visits := row.Visits()
	require.Len(t, visits, 2)
	assert.Equal(t, "fitness_assessment", visits[0].Agent)
	assert.NotNil(t, visits[0].ExitedAt)
	assert.Equal(t, "workout_planning", visits[1].Agent)
	assert.Equal(t, 3, visits[1].State)
	assert.Equal(t, "workout_planning", row.CurrentAgent)
}

func TestMonotoneStateAcrossTurns(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	f.llm.Push(
		llmtest.Text("Welcome!"),
		llmtest.Call(agents.ToolSaveFitnessAssessment, map[string]any{"fitness_level": "beginner", "limitations": []any{}}),
		llmtest.Text("Saved."),
		llmtest.Call(agents.ToolSaveFitnessAssessment, map[string]any{"fitness_level": "advanced", "limitations": []any{}}),
		llmtest.Text("Updated."),
		llmtest.Text("Anything else?"),
	)
	last := 0
	for _, q := range []string{"hi", "beginner, nothing hurts", "actually I'm advanced", "ok"} {
		resp, err := f.orch.Dispatch(ctx, onboardingTurn(q))
		require.NoError(t, err, q)
		assert.GreaterOrEqual(t, resp.CurrentState, last, q)
		assert.Equal(t, resp.CurrentState > resp.InitialState, resp.StateUpdated, q)
		last = resp.CurrentState
	}
	assert.Equal(t, 2, last)
}
