package agents

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitcoach-core/server/internal/agent/llm/llmtest"
	errx "github.com/fitcoach-core/server/internal/core/error"
)

var (
	validAssessment = map[string]any{"fitness_level": "beginner", "limitations": []any{}}
	validGoals      = map[string]any{"primary_goal": "fat_loss"}
)

func TestFitnessAgentSavesAndAdvances(t *testing.T) {
	e := newEnv(t, 0,
		llmtest.Call(ToolSaveFitnessAssessment, validAssessment),
		llmtest.Call(ToolSaveGoals, validGoals),
		llmtest.Text("Great, you're all set for the workout questions."),
	)
	ctx := context.Background()
	a, err := NewFitnessAssessmentAgent(ctx, e.deps, e.snapshot(t))
	require.NoError(t, err)

	resp, err := a.ProcessText(ctx, "I'm a beginner with no injuries and I want to lose fat")
	require.NoError(t, err)
	assert.Equal(t, "Great, you're all set for the workout questions.", resp.Content)
	assert.Equal(t, []string{ToolSaveFitnessAssessment, ToolSaveGoals}, resp.ToolsUsed)
	assert.Equal(t, 2, resp.Metadata["tool_call_count"])
	assert.Equal(t, false, resp.Metadata["tool_call_limit_reached"])

	reqs := e.llm.Requests()
	require.Len(t, reqs, 3)
	assert.ElementsMatch(t, []string{ToolSaveFitnessAssessment, ToolSaveGoals}, reqs[0].Tools)

	first := lastToolResult(t, reqs[1])
	assert.True(t, first.Success)
	assert.Equal(t, 2, first.CurrentState)
	require.NotNil(t, first.NextState)
	assert.Equal(t, 2, *first.NextState)

	second := lastToolResult(t, reqs[2])
	assert.True(t, second.Success)
	assert.Equal(t, 3, second.CurrentState)

	row := e.row(t)
	assert.Equal(t, 3, row.CurrentState)
	assert.Equal(t, []int{1, 2}, row.CompletedStates())
}

func TestToolCallIDsAreFilled(t *testing.T) {
	e := newEnv(t, 0, llmtest.Call(ToolSaveFitnessAssessment, validAssessment), llmtest.Text("ok"))
	ctx := context.Background()
	a, err := NewFitnessAssessmentAgent(ctx, e.deps, e.snapshot(t))
	require.NoError(t, err)

	_, err = a.ProcessText(ctx, "beginner, nothing hurts")
	require.NoError(t, err)

	msgs := e.llm.Requests()[1].Messages
	var call, result *schema.Message
	for _, m := range msgs {
		switch {
		case m.Role == schema.Assistant && len(m.ToolCalls) > 0:
			call = m
		case m.Role == schema.Tool:
			result = m
		}
	}
	require.NotNil(t, call)
	require.NotNil(t, result)
	assert.Equal(t, "call_1", call.ToolCalls[0].ID)
	assert.Equal(t, "call_1", result.ToolCallID)
}

func TestToolValidationErrorLeavesStateUntouched(t *testing.T) {
	e := newEnv(t, 0,
		llmtest.Call(ToolSaveFitnessAssessment, map[string]any{"fitness_level": "elite", "limitations": []any{}}),
		llmtest.Text("Which of beginner, intermediate or advanced fits you best?"),
	)
	ctx := context.Background()
	before := e.row(t)
	a, err := NewFitnessAssessmentAgent(ctx, e.deps, e.snapshot(t))
	require.NoError(t, err)

	_, err = a.ProcessText(ctx, "I'm elite")
	require.NoError(t, err)

	res := lastToolResult(t, e.llm.Requests()[1])
	assert.False(t, res.Success)
	assert.Equal(t, errx.CodeValidation, res.ErrorCode)
	assert.Equal(t, "fitness_level", res.Field)
	assert.NotEmpty(t, res.Message)

	after := e.row(t)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
	assert.Equal(t, 1, after.CurrentState)
}

func TestUnreadableArgumentsBecomeValidationErrors(t *testing.T) {
	broken := llmtest.Reply{ToolCalls: []schema.ToolCall{{
		Type:     "function",
		Function: schema.FunctionCall{Name: ToolSaveFitnessAssessment, Arguments: "{not json"},
	}}}
	e := newEnv(t, 0, broken, llmtest.Text("Could you tell me your fitness level?"))
	ctx := context.Background()
	a, err := NewFitnessAssessmentAgent(ctx, e.deps, e.snapshot(t))
	require.NoError(t, err)

	resp, err := a.ProcessText(ctx, "hi")
	require.NoError(t, err)
	assert.Equal(t, "Could you tell me your fitness level?", resp.Content)

	res := lastToolResult(t, e.llm.Requests()[1])
	assert.False(t, res.Success)
	assert.Equal(t, errx.CodeValidation, res.ErrorCode)
	assert.Equal(t, "fitness_level", res.Field)
}

func TestUnknownToolIsReportedToModel(t *testing.T) {
	e := newEnv(t, 0, llmtest.Call("delete_everything", map[string]any{}), llmtest.Text("Sorry about that."))
	ctx := context.Background()
	a, err := NewFitnessAssessmentAgent(ctx, e.deps, e.snapshot(t))
	require.NoError(t, err)

	resp, err := a.ProcessText(ctx, "hi")
	require.NoError(t, err)
	assert.Equal(t, "Sorry about that.", resp.Content)

	res := lastToolResult(t, e.llm.Requests()[1])
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "does not exist")
}

func TestToolCallLimitForcesWrapUp(t *testing.T) {
	e := newEnv(t, 0,
		llmtest.Call(ToolSaveFitnessAssessment, validAssessment),
		llmtest.Call(ToolSaveGoals, validGoals),
		llmtest.Text("Here is what I saved so far."),
	)
	e.deps.MaxToolCalls = 2
	ctx := context.Background()
	a, err := NewFitnessAssessmentAgent(ctx, e.deps, e.snapshot(t))
	require.NoError(t, err)

	resp, err := a.ProcessText(ctx, "beginner, fat loss")
	require.NoError(t, err)
	assert.Equal(t, "Here is what I saved so far.", resp.Content)
	assert.Equal(t, 2, resp.Metadata["tool_call_count"])
	assert.Equal(t, true, resp.Metadata["tool_call_limit_reached"])

	reqs := e.llm.Requests()
	require.Len(t, reqs, 3)
	assert.Empty(t, reqs[2].Tools)
	last := reqs[2].Messages[len(reqs[2].Messages)-1]
	assert.Equal(t, schema.System, last.Role)
	assert.Contains(t, last.Content, "SYSTEM NOTICE")
	assert.Contains(t, last.Content, "(2)")
}

func TestToolBatchOverLimitIsNotExecuted(t *testing.T) {
	batch := llmtest.Call(ToolSaveFitnessAssessment, validAssessment)
	goals := llmtest.Call(ToolSaveGoals, validGoals)
	batch.ToolCalls = append(batch.ToolCalls, goals.ToolCalls...)
	batch.ToolCalls = append(batch.ToolCalls, goals.ToolCalls...)

	e := newEnv(t, 0, batch, llmtest.Text("Let's take this one step at a time."))
	e.deps.MaxToolCalls = 2
	ctx := context.Background()
	a, err := NewFitnessAssessmentAgent(ctx, e.deps, e.snapshot(t))
	require.NoError(t, err)

	resp, err := a.ProcessText(ctx, "beginner, fat loss")
	require.NoError(t, err)
	assert.Empty(t, resp.ToolsUsed)
	assert.Equal(t, true, resp.Metadata["tool_call_limit_reached"])
	assert.Equal(t, 1, e.row(t).CurrentState)
}

func TestCostAccumulatesAcrossCalls(t *testing.T) {
	e := newEnv(t, 0,
		withUsage(llmtest.Call(ToolSaveFitnessAssessment, validAssessment), 1_000_000, 100_000),
		withUsage(llmtest.Text("done"), 1_000_000, 100_000),
	)
	ctx := context.Background()
	a, err := NewFitnessAssessmentAgent(ctx, e.deps, e.snapshot(t))
	require.NoError(t, err)

	resp, err := a.ProcessText(ctx, "beginner")
	require.NoError(t, err)
	cost, ok := resp.Metadata["usage_cost_total_usd"].(float64)
	require.True(t, ok)
	assert.InDelta(t, 1.10, cost, 1e-9)
}

func TestEmptyReplyFallsBack(t *testing.T) {
	e := newEnv(t, 0, llmtest.Text("   "))
	ctx := context.Background()
	a, err := NewGeneralAgent(ctx, e.deps, e.snapshot(t))
	require.NoError(t, err)

	resp, err := a.ProcessText(ctx, "hello?")
	require.NoError(t, err)
	assert.Equal(t, fallbackReply, resp.Content)
	assert.Equal(t, []string{}, resp.ToolsUsed)
}

func TestModelFailureIsLLMError(t *testing.T) {
	e := newEnv(t, 0, llmtest.Failure(errors.New("quota exceeded")))
	ctx := context.Background()
	a, err := NewFitnessAssessmentAgent(ctx, e.deps, e.snapshot(t))
	require.NoError(t, err)

	_, err = a.ProcessText(ctx, "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrLLM))
	assert.Equal(t, errx.CodeLLM, errx.CodeOf(err))
}

func drain(t *testing.T, sr *schema.StreamReader[string]) ([]string, error) {
	t.Helper()
	defer sr.Close()
	var chunks []string
	for {
		c, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return chunks, nil
		}
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, c)
	}
}

func TestStreamResponseRunsToolsAndStreamsText(t *testing.T) {
	e := newEnv(t, 0,
		llmtest.Call(ToolSaveFitnessAssessment, validAssessment),
		llmtest.Text("All saved, thanks a lot"),
	)
	ctx := context.Background()
	a, err := NewFitnessAssessmentAgent(ctx, e.deps, e.snapshot(t))
	require.NoError(t, err)

	sr, err := a.StreamResponse(ctx, "beginner, no limitations")
	require.NoError(t, err)
	chunks, err := drain(t, sr)
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 1)
	assert.Equal(t, "All saved, thanks a lot", strings.Join(chunks, ""))

	for _, r := range e.llm.Requests() {
		assert.True(t, r.Stream)
	}
	assert.Equal(t, 2, e.row(t).CurrentState)
}

func TestStreamResponseSurfacesErrors(t *testing.T) {
	e := newEnv(t, 0, llmtest.Failure(errors.New("connection reset")))
	ctx := context.Background()
	a, err := NewFitnessAssessmentAgent(ctx, e.deps, e.snapshot(t))
	require.NoError(t, err)

	sr, err := a.StreamResponse(ctx, "hi")
	require.NoError(t, err)
	_, err = drain(t, sr)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errx.ErrLLM))
}
