package agents

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fitcoach-core/server/internal/agent/conversations"
	"github.com/fitcoach-core/server/internal/agent/llm/llmtest"
	"github.com/fitcoach-core/server/internal/agent/model"
	"github.com/fitcoach-core/server/internal/metrics"
	"github.com/fitcoach-core/server/internal/onboarding"
	"github.com/fitcoach-core/server/pkg/database"
)

const testUser = "u1"

var steps = map[int]map[string]any{
	1: {"fitness_level": "intermediate", "limitations": []any{}},
	2: {"primary_goal": "muscle_gain"},
	3: {"equipment": []any{"barbell", "dumbbells"}, "injuries": []any{}, "limitations": []any{}, "location": "gym"},
	4: {"frequency": 4, "location": "gym", "duration_minutes": 60},
	5: {"days": []any{"Monday", "Wednesday", "Friday", "Saturday"}, "times": []any{"07:00", "07:00", "18:00", "09:00"}},
	6: {"diet_type": "omnivore", "allergies": []any{}, "dislikes": []any{}},
	7: {"daily_calories": 2800, "protein_percentage": 30, "carbs_percentage": 45, "fats_percentage": 25, "meal_frequency": 4},
	8: {"meal_times": map[string]any{"breakfast": "08:00", "lunch": "13:00", "snack": "16:00", "dinner": "19:00"}},
}

type env struct {
	store *onboarding.GormStore
	llm   *llmtest.Model
	deps  Deps
}

// newEnv starts onboarding for testUser and completes the first upTo states
// through direct step saves.
func newEnv(t *testing.T, upTo int, replies ...llmtest.Reply) *env {
	t.Helper()
	ctx := context.Background()
	cfg := database.Config{Driver: database.DriverSQLite, DSN: database.MemoryDSN(uuid.NewString())}
	db, err := cfg.New()
	require.NoError(t, err)
	require.NoError(t, onboarding.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store := onboarding.NewGormStore(db, nil)
	_, _, err = store.Start(ctx, testUser)
	require.NoError(t, err)
	_, err = store.AdvanceTo(ctx, testUser, 1)
	require.NoError(t, err)
	for n := 1; n <= upTo; n++ {
		_, err := onboarding.ApplyStep(ctx, store, testUser, n, steps[n])
		require.NoError(t, err, "step %d", n)
	}

	fake := llmtest.New(replies...)
	return &env{
		store: store,
		llm:   fake,
		deps: Deps{
			ChatModel:    fake,
			ModelName:    "gemini-2.5-flash",
			Store:        store,
			Messages:     conversations.NewMessagesManager(model.ConversationConfig{TailTurns: 15}),
			Metrics:      metrics.New(),
			MaxToolCalls: DefaultMaxToolCalls,
			Now:          time.Now,
		},
	}
}

func (e *env) row(t *testing.T) *onboarding.OnboardingState {
	t.Helper()
	row, err := e.store.Load(context.Background(), testUser)
	require.NoError(t, err)
	return row
}

func (e *env) snapshot(t *testing.T) *model.AgentContext {
	t.Helper()
	return e.row(t).Snapshot(time.Now())
}

// toolResults decodes every tool message of a request, in order.
func toolResults(t *testing.T, req llmtest.Request) []ToolResult {
	t.Helper()
	var out []ToolResult
	for _, m := range req.Messages {
		if m.Role != schema.Tool {
			continue
		}
		var res ToolResult
		require.NoError(t, json.Unmarshal([]byte(m.Content), &res), m.Content)
		out = append(out, res)
	}
	return out
}

// lastToolResult decodes the tool message closing a request.
func lastToolResult(t *testing.T, req llmtest.Request) ToolResult {
	t.Helper()
	results := toolResults(t, req)
	require.NotEmpty(t, results)
	return results[len(results)-1]
}

func withUsage(r llmtest.Reply, prompt, completion int) llmtest.Reply {
	r.Usage = &schema.TokenUsage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}
	return r
}
