package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fitcoach-core/server/internal/agent/agents"
	"github.com/fitcoach-core/server/internal/agent/conversations"
	"github.com/fitcoach-core/server/internal/agent/extractor"
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
	9: {"daily_water_target_ml": 3000, "reminder_frequency_minutes": 60},
}

// countingFactory records every agent it builds.
type countingFactory struct {
	inner AgentFactory
	mu    sync.Mutex
	built []model.AgentKind
}

func (f *countingFactory) New(ctx context.Context, kind model.AgentKind, actx *model.AgentContext) (agents.Agent, error) {
	f.mu.Lock()
	f.built = append(f.built, kind)
	f.mu.Unlock()
	return f.inner.New(ctx, kind, actx)
}

func (f *countingFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.built)
}

type fixture struct {
	db      *gorm.DB
	store   *onboarding.GormStore
	llm     *llmtest.Model
	ext     *llmtest.Model
	factory *countingFactory
	locker  TurnLocker
	orch    *Orchestrator
}

// newFixture starts onboarding for testUser and applies the first upTo
// direct steps. The extractor answers {} unless scripted.
func newFixture(t *testing.T, upTo int, tune ...func(*Config)) *fixture {
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
	for n := 1; n <= upTo; n++ {
		_, err := onboarding.ApplyStep(ctx, store, testUser, n, steps[n])
		require.NoError(t, err, "step %d", n)
	}

	conv := model.ConversationConfig{TailTurns: 15}
	mm := conversations.NewMessagesManager(conv)
	m := metrics.New()
	fake := llmtest.New()
	ext := llmtest.New().Respond(func(_ []*schema.Message, _ []*schema.ToolInfo) llmtest.Reply {
		return llmtest.Text("{}")
	})
	ex, err := extractor.New(ctx, ext, "gemini-2.5-flash-lite", mm, m)
	require.NoError(t, err)

	factory := &countingFactory{inner: agents.NewFactory(agents.Deps{
		ChatModel:    fake,
		ModelName:    "gemini-2.5-flash",
		Store:        store,
		Messages:     mm,
		Metrics:      m,
		MaxToolCalls: agents.DefaultMaxToolCalls,
	})}
	f := &fixture{db: db, store: store, llm: fake, ext: ext, factory: factory}
	oc := Config{
		Store:        store,
		Agents:       factory,
		Extractor:    ex,
		Metrics:      m,
		Conversation: conv,
	}
	for _, fn := range tune {
		fn(&oc)
	}
	f.orch, err = New(oc)
	require.NoError(t, err)
	f.locker = f.orch.locker
	return f
}

func (f *fixture) row(t *testing.T) *onboarding.OnboardingState {
	t.Helper()
	row, err := f.store.Load(context.Background(), testUser)
	require.NoError(t, err)
	return row
}

func (f *fixture) complete(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.db.Transaction(func(tx *gorm.DB) error {
		return f.store.MarkCompleteTx(ctx, tx, testUser)
	}))
}

func onboardingTurn(query string) Request {
	return Request{UserID: testUser, Query: query, OnboardingMode: true}
}

func intPtr(n int) *int { return &n }
