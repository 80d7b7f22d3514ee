package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitcoach-core/server/internal/agent/agents"
	"github.com/fitcoach-core/server/internal/agent/conversations"
	"github.com/fitcoach-core/server/internal/agent/extractor"
	"github.com/fitcoach-core/server/internal/agent/llm/llmtest"
	"github.com/fitcoach-core/server/internal/agent/model"
	"github.com/fitcoach-core/server/internal/agent/orchestrator"
	"github.com/fitcoach-core/server/internal/completion"
	errx "github.com/fitcoach-core/server/internal/core/error"
	"github.com/fitcoach-core/server/internal/http/middleware"
	"github.com/fitcoach-core/server/internal/metrics"
	"github.com/fitcoach-core/server/internal/onboarding"
	"github.com/fitcoach-core/server/internal/profile"
	"github.com/fitcoach-core/server/pkg/database"
)

const (
	testSecret = "test-secret"
	testUser   = "u1"
)

var steps = map[int]map[string]any{
	1: {"fitness_level": "intermediate", "limitations": []any{}},
	2: {"primary_goal": "muscle_gain"},
	3: {"equipment": []any{"barbell", "dumbbells"}, "injuries": []any{}, "limitations": []any{}, "location": "gym"},
	4: {"frequency": 4, "location": "gym", "duration_minutes": 60},
	5: {"days": []any{"Monday", "Wednesday", "Friday", "Saturday"}, "times": []any{"07:00", "07:00", "18:00", "09:00"}},
	6: {"diet_type": "omnivore", "allergies": []any{}, "dislikes": []any{}},
	7: {"daily_calories": 2800, "protein_percentage": 30, "carbs_percentage": 45, "fats_percentage": 25, "meal_frequency": 4},
	8: {"meal_times": map[string]any{"breakfast": "08:00", "lunch": "13:00", "snack": "16:00", "dinner": "19:00"}},
	9: {"daily_water_target_ml": 3000, "reminder_frequency_minutes": 60, "supplement_interested": true, "current_supplements": []any{"creatine"}},
}

type server struct {
	engine *gin.Engine
	llm    *llmtest.Model
	token  string
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	cfg := database.Config{Driver: database.DriverSQLite, DSN: database.MemoryDSN(uuid.NewString())}
	db, err := cfg.New()
	require.NoError(t, err)
	require.NoError(t, onboarding.Migrate(db))
	require.NoError(t, profile.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	conv := model.ConversationConfig{TailTurns: 15}
	mm := conversations.NewMessagesManager(conv)
	m := metrics.New()
	store := onboarding.NewGormStore(db, nil)
	fake := llmtest.New()
	ext, err := extractor.New(ctx, llmtest.New().Respond(func(_ []*schema.Message, _ []*schema.ToolInfo) llmtest.Reply {
		return llmtest.Text("{}")
	}), "gemini-2.5-flash-lite", mm, m)
	require.NoError(t, err)

	orch, err := orchestrator.New(orchestrator.Config{
		Store: store,
		Agents: agents.NewFactory(agents.Deps{
			ChatModel:    fake,
			ModelName:    "gemini-2.5-flash",
			Store:        store,
			Messages:     mm,
			Metrics:      m,
			MaxToolCalls: agents.DefaultMaxToolCalls,
		}),
		Extractor:    ext,
		Metrics:      m,
		Conversation: conv,
	})
	require.NoError(t, err)

	engine := NewRouter(RouterConfig{
		DB:           db,
		Store:        store,
		Orchestrator: orch,
		Completion:   completion.New(db, store, profile.NewMaterializer(db), m),
		Metrics:      m,
		JWTSecret:    testSecret,
	})
	token, err := middleware.IssueToken(testSecret, testUser, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)
	return &server{engine: engine, llm: fake, token: token}
}

func (s *server) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *server) saveSteps(t *testing.T, upTo int) {
	t.Helper()
	for n := 1; n <= upTo; n++ {
		w := s.do(t, http.MethodPost, "/api/v1/onboarding/step", gin.H{"step": n, "data": steps[n]})
		require.Equal(t, http.StatusOK, w.Code, "step %d: %s", n, w.Body.String())
	}
}

func TestAuthRequired(t *testing.T) {
	s := newServer(t)
	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"bad signature", "Bearer " + mustToken(t, "other-secret")},
		{"garbage", "Bearer not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/onboarding/progress", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.engine.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "UNAUTHORIZED", decode(t, w)["error_code"])
		})
	}
}

func mustToken(t *testing.T, secret string) string {
	t.Helper()
	tok, err := middleware.IssueToken(secret, testUser, jwt.RegisteredClaims{})
	require.NoError(t, err)
	return tok
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStartIsIdempotent(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodPost, "/api/v1/onboarding/start", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, testUser, body["user_id"])
	assert.Equal(t, float64(0), body["current_state"])
	assert.Equal(t, false, body["is_complete"])

	w = s.do(t, http.MethodPost, "/api/v1/onboarding/start", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProgressWithoutStart(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodGet, "/api/v1/onboarding/progress", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	assert.Equal(t, errx.CodeNotFound, decode(t, w)["error_code"])
}

func TestStepEndpoint(t *testing.T) {
	s := newServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/onboarding/start", nil).Code)

	w := s.do(t, http.MethodPost, "/api/v1/onboarding/step", gin.H{"step": 1, "data": steps[1]})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["step_complete"])
	assert.Equal(t, float64(2), body["current_state"])

	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"out of range", gin.H{"step": 12, "data": gin.H{}}, "step"},
		{"ahead of state", gin.H{"step": 5, "data": steps[5]}, "step"},
		{"bad level", gin.H{"step": 1, "data": gin.H{"fitness_level": "elite"}}, "fitness_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/v1/onboarding/step", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			body := decode(t, w)
			assert.Equal(t, errx.CodeValidation, body["error_code"])
			assert.Equal(t, tt.field, body["field"])
		})
	}

	w = s.do(t, http.MethodGet, "/api/v1/onboarding/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{float64(1)}, decode(t, w)["completed_states"])
}

func TestOnboardingChatTurn(t *testing.T) {
	s := newServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/onboarding/start", nil).Code)
	s.llm.Push(llmtest.Text("Welcome! How active are you right now?"))

	w := s.do(t, http.MethodPost, "/api/v1/chat/onboarding", gin.H{"message": "Hi"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Welcome! How active are you right now?", body["message"])
	assert.Equal(t, string(model.KindFitnessAssessment), body["agent_type"])
	assert.Equal(t, float64(0), body["initial_state"])
	assert.Equal(t, float64(1), body["current_state"])
	assert.Equal(t, true, body["state_updated"])
	assert.Equal(t, orchestrator.ActionProceed, body["next_action"])
	assert.Equal(t, []any{}, body["tools_used"])

	t.Run("stale client state", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/chat/onboarding", gin.H{"message": "next"}, "X-Current-State", "3")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, errx.CodeStateMismatch, decode(t, w)["error_code"])
	})

	t.Run("bad state header", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/chat/onboarding", gin.H{"message": "next"}, "X-Current-State", "three")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "current_state", decode(t, w)["field"])
	})

	t.Run("empty message", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/onboarding/chat", gin.H{"message": "   "})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "message", decode(t, w)["field"])
	})

	t.Run("general chat before completion", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/chat", gin.H{"message": "hello"})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, errx.CodeOnboardingRequired, decode(t, w)["error_code"])
	})

	t.Run("current agent", func(t *testing.T) {
		w := s.do(t, http.MethodGet, "/api/v1/onboarding/current-agent", nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, string(model.KindFitnessAssessment), body["agent_type"])
		assert.Equal(t, float64(1), body["current_state"])
	})
}

func TestLegacyChatShape(t *testing.T) {
	s := newServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/onboarding/start", nil).Code)
	s.llm.Push(
		llmtest.Call(agents.ToolSaveFitnessAssessment, steps[1]),
		llmtest.Text("Got it. What is your main goal?"),
	)

	w := s.do(t, http.MethodPost, "/api/v1/onboarding/chat", gin.H{"message": "I'm intermediate, no injuries"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, float64(2), body["current_step"])
	assert.Equal(t, true, body["step_complete"])
	assert.Equal(t, []any{agents.ToolSaveFitnessAssessment}, body["tools_used"])
	assert.NotContains(t, body, "state_updated")
}

func TestCompleteFlow(t *testing.T) {
	s := newServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/onboarding/start", nil).Code)

	w := s.do(t, http.MethodPost, "/api/v1/onboarding/complete", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, errx.CodeOnboardingIncomplete, decode(t, w)["error_code"])

	s.saveSteps(t, onboarding.TotalStates)
	w = s.do(t, http.MethodGet, "/api/v1/onboarding/progress", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["can_complete"])

	w = s.do(t, http.MethodPost, "/api/v1/onboarding/complete", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["onboarding_complete"])
	assert.Equal(t, "intermediate", body["fitness_level"])

	w = s.do(t, http.MethodGet, "/api/v1/onboarding/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	state := decode(t, w)
	assert.Equal(t, true, state["is_complete"])
	assert.Equal(t, model.CurrentAgentGeneral, state["current_agent"])

	w = s.do(t, http.MethodPost, "/api/v1/onboarding/complete", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	body = decode(t, w)
	assert.Equal(t, errx.CodeAlreadyCompleted, body["error_code"])
	assert.Contains(t, body["message"], "already")

	t.Run("general chat unlocked", func(t *testing.T) {
		s.llm.Push(llmtest.Text("Happy to help with anything."))
		w := s.do(t, http.MethodPost, "/api/v1/chat", gin.H{"message": "hey"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, string(model.KindGeneral), decode(t, w)["agent_type"])
	})

	t.Run("onboarding chat closed", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/chat/onboarding", gin.H{"message": "hey"})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, errx.CodeAlreadyCompleted, decode(t, w)["error_code"])
	})
}

func TestCompleteWithoutHydration(t *testing.T) {
	s := newServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/onboarding/start", nil).Code)
	s.saveSteps(t, 8)

	w := s.do(t, http.MethodPost, "/api/v1/onboarding/complete", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Contains(t, decode(t, w)["message"], "incomplete")

	w = s.do(t, http.MethodGet, "/api/v1/onboarding/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["is_complete"])
}

func TestStepRejectsBadMacros(t *testing.T) {
	s := newServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/onboarding/start", nil).Code)
	s.saveSteps(t, 6)
	before := decode(t, s.do(t, http.MethodGet, "/api/v1/onboarding/state", nil))

	w := s.do(t, http.MethodPost, "/api/v1/onboarding/step", gin.H{"step": 7, "data": gin.H{
		"daily_calories": 2800, "protein_percentage": 30, "carbs_percentage": 40, "fats_percentage": 40, "meal_frequency": 4,
	}})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, errx.CodeValidation, body["error_code"])
	assert.Contains(t, body["field"], "macros")

	after := decode(t, s.do(t, http.MethodGet, "/api/v1/onboarding/state", nil))
	assert.Equal(t, before["updated_at"], after["updated_at"])
	assert.Equal(t, before["current_state"], after["current_state"])
}

func TestStreamEndpoint(t *testing.T) {
	s := newServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/onboarding/start", nil).Code)
	s.llm.Push(llmtest.Text("Hello there friend"))

	w := s.do(t, http.MethodPost, "/api/v1/chat/stream", gin.H{"message": "Hi"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	var chunks []string
	var done map[string]any
	for _, line := range strings.Split(w.Body.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev), line)
		if c, ok := ev["chunk"].(string); ok {
			chunks = append(chunks, c)
		}
		if ev["done"] == true {
			done = ev
		}
	}
	assert.Equal(t, "Hello there friend", strings.Join(chunks, ""))
	require.NotNil(t, done)
	assert.Equal(t, string(model.KindFitnessAssessment), done["agent_type"])

	t.Run("gate errors are plain json", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/v1/chat/stream", gin.H{"message": "Hi", "agent_type": "general"})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, errx.CodeAgentNotAvailable, decode(t, w)["error_code"])
	})
}

func TestVoiceSession(t *testing.T) {
	s := newServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/onboarding/start", nil).Code)
	s.saveSteps(t, 1)
	s.llm.Push(llmtest.Text("ok"))

	w := s.do(t, http.MethodPost, "/api/v1/chat/voice/warmup", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, string(model.KindFitnessAssessment), decode(t, w)["agent_type"])

	s.llm.Push(llmtest.Text("What is your **main** goal?"))
	w = s.do(t, http.MethodPost, "/api/v1/chat/onboarding", gin.H{"message": "hey", "voice_mode": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "What is your main goal?", decode(t, w)["message"])

	w = s.do(t, http.MethodDelete, "/api/v1/chat/voice/session", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
