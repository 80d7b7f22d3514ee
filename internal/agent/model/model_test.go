package model

import (
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

func TestParseAgentKind(t *testing.T) {
	k, ok := ParseAgentKind("workout_planning")
	assert.True(t, ok)
	assert.True(t, k.IsSpecialist())

	k, ok = ParseAgentKind(CurrentAgentGeneral)
	assert.True(t, ok)
	assert.Equal(t, KindGeneral, k)
	assert.False(t, k.IsSpecialist())

	_, ok = ParseAgentKind("sommelier")
	assert.False(t, ok)
}

func TestTrimTailCountsTurns(t *testing.T) {
	now := time.Now()
	msgs := []Message{
		NewUserMessage("a", now),
		NewAssistantMessage("b", KindScheduling, now),
		NewUserMessage("c", now),
		NewAssistantMessage("d", KindScheduling, now),
	}
	tail := TrimTail(msgs, 1)
	assert.Len(t, tail, 2)
	assert.Equal(t, "c", tail[0].Content)
	tail[0].Content = "changed"
	assert.Equal(t, "c", msgs[2].Content)

	assert.Len(t, TrimTail(msgs, 2), 4)
	assert.Len(t, TrimTail(msgs, 0), 4)
	assert.Len(t, TrimTail(msgs, 10), 4)

	// a leading assistant record without its user message is not a turn
	orphan := append([]Message{NewAssistantMessage("hi", KindScheduling, now)}, msgs...)
	assert.Len(t, TrimTail(orphan, 2), 4)
	assert.Len(t, TrimTail(orphan, 3), 5)
}

func TestSectionCopyIsIsolated(t *testing.T) {
	ac := &AgentContext{Sections: map[string]Section{"goal_setting": {"primary_goal": "fat_loss"}}}
	s := ac.Section("goal_setting")
	s["primary_goal"] = "muscle_gain"
	assert.Equal(t, "fat_loss", ac.Sections["goal_setting"].String("primary_goal"))
	assert.Nil(t, ac.Section("meal_plan"))
	assert.Equal(t, "{}", ac.SectionJSON("meal_plan"))
}

func TestComputeCost(t *testing.T) {
	in, out, total := ComputeCost(&schema.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 100_000}, ResolvePricing("gemini-2.5-flash"))
	assert.InDelta(t, 0.30, in, 1e-9)
	assert.InDelta(t, 0.25, out, 1e-9)
	assert.InDelta(t, 0.55, total, 1e-9)

	_, _, total = ComputeCost(nil, ResolvePricing("unknown"))
	assert.Zero(t, total)
}

func TestResolvePricing(t *testing.T) {
	tests := []struct {
		name string
		want Pricing
	}{
		{"gemini-2.5-flash", Pricing{InputPerM: 0.30, OutputPerM: 2.50}},
		{"gemini-2.5-flash-lite", Pricing{InputPerM: 0.10, OutputPerM: 0.40}},
		{"models/gemini-2.5-pro-preview-05-06", Pricing{InputPerM: 1.25, OutputPerM: 10.00}},
		{"gpt-4o", Pricing{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolvePricing(tt.name))
		})
	}
}

func TestMessageToSchema(t *testing.T) {
	assert.Equal(t, schema.User, NewUserMessage("hi", time.Now()).ToSchema().Role)
	assert.Equal(t, schema.Assistant, NewAssistantMessage("hey", KindGeneral, time.Now()).ToSchema().Role)
}
