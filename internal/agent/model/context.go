package model

import (
	"encoding/json"
	"time"
)

// Section is the partial structured record one state has collected.
type Section map[string]any

// AgentContext is the read-only snapshot handed to an agent for one request.
// It is projected from the onboarding store at dispatch time and never
// mutated afterwards; tools write through the store instead.
type AgentContext struct {
	UserID              string             `json:"user_id"`
	CurrentState        int                `json:"current_state"`
	FitnessLevel        string             `json:"fitness_level,omitempty"`
	PrimaryGoal         string             `json:"primary_goal,omitempty"`
	EnergyLevel         *int               `json:"energy_level,omitempty"`
	CurrentWorkoutPlan  map[string]any     `json:"current_workout_plan,omitempty"`
	CurrentMealPlan     map[string]any     `json:"current_meal_plan,omitempty"`
	ConversationHistory []Message          `json:"conversation_history"`
	LoadedAt            time.Time          `json:"loaded_at"`
	Sections            map[string]Section `json:"agent_context"`
}

// Section returns a copy of the named section, or nil.
func (c *AgentContext) Section(name string) Section {
	if c == nil || c.Sections == nil {
		return nil
	}
	s, ok := c.Sections[name]
	if !ok {
		return nil
	}
	out := make(Section, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// SectionJSON renders a section for prompt injection.
func (c *AgentContext) SectionJSON(name string) string {
	s := c.Section(name)
	if len(s) == 0 {
		return "{}"
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Tail returns the transcript records of the n most recent turns.
func (c *AgentContext) Tail(n int) []Message {
	if c == nil {
		return nil
	}
	return TrimTail(c.ConversationHistory, n)
}

// TrimTail returns a copy of the last n turns. A turn starts at a user
// message; assistant records that precede the first kept user message are
// dropped.
func TrimTail(messages []Message, n int) []Message {
	start := 0
	if n > 0 {
		seen := 0
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Role != RoleUser {
				continue
			}
			seen++
			if seen == n {
				start = i
				break
			}
		}
	}
	out := make([]Message, len(messages)-start)
	copy(out, messages[start:])
	return out
}

// String returns the string value of key, or "".
func (s Section) String(key string) string {
	v, _ := s[key].(string)
	return v
}

// Has reports whether key is present with a non-nil value.
func (s Section) Has(key string) bool {
	v, ok := s[key]
	return ok && v != nil
}

// Bool returns the bool value of key, or false.
func (s Section) Bool(key string) bool {
	v, _ := s[key].(bool)
	return v
}
