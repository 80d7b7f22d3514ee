package model

import (
	"time"

	"github.com/cloudwego/eino/schema"
)

// Transcript roles. Only user and assistant turns are persisted.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one persisted transcript record.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	AgentType string    `json:"agent_type,omitempty"`
}

// AgentVisit records the span during which an agent owned the dialog.
type AgentVisit struct {
	State     int        `json:"state"`
	Agent     string     `json:"agent"`
	EnteredAt time.Time  `json:"entered_at"`
	ExitedAt  *time.Time `json:"exited_at,omitempty"`
}

// NewUserMessage stamps a user transcript record.
func NewUserMessage(content string, at time.Time) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: at.UTC()}
}

// NewAssistantMessage stamps an assistant transcript record.
func NewAssistantMessage(content string, agent AgentKind, at time.Time) Message {
	return Message{Role: RoleAssistant, Content: content, Timestamp: at.UTC(), AgentType: agent.String()}
}

// ToSchema converts a transcript record into an eino message.
func (m Message) ToSchema() *schema.Message {
	if m.Role == RoleAssistant {
		return schema.AssistantMessage(m.Content, nil)
	}
	return schema.UserMessage(m.Content)
}
