// Package conversations turns the persisted transcript into model input.
package conversations

import (
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/fitcoach-core/server/internal/agent/model"
)

const defaultTailTurns = 15

type MessagesManager struct {
	tailTurns int
}

func NewMessagesManager(config model.ConversationConfig) *MessagesManager {
	n := config.TailTurns
	if n <= 0 {
		n = defaultTailTurns
	}
	return &MessagesManager{tailTurns: n}
}

// TailTurns is the number of user/assistant turns handed to a model.
func (cm *MessagesManager) TailTurns() int {
	return cm.tailTurns
}

// BuildAgentMessages lays out [system, ...transcript tail, user].
func (cm *MessagesManager) BuildAgentMessages(systemPrompt string, history []model.Message, query string) []*schema.Message {
	tail := model.TrimTail(history, cm.tailTurns)
	messages := make([]*schema.Message, 0, len(tail)+2)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	for _, m := range tail {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		messages = append(messages, m.ToSchema())
	}
	return append(messages, schema.UserMessage(query))
}

// BuildExtractorContext renders the transcript tail and the current message
// for the information extractor.
func (cm *MessagesManager) BuildExtractorContext(history []model.Message, query string) string {
	var b strings.Builder
	b.WriteString("<conversation_context>\n")
	for _, m := range model.TrimTail(history, cm.tailTurns) {
		if m.Content == "" {
			continue
		}
		switch m.Role {
		case model.RoleUser:
			b.WriteString("UserMessage(" + m.Content + ")\n")
		case model.RoleAssistant:
			b.WriteString("AssistantMessage(" + m.Content + ")\n")
		}
	}
	b.WriteString("</conversation_context>")
	if query != "" {
		b.WriteString("\n<current_message>\n")
		b.WriteString("UserMessage(" + query + ")\n")
		b.WriteString("</current_message>")
	}
	return b.String()
}
