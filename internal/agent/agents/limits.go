package agents

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/fitcoach-core/server/internal/agent/model"
)

const DefaultMaxToolCalls = 10

const toolLimitNotice = "SYSTEM NOTICE: You have reached the maximum tool call limit (%d). " +
	"Please synthesize a helpful response using the information you've already gathered. " +
	"Acknowledge any limitations in your response if you couldn't complete all necessary tool calls."

// normalizeMaxToolCalls returns a sane default when the provided value is invalid.
func normalizeMaxToolCalls(n int) int {
	if n <= 0 {
		return DefaultMaxToolCalls
	}
	return n
}

// checkAndMarkToolLimit marks the turn once the budget is spent. Returns true
// when marked now.
func checkAndMarkToolLimit(state *model.TurnState, max int) bool {
	max = normalizeMaxToolCalls(max)
	if !state.ToolCallLimitReached && state.ToolCallCount >= max {
		state.ToolCallLimitReached = true
		return true
	}
	return false
}

// reserveToolCalls books n calls against the budget. A batch that does not
// fit is refused whole and marks the turn.
func reserveToolCalls(state *model.TurnState, n, max int) bool {
	max = normalizeMaxToolCalls(max)
	if state.ToolCallCount+n > max {
		state.ToolCallLimitReached = true
		return false
	}
	state.ToolCallCount += n
	return true
}

// normalizeToolCallIDs fills ids some providers omit.
func normalizeToolCallIDs(msg *schema.Message, state *model.TurnState) {
	for i := range msg.ToolCalls {
		if strings.TrimSpace(msg.ToolCalls[i].ID) == "" {
			state.ToolCallIDSeq++
			msg.ToolCalls[i].ID = fmt.Sprintf("call_%d", state.ToolCallIDSeq)
		}
	}
}

func limitNotice(max int) *schema.Message {
	return schema.SystemMessage(fmt.Sprintf(toolLimitNotice, normalizeMaxToolCalls(max)))
}
