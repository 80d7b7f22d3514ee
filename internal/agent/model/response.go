package model

// AgentResponse is the result of one text turn.
type AgentResponse struct {
	Content   string         `json:"content"`
	AgentType AgentKind      `json:"agent_type"`
	ToolsUsed []string       `json:"tools_used"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TurnState is per-turn bookkeeping of the tool loop.
type TurnState struct {
	UserID               string
	ToolCallCount        int
	ToolCallLimitReached bool
	// ToolCallIDSeq synthesizes tool_call ids when the provider omits them.
	ToolCallIDSeq int
	TotalCostUSD  float64
	ToolsUsed     []string
}
