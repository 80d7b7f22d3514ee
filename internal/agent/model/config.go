package model

import "time"

type ConversationConfig struct {
	// TailTurns bounds, in user/assistant turns, the transcript given to agents
	// and the extractor.
	TailTurns         int           `envconfig:"CONVERSATION_TAIL_TURNS" default:"15"`
	StreamIdleTimeout time.Duration `envconfig:"CONVERSATION_STREAM_IDLE_TIMEOUT" default:"60s"`
	TurnLockTTL       time.Duration `envconfig:"CONVERSATION_TURN_LOCK_TTL" default:"90s"`
	VoiceAgentTTL     time.Duration `envconfig:"CONVERSATION_VOICE_AGENT_TTL" default:"30m"`
	Tools             struct {
		MaxCalls int `envconfig:"CONVERSATION_TOOL_MAX_CALLS" default:"10"`
	}
}

type AgentModelConfig struct {
	Model       string  `envconfig:"AGENT_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"AGENT_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"AGENT_TEMPERATURE" default:"0.4"`
}

type ExtractorModelConfig struct {
	Model       string  `envconfig:"EXTRACTOR_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"EXTRACTOR_MAX_TOKENS" default:"1000"`
	Temperature float32 `envconfig:"EXTRACTOR_TEMPERATURE" default:"0.0"`
}
