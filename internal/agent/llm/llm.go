// Package llm builds the Gemini chat models shared by agents and the extractor.
package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/fitcoach-core/server/internal/agent/model"
	logx "github.com/fitcoach-core/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey    string
	BaseURL   string
	Agent     *model.AgentModelConfig
	Extractor *model.ExtractorModelConfig
}

// ChatModels holds the agent and extractor chat models. Both are safe to
// share across requests; agents bind tools through WithTools, which returns
// a new instance.
type ChatModels struct {
	Agent              einomodel.ToolCallingChatModel
	Extractor          einomodel.ToolCallingChatModel
	AgentModelName     string
	ExtractorModelName string
}

// NewChatModels creates both chat models on one Gemini client.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.Agent == nil || config.Extractor == nil {
		return nil, fmt.Errorf("chat model config is incomplete")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	agentModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Agent.Model,
		Temperature: &config.Agent.Temperature,
		MaxTokens:   &config.Agent.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(1024)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating agent model")
		return nil, fmt.Errorf("error creating agent model: %w", err)
	}

	// Extraction is a single JSON answer; thinking only adds latency.
	extractorModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.Extractor.Model,
		Temperature: &config.Extractor.Temperature,
		MaxTokens:   &config.Extractor.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(0)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating extractor model")
		return nil, fmt.Errorf("error creating extractor model: %w", err)
	}

	logx.Debug().Str("agent_model", config.Agent.Model).Str("extractor_model", config.Extractor.Model).Msg("chat models ready")
	return &ChatModels{
		Agent:              agentModel,
		Extractor:          extractorModel,
		AgentModelName:     config.Agent.Model,
		ExtractorModelName: config.Extractor.Model,
	}, nil
}
