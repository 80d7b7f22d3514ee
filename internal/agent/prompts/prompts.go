// Package prompts renders the system prompts of agents and the extractor
// from embedded Go templates.
package prompts

import (
	"context"
	"embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/fitcoach-core/server/internal/agent/model"
)

// VoiceMaxWords bounds a voice-mode reply.
const VoiceMaxWords = 75

//go:embed template/*.txt
var templates embed.FS

var (
	sharedRules     = mustLoad("shared_rules.txt")
	voiceRules      = mustLoad("voice.txt")
	extractorPrompt = mustLoad("extractor.txt")

	agentPrompts = map[model.AgentKind]string{
		model.KindFitnessAssessment: mustLoad("fitness_assessment.txt"),
		model.KindWorkoutPlanning:   mustLoad("workout_planning.txt"),
		model.KindDietPlanning:      mustLoad("diet_planning.txt"),
		model.KindScheduling:        mustLoad("scheduling.txt"),
		model.KindGeneral:           mustLoad("general.txt"),
		model.KindTracker:           mustLoad("tracker.txt"),
	}
)

func mustLoad(name string) string {
	b, err := templates.ReadFile("template/" + name)
	if err != nil {
		panic(fmt.Sprintf("prompts: missing template %s: %v", name, err))
	}
	return string(b)
}

// Field is one entry of the extractor's output schema.
type Field struct {
	Name        string
	Description string
}

// render formats a single system message through the eino prompt component
// so prompt callbacks fire.
func render(ctx context.Context, name, tpl string, vars map[string]any) (string, error) {
	msgs, err := prompt.FromMessages(schema.GoTemplate, schema.SystemMessage(tpl)).Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s prompt render: empty result", name)
	}
	return msgs[0].Content, nil
}

// RenderAgentSystem renders the system prompt of kind. vars carries the
// agent's placeholders and must include TotalStates; SharedRules is filled
// in here.
func RenderAgentSystem(ctx context.Context, kind model.AgentKind, vars map[string]any) (string, error) {
	tpl, ok := agentPrompts[kind]
	if !ok {
		return "", fmt.Errorf("no prompt for agent %q", kind)
	}
	rules, err := render(ctx, "shared rules", sharedRules, vars)
	if err != nil {
		return "", err
	}
	all := make(map[string]any, len(vars)+1)
	for k, v := range vars {
		all[k] = v
	}
	all["SharedRules"] = rules
	return render(ctx, kind.String(), tpl, all)
}

// RenderVoiceSystem wraps the agent prompt with the voice-mode rules.
func RenderVoiceSystem(ctx context.Context, kind model.AgentKind, vars map[string]any) (string, error) {
	agentPrompt, err := RenderAgentSystem(ctx, kind, vars)
	if err != nil {
		return "", err
	}
	return render(ctx, "voice", voiceRules, map[string]any{
		"AgentPrompt": agentPrompt,
		"MaxWords":    VoiceMaxWords,
	})
}

// ExtractorTemplate is the chat template of the information extractor. It
// expects Fields ([]Field) and Context (the rendered transcript).
func ExtractorTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage(extractorPrompt),
		schema.UserMessage("{{.Context}}"),
	)
}
