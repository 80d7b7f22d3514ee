package agents

import (
	"context"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/fitcoach-core/server/internal/agent/model"
	"github.com/fitcoach-core/server/internal/agent/prompts"
	errx "github.com/fitcoach-core/server/internal/core/error"
	logx "github.com/fitcoach-core/server/pkg/logger"
)

// ProcessVoice answers one spoken turn. Voice mode never calls tools.
func (b *Base) ProcessVoice(ctx context.Context, text string) (string, error) {
	b.beginTurn(text)
	system, err := prompts.RenderVoiceSystem(ctx, b.kind, b.promptVars())
	if err != nil {
		return "", err
	}
	msgs := b.deps.Messages.BuildAgentMessages(system, b.agentContext().ConversationHistory, text)
	out, err := b.deps.ChatModel.Generate(b.modelContext(ctx), msgs)
	if err != nil {
		b.deps.Metrics.ObserveLLMCall("agent", 0, err)
		return "", errx.WrapLLM(err)
	}
	b.account(out, &model.TurnState{UserID: b.userID()})
	reply := VoiceText(out.Content, prompts.VoiceMaxWords)
	if reply == "" {
		reply = fallbackReply
	}
	return reply, nil
}

// WarmUp issues a one-token call so the first spoken turn does not pay the
// connection setup.
func (b *Base) WarmUp(ctx context.Context) error {
	_, err := b.deps.ChatModel.Generate(ctx, []*schema.Message{schema.UserMessage("ping")}, einomodel.WithMaxTokens(1))
	if err != nil {
		logx.Warn().Err(err).Str("agent", b.kind.String()).Msg("voice warm-up failed")
		return errx.WrapLLM(err)
	}
	return nil
}

var markdown = goldmark.New()

// VoiceText reduces a reply to plain speakable text of at most maxWords
// words.
func VoiceText(reply string, maxWords int) string {
	src := []byte(reply)
	doc := markdown.Parser().Parse(text.NewReader(src))
	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				sb.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.RawHTML, *ast.Image:
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			sb.Write(node.Label(src))
		case *ast.Text:
			sb.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(node.Value)
		}
		return ast.WalkContinue, nil
	})
	words := strings.Fields(sb.String())
	if maxWords > 0 && len(words) > maxWords {
		words = words[:maxWords]
	}
	return strings.Join(words, " ")
}
