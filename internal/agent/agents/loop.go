package agents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/fitcoach-core/server/internal/agent/model"
	"github.com/fitcoach-core/server/internal/agent/observers"
	errx "github.com/fitcoach-core/server/internal/core/error"
	logx "github.com/fitcoach-core/server/pkg/logger"
)

// fallbackReply is used when the model ends a turn without any text.
const fallbackReply = "Sorry, I couldn't put together a reply just now. Could you say that again?"

// errStreamClosed stops the loop once the stream reader has gone away.
var errStreamClosed = errors.New("agents: stream closed by reader")

// emitFunc forwards a content chunk and reports whether the reader is still
// listening.
type emitFunc func(chunk string) bool

func (b *Base) ProcessText(ctx context.Context, text string) (*model.AgentResponse, error) {
	return b.run(ctx, text, nil)
}

func (b *Base) StreamResponse(ctx context.Context, text string) (*schema.StreamReader[string], error) {
	sr, sw := schema.Pipe[string](16)
	go func() {
		defer sw.Close()
		defer func() {
			if r := recover(); r != nil {
				logx.Error().Str("agent", b.kind.String()).Interface("panic", r).Msg("agent stream panicked")
				sw.Send("", errx.New(fmt.Errorf("agent stream panic: %v", r), http.StatusInternalServerError, errx.SystemErrorMessage))
			}
		}()
		_, err := b.run(ctx, text, func(chunk string) bool { return !sw.Send(chunk, nil) })
		if err != nil && !errors.Is(err, errStreamClosed) {
			sw.Send("", err)
		}
	}()
	return sr, nil
}

func (b *Base) modelContext(ctx context.Context) context.Context {
	return callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      b.kind.String(),
		Type:      "ChatModel",
		Component: components.ComponentOfChatModel,
	}, observers.NewAllCallbacks())
}

// run is the tool loop. Every model reply with tool calls is executed and
// its results appended until the model answers in plain text or the tool
// budget is spent, after which the model is asked to wrap up without tools.
func (b *Base) run(ctx context.Context, text string, emit emitFunc) (*model.AgentResponse, error) {
	b.beginTurn(text)
	system, err := b.SystemPrompt(ctx)
	if err != nil {
		return nil, err
	}
	msgs := b.deps.Messages.BuildAgentMessages(system, b.agentContext().ConversationHistory, text)
	state := &model.TurnState{UserID: b.userID()}
	max := normalizeMaxToolCalls(b.deps.MaxToolCalls)
	ctx = b.modelContext(ctx)

	for {
		cm, in := b.bound, msgs
		if checkAndMarkToolLimit(state, max) || state.ToolCallLimitReached {
			logx.Warn().
				Str("agent", b.kind.String()).
				Str("user_id", state.UserID).
				Int("tool_call_count", state.ToolCallCount).
				Int("max_tool_calls", max).
				Msg("tool call limit reached, asking model to wrap up")
			cm = b.deps.ChatModel
			in = append(msgs[:len(msgs):len(msgs)], limitNotice(max))
		}

		out, err := b.call(ctx, cm, in, emit)
		if err != nil {
			return nil, err
		}
		b.account(out, state)

		if len(out.ToolCalls) == 0 || state.ToolCallLimitReached || b.toolsNode == nil {
			return b.finish(out, state, emit)
		}
		if !reserveToolCalls(state, len(out.ToolCalls), max) {
			continue
		}

		logx.Debug().Str("agent", b.kind.String()).Int("tool_count", len(out.ToolCalls)).Msg("Calling tools")
		results, err := b.toolsNode.Invoke(ctx, out)
		if err != nil {
			return nil, errx.New(fmt.Errorf("tool execution failed: %w", err), http.StatusInternalServerError, errx.SystemErrorMessage)
		}
		for _, tc := range out.ToolCalls {
			state.ToolsUsed = append(state.ToolsUsed, tc.Function.Name)
		}
		msgs = append(msgs, out)
		msgs = append(msgs, results...)
	}
}

// call performs one model round. In streaming mode content chunks are
// forwarded as they arrive and the full message is rebuilt afterwards.
func (b *Base) call(ctx context.Context, cm einomodel.BaseChatModel, in []*schema.Message, emit emitFunc) (*schema.Message, error) {
	if emit == nil {
		out, err := cm.Generate(ctx, in)
		if err != nil {
			b.deps.Metrics.ObserveLLMCall("agent", 0, err)
			return nil, errx.WrapLLM(err)
		}
		return out, nil
	}

	sr, err := cm.Stream(ctx, in)
	if err != nil {
		b.deps.Metrics.ObserveLLMCall("agent", 0, err)
		return nil, errx.WrapLLM(err)
	}
	defer sr.Close()

	var chunks []*schema.Message
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			b.deps.Metrics.ObserveLLMCall("agent", 0, err)
			return nil, errx.WrapLLM(err)
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		if chunk.Content != "" && !emit(chunk.Content) {
			return nil, errStreamClosed
		}
	}
	if len(chunks) == 0 {
		return schema.AssistantMessage("", nil), nil
	}
	out, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, errx.WrapLLM(err)
	}
	return out, nil
}

// account records usage cost and fills missing tool call ids.
func (b *Base) account(out *schema.Message, state *model.TurnState) {
	var total float64
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		usage := out.ResponseMeta.Usage
		inC, outC, totalC := model.ComputeCost(usage, model.ResolvePricing(b.deps.ModelName))
		total = totalC
		state.TotalCostUSD += totalC
		logx.Debug().
			Str("agent", b.kind.String()).
			Str("model", b.deps.ModelName).
			Int("prompt_tokens", usage.PromptTokens).
			Int("completion_tokens", usage.CompletionTokens).
			Int("total_tokens", usage.TotalTokens).
			Float64("input_cost_usd", inC).
			Float64("output_cost_usd", outC).
			Float64("total_cost_usd", totalC).
			Msg("LLM usage")
	}
	b.deps.Metrics.ObserveLLMCall("agent", total, nil)
	normalizeToolCallIDs(out, state)
}

func (b *Base) finish(out *schema.Message, state *model.TurnState, emit emitFunc) (*model.AgentResponse, error) {
	content := strings.TrimSpace(out.Content)
	if content == "" {
		content = fallbackReply
		if emit != nil && !emit(content) {
			return nil, errStreamClosed
		}
	}
	tools := state.ToolsUsed
	if tools == nil {
		tools = []string{}
	}
	return &model.AgentResponse{
		Content:   content,
		AgentType: b.kind,
		ToolsUsed: tools,
		Metadata: map[string]any{
			"usage_cost_total_usd":    state.TotalCostUSD,
			"tool_call_count":         state.ToolCallCount,
			"tool_call_limit_reached": state.ToolCallLimitReached,
		},
	}, nil
}
