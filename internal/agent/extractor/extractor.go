// Package extractor fills onboarding fields from the conversation before an
// agent speaks, so agents never ask for something the user already said.
package extractor

import (
	"context"
	"fmt"
	"sort"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/fitcoach-core/server/internal/agent/conversations"
	agentmodel "github.com/fitcoach-core/server/internal/agent/model"
	"github.com/fitcoach-core/server/internal/agent/observers"
	"github.com/fitcoach-core/server/internal/agent/prompts"
	errx "github.com/fitcoach-core/server/internal/core/error"
	"github.com/fitcoach-core/server/internal/metrics"
	logx "github.com/fitcoach-core/server/pkg/logger"
)

const component = "extractor"

// Request asks for the given fields. Fields already present in Known are
// never sent to the model and always come back null.
type Request struct {
	History []agentmodel.Message
	Query   string
	Fields  map[string]string
	Known   agentmodel.Section
}

// Result holds every requested field; unresolved ones are nil.
type Result struct {
	Fields        map[string]any
	ParsingErrors []string
	CostUSD       float64
}

// Values returns the non-null entries.
func (r *Result) Values() map[string]any {
	out := map[string]any{}
	if r == nil {
		return out
	}
	for k, v := range r.Fields {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

type chainOutput struct {
	content string
	costUSD float64
}

type Extractor struct {
	runnable  compose.Runnable[map[string]any, *chainOutput]
	mm        *conversations.MessagesManager
	modelName string
	metrics   *metrics.Metrics
}

// New compiles the template, model and parser chain.
func New(ctx context.Context, cm model.BaseChatModel, modelName string, mm *conversations.MessagesManager, m *metrics.Metrics) (*Extractor, error) {
	if cm == nil || mm == nil {
		return nil, fmt.Errorf("extractor needs a chat model and a messages manager")
	}
	chain := compose.NewChain[map[string]any, *chainOutput]()
	chain.
		AppendChatTemplate(prompts.ExtractorTemplate()).
		AppendChatModel(cm).
		AppendLambda(compose.InvokableLambda(func(ctx context.Context, msg *schema.Message) (*chainOutput, error) {
			out := &chainOutput{content: msg.Content}
			if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
				_, _, out.costUSD = agentmodel.ComputeCost(msg.ResponseMeta.Usage, agentmodel.ResolvePricing(modelName))
			}
			return out, nil
		}))
	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile extractor chain: %w", err)
	}
	return &Extractor{runnable: runnable, mm: mm, modelName: modelName, metrics: m}, nil
}

// Extract resolves the pending fields of req.
func (e *Extractor) Extract(ctx context.Context, req Request) (*Result, error) {
	res := &Result{Fields: make(map[string]any, len(req.Fields))}
	pending := make([]string, 0, len(req.Fields))
	for name := range req.Fields {
		res.Fields[name] = nil
		if !req.Known.Has(name) {
			pending = append(pending, name)
		}
	}
	if len(pending) == 0 {
		return res, nil
	}
	sort.Strings(pending)

	fields := make([]prompts.Field, 0, len(pending))
	for _, name := range pending {
		fields = append(fields, prompts.Field{Name: name, Description: req.Fields[name]})
	}
	vars := map[string]any{
		"Fields":  fields,
		"Context": e.mm.BuildExtractorContext(req.History, req.Query),
	}

	out, err := e.runnable.Invoke(ctx, vars, compose.WithCallbacks(observers.NewAllCallbacks()))
	var cost float64
	if out != nil {
		cost = out.costUSD
	}
	e.metrics.ObserveLLMCall(component, cost, err)
	if err != nil {
		logx.Warn().Err(err).Strs("fields", pending).Msg("extraction failed")
		return nil, errx.WrapLLM(err)
	}

	parsed, err := ParseFields(out.content, pending)
	if err != nil {
		logx.Warn().Err(err).Strs("fields", pending).Msg("extractor output unreadable")
		return nil, errx.WrapLLM(err)
	}
	for _, name := range pending {
		res.Fields[name] = parsed.Fields[name]
	}
	res.ParsingErrors = parsed.ParsingErrors
	res.CostUSD = cost
	logx.Debug().Strs("fields", pending).Int("resolved", len(res.Values())).Msg("extraction finished")
	return res, nil
}
