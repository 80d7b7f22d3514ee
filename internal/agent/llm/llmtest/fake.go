// Package llmtest provides a scripted chat model for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ErrExhausted is returned once the script is used up and no responder is set.
var ErrExhausted = errors.New("llmtest: script exhausted")

// Reply scripts one model answer.
type Reply struct {
	Content   string
	ToolCalls []schema.ToolCall
	Usage     *schema.TokenUsage
	Err       error
}

// Text is a terminal assistant reply.
func Text(s string) Reply {
	return Reply{Content: s}
}

// Call is a reply that invokes one tool. The ID is left empty on purpose so
// callers exercise tool-call id normalization.
func Call(name string, args any) Reply {
	b, _ := json.Marshal(args)
	return Reply{ToolCalls: []schema.ToolCall{{
		Type:     "function",
		Function: schema.FunctionCall{Name: name, Arguments: string(b)},
	}}}
}

// Failure is a reply that makes the call fail.
func Failure(err error) Reply {
	return Reply{Err: err}
}

// Responder produces a reply from the request when the script is empty.
type Responder func(in []*schema.Message, tools []*schema.ToolInfo) Reply

// Request records one call made against the model.
type Request struct {
	Messages []*schema.Message
	Tools    []string
	Stream   bool
}

type script struct {
	mu        sync.Mutex
	replies   []Reply
	responder Responder
	requests  []Request
}

// Model implements einomodel.ToolCallingChatModel from a script.
type Model struct {
	s     *script
	tools []*schema.ToolInfo
}

var _ einomodel.ToolCallingChatModel = (*Model)(nil)

// New returns a model that answers with replies in order.
func New(replies ...Reply) *Model {
	return &Model{s: &script{replies: replies}}
}

// Respond sets the fallback used after the scripted replies run out.
func (m *Model) Respond(fn Responder) *Model {
	m.s.mu.Lock()
	m.s.responder = fn
	m.s.mu.Unlock()
	return m
}

// Push appends replies to the script.
func (m *Model) Push(replies ...Reply) {
	m.s.mu.Lock()
	m.s.replies = append(m.s.replies, replies...)
	m.s.mu.Unlock()
}

// Requests returns a copy of every call seen so far, across tool bindings.
func (m *Model) Requests() []Request {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return append([]Request(nil), m.s.requests...)
}

// Remaining reports how many scripted replies are left.
func (m *Model) Remaining() int {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return len(m.s.replies)
}

func (m *Model) next(in []*schema.Message, stream bool) (Reply, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	names := make([]string, 0, len(m.tools))
	for _, t := range m.tools {
		names = append(names, t.Name)
	}
	m.s.requests = append(m.s.requests, Request{Messages: append([]*schema.Message(nil), in...), Tools: names, Stream: stream})
	if len(m.s.replies) > 0 {
		r := m.s.replies[0]
		m.s.replies = m.s.replies[1:]
		return r, nil
	}
	if m.s.responder != nil {
		return m.s.responder(in, m.tools), nil
	}
	return Reply{}, ErrExhausted
}

func (r Reply) message() *schema.Message {
	msg := schema.AssistantMessage(r.Content, append([]schema.ToolCall(nil), r.ToolCalls...))
	if r.Usage != nil {
		msg.ResponseMeta = &schema.ResponseMeta{Usage: r.Usage}
	}
	return msg
}

func (m *Model) Generate(ctx context.Context, in []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := m.next(in, false)
	if err != nil {
		return nil, err
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return r.message(), nil
}

// Stream splits the content into word chunks. Tool calls and usage ride on
// the last chunk.
func (m *Model) Stream(ctx context.Context, in []*schema.Message, _ ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := m.next(in, true)
	if err != nil {
		return nil, err
	}
	if r.Err != nil {
		return nil, r.Err
	}
	var chunks []*schema.Message
	for _, word := range splitWords(r.Content) {
		chunks = append(chunks, schema.AssistantMessage(word, nil))
	}
	last := schema.AssistantMessage("", append([]schema.ToolCall(nil), r.ToolCalls...))
	if r.Usage != nil {
		last.ResponseMeta = &schema.ResponseMeta{Usage: r.Usage}
	}
	chunks = append(chunks, last)
	return schema.StreamReaderFromArray(chunks), nil
}

func (m *Model) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return &Model{s: m.s, tools: append([]*schema.ToolInfo(nil), tools...)}, nil
}

// splitWords keeps the separating spaces so the chunks join back to s.
func splitWords(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for len(s) > 0 {
		i := strings.IndexByte(s[1:], ' ')
		if i < 0 {
			out = append(out, s)
			break
		}
		out = append(out, s[:i+1])
		s = s[i+1:]
	}
	return out
}
