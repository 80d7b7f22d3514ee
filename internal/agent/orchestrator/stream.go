package orchestrator

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fitcoach-core/server/internal/agent/model"
	errx "github.com/fitcoach-core/server/internal/core/error"
	logx "github.com/fitcoach-core/server/pkg/logger"
)

var errStreamIdle = errors.New("stream idle timeout")

// TurnStream delivers the chunks of one streamed turn. Chunks is closed when
// the turn ends; Result then reports the outcome. A failed or abandoned
// stream persists nothing.
type TurnStream struct {
	chunks chan string
	done   chan struct{}
	cancel context.CancelFunc
	resp   *Response
	err    error
}

func (s *TurnStream) Chunks() <-chan string {
	return s.chunks
}

// Result blocks until the turn has ended.
func (s *TurnStream) Result() (*Response, error) {
	<-s.done
	return s.resp, s.err
}

// Close abandons the turn, e.g. when the client disconnects.
func (s *TurnStream) Close() {
	s.cancel()
}

type frame struct {
	text string
	err  error
}

// DispatchStream starts a turn whose reply is delivered chunk by chunk. The
// turn fails when no chunk arrives within the configured idle timeout.
func (o *Orchestrator) DispatchStream(ctx context.Context, req Request) (*TurnStream, error) {
	ctx, cancel := context.WithCancel(ctx)
	t, err := o.begin(ctx, req)
	if err != nil {
		cancel()
		return nil, err
	}

	var next func() (string, error)
	stop := func() {}
	if req.VoiceMode {
		text, err := t.agent.ProcessVoice(ctx, t.req.Query)
		if err != nil {
			o.metrics.ObserveTurn(t.kind.String(), modeVoice, t.started, err)
			t.release(ctx)
			cancel()
			return nil, err
		}
		sent := false
		next = func() (string, error) {
			if sent {
				return "", io.EOF
			}
			sent = true
			return text, nil
		}
	} else {
		sr, err := t.agent.StreamResponse(ctx, t.req.Query)
		if err != nil {
			o.metrics.ObserveTurn(t.kind.String(), modeStream, t.started, err)
			t.release(ctx)
			cancel()
			return nil, err
		}
		var once sync.Once
		next = sr.Recv
		// closing the reader unblocks the agent's pending sends
		stop = func() { once.Do(sr.Close) }
	}

	s := &TurnStream{
		chunks: make(chan string),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go o.pump(ctx, t, s, next, stop)
	return s, nil
}

// pump forwards chunks to the consumer and finishes the turn once the
// agent's stream ends.
func (o *Orchestrator) pump(ctx context.Context, t *turn, s *TurnStream, next func() (string, error), stop func()) {
	defer close(s.chunks)
	defer close(s.done)
	defer s.cancel()
	defer t.release(ctx)

	frames := make(chan frame)
	go func() {
		defer close(frames)
		defer stop()
		for {
			text, err := next()
			select {
			case frames <- frame{text: text, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	mode := modeStream
	if t.req.VoiceMode {
		mode = modeVoice
	}
	idle := time.NewTimer(o.conv.StreamIdleTimeout)
	defer idle.Stop()

	var sb strings.Builder
	fail := func(err error) {
		s.err = err
		o.metrics.ObserveTurn(t.kind.String(), mode, t.started, err)
		logx.Warn().Err(err).Str("user_id", t.req.UserID).Str("agent", t.kind.String()).Msg("streamed turn failed")
	}
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				fail(context.Cause(ctx))
				return
			}
			if errors.Is(f.err, io.EOF) {
				if err := ctx.Err(); err != nil {
					fail(err)
					return
				}
				o.metrics.ObserveTurn(t.kind.String(), mode, t.started, nil)
				s.resp, s.err = o.finish(ctx, t, &model.AgentResponse{
					Content:   strings.TrimSpace(sb.String()),
					AgentType: t.kind,
					ToolsUsed: []string{},
				})
				return
			}
			if f.err != nil {
				fail(f.err)
				return
			}
			sb.WriteString(f.text)
			select {
			case s.chunks <- f.text:
			case <-ctx.Done():
				fail(ctx.Err())
				return
			}
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(o.conv.StreamIdleTimeout)
		case <-idle.C:
			fail(errx.New(errStreamIdle, http.StatusGatewayTimeout, "response stream timed out"))
			return
		case <-ctx.Done():
			fail(ctx.Err())
			return
		}
	}
}
