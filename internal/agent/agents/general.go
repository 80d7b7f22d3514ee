package agents

import (
	"context"

	"github.com/fitcoach-core/server/internal/agent/model"
)

// GeneralAgent answers open questions once onboarding is done. It has no
// tools.
type GeneralAgent struct {
	*Base
}

func NewGeneralAgent(ctx context.Context, deps Deps, actx *model.AgentContext) (*GeneralAgent, error) {
	a := &GeneralAgent{Base: newBase(model.KindGeneral, deps, actx)}
	if err := a.register(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// TrackerAgent talks about logged progress. It has no tools.
type TrackerAgent struct {
	*Base
}

func NewTrackerAgent(ctx context.Context, deps Deps, actx *model.AgentContext) (*TrackerAgent, error) {
	a := &TrackerAgent{Base: newBase(model.KindTracker, deps, actx)}
	if err := a.register(ctx); err != nil {
		return nil, err
	}
	return a, nil
}
