package agents

import (
	"context"
	"fmt"

	"github.com/fitcoach-core/server/internal/agent/model"
)

// Factory builds agents bound to one request's context snapshot.
type Factory struct {
	deps Deps
}

func NewFactory(deps Deps) *Factory {
	return &Factory{deps: deps}
}

func (f *Factory) New(ctx context.Context, kind model.AgentKind, actx *model.AgentContext) (Agent, error) {
	var (
		a   Agent
		err error
	)
	switch kind {
	case model.KindFitnessAssessment:
		a, err = NewFitnessAssessmentAgent(ctx, f.deps, actx)
	case model.KindWorkoutPlanning:
		a, err = NewWorkoutPlanningAgent(ctx, f.deps, actx)
	case model.KindDietPlanning:
		a, err = NewDietPlanningAgent(ctx, f.deps, actx)
	case model.KindScheduling:
		a, err = NewSchedulingAgent(ctx, f.deps, actx)
	case model.KindGeneral:
		a, err = NewGeneralAgent(ctx, f.deps, actx)
	case model.KindTracker:
		a, err = NewTrackerAgent(ctx, f.deps, actx)
	default:
		return nil, fmt.Errorf("unknown agent kind %q", kind)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}
