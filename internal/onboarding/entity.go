package onboarding

import (
	"time"

	"github.com/fitcoach-core/server/internal/agent/model"
	"github.com/fitcoach-core/server/internal/plans"
	"gorm.io/datatypes"
)

// OnboardingState is the persisted onboarding record, one row per user.
type OnboardingState struct {
	UserID              string                                        `gorm:"column:user_id;primaryKey;size:64" json:"user_id"`
	CurrentState        int                                           `gorm:"column:current_state;not null;default:0" json:"current_state"`
	IsComplete          bool                                          `gorm:"column:is_complete;not null;default:false;index" json:"is_complete"`
	CurrentAgent        string                                        `gorm:"column:current_agent;size:64" json:"current_agent"`
	AgentContext        datatypes.JSONType[map[string]model.Section] `gorm:"column:agent_context" json:"agent_context"`
	ConversationHistory datatypes.JSONType[[]model.Message]          `gorm:"column:conversation_history" json:"conversation_history"`
	AgentHistory        datatypes.JSONType[[]model.AgentVisit]       `gorm:"column:agent_history" json:"agent_history"`
	Step1Complete       bool                                          `gorm:"column:step_1_complete;not null;default:false" json:"step_1_complete"`
	Step2Complete       bool                                          `gorm:"column:step_2_complete;not null;default:false" json:"step_2_complete"`
	Step3Complete       bool                                          `gorm:"column:step_3_complete;not null;default:false" json:"step_3_complete"`
	Step4Complete       bool                                          `gorm:"column:step_4_complete;not null;default:false" json:"step_4_complete"`
	Step5Complete       bool                                          `gorm:"column:step_5_complete;not null;default:false" json:"step_5_complete"`
	Step6Complete       bool                                          `gorm:"column:step_6_complete;not null;default:false" json:"step_6_complete"`
	Step7Complete       bool                                          `gorm:"column:step_7_complete;not null;default:false" json:"step_7_complete"`
	Step8Complete       bool                                          `gorm:"column:step_8_complete;not null;default:false" json:"step_8_complete"`
	Step9Complete       bool                                          `gorm:"column:step_9_complete;not null;default:false" json:"step_9_complete"`
	CreatedAt           time.Time                                     `gorm:"column:created_at;not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt           time.Time                                     `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updated_at"`
}

func (OnboardingState) TableName() string { return "onboarding_state" }

// Sections returns the decoded agent_context, never nil.
func (s *OnboardingState) Sections() map[string]model.Section {
	out := s.AgentContext.Data()
	if out == nil {
		out = map[string]model.Section{}
	}
	return out
}

// Section returns one section of agent_context, or nil.
func (s *OnboardingState) Section(key string) model.Section {
	return s.Sections()[key]
}

// History returns the transcript, never nil.
func (s *OnboardingState) History() []model.Message {
	out := s.ConversationHistory.Data()
	if out == nil {
		out = []model.Message{}
	}
	return out
}

// Visits returns the agent visit history, never nil.
func (s *OnboardingState) Visits() []model.AgentVisit {
	out := s.AgentHistory.Data()
	if out == nil {
		out = []model.AgentVisit{}
	}
	return out
}

// StepComplete reports the explicit flag for state n.
func (s *OnboardingState) StepComplete(n int) bool {
	switch n {
	case 1:
		return s.Step1Complete
	case 2:
		return s.Step2Complete
	case 3:
		return s.Step3Complete
	case 4:
		return s.Step4Complete
	case 5:
		return s.Step5Complete
	case 6:
		return s.Step6Complete
	case 7:
		return s.Step7Complete
	case 8:
		return s.Step8Complete
	case 9:
		return s.Step9Complete
	}
	return false
}

// setStepComplete sets or clears the flag for state n.
func (s *OnboardingState) setStepComplete(n int, done bool) {
	switch n {
	case 1:
		s.Step1Complete = done
	case 2:
		s.Step2Complete = done
	case 3:
		s.Step3Complete = done
	case 4:
		s.Step4Complete = done
	case 5:
		s.Step5Complete = done
	case 6:
		s.Step6Complete = done
	case 7:
		s.Step7Complete = done
	case 8:
		s.Step8Complete = done
	case 9:
		s.Step9Complete = done
	}
}

// CompletedStates lists the states whose flag is set, in order.
func (s *OnboardingState) CompletedStates() []int {
	out := []int{}
	for n := 1; n <= TotalStates; n++ {
		if s.StepComplete(n) {
			out = append(out, n)
		}
	}
	return out
}

// Snapshot projects the row into the read-only context handed to agents.
func (s *OnboardingState) Snapshot(now time.Time) *model.AgentContext {
	sections := map[string]model.Section{}
	for k, v := range s.Sections() {
		cp := make(model.Section, len(v))
		for kk, vv := range v {
			cp[kk] = vv
		}
		sections[k] = cp
	}
	ctx := &model.AgentContext{
		UserID:              s.UserID,
		CurrentState:        s.CurrentState,
		ConversationHistory: append([]model.Message(nil), s.History()...),
		LoadedAt:            now.UTC(),
		Sections:            sections,
	}
	if fa := sections[SectionFitnessAssessment]; fa != nil {
		ctx.FitnessLevel = fa.String("fitness_level")
		if n, ok := plans.ToInt(fa["energy_level"]); ok {
			ctx.EnergyLevel = &n
		}
	}
	if g := sections[SectionGoalSetting]; g != nil {
		ctx.PrimaryGoal = g.String("primary_goal")
	}
	if wp := sections[SectionWorkoutPlan]; wp != nil {
		if p, ok := wp["plan"].(map[string]any); ok {
			ctx.CurrentWorkoutPlan = p
		} else if p, ok := wp["proposed_plan"].(map[string]any); ok {
			ctx.CurrentWorkoutPlan = p
		}
	}
	if mp := sections[SectionMealPlan]; mp != nil {
		if p, ok := mp["plan"].(map[string]any); ok {
			ctx.CurrentMealPlan = p
		} else if p, ok := mp["proposed_plan"].(map[string]any); ok {
			ctx.CurrentMealPlan = p
		}
	}
	return ctx
}
