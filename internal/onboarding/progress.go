package onboarding

import "github.com/fitcoach-core/server/internal/agent/model"

// StateInfo is the client-facing view of one registry entry.
type StateInfo struct {
	State          int             `json:"state"`
	Key            string          `json:"key"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Agent          model.AgentKind `json:"agent"`
	RequiredFields []string        `json:"required_fields"`
}

// Info renders the metadata for clients.
func (m StateMetadata) Info() *StateInfo {
	return &StateInfo{
		State:          m.Number,
		Key:            m.Key,
		Name:           m.Name,
		Description:    m.Description,
		Agent:          m.Agent,
		RequiredFields: m.RequiredFields(),
	}
}

// UIStepProgress is one of the four collapsed steps with its status.
type UIStepProgress struct {
	UIStep
	Complete bool `json:"complete"`
	Current  bool `json:"current"`
}

type Progress struct {
	UserID               string           `json:"user_id"`
	CurrentState         int              `json:"current_state"`
	CurrentStateInfo     *StateInfo       `json:"current_state_info,omitempty"`
	CompletedStates      []int            `json:"completed_states"`
	NextStateInfo        *StateInfo       `json:"next_state_info"`
	CompletionPercentage int              `json:"completion_percentage"`
	CanComplete          bool             `json:"can_complete"`
	IsComplete           bool             `json:"is_complete"`
	CurrentAgent         string           `json:"current_agent"`
	TotalStates          int              `json:"total_states"`
	CurrentUIStep        int              `json:"current_ui_step"`
	UISteps              []UIStepProgress `json:"ui_steps"`
}

// CompletionPercentage is floor(completed*100/9).
func CompletionPercentage(completed int) int {
	return completed * 100 / TotalStates
}

// BuildProgress derives the progress view from a row.
func BuildProgress(row *OnboardingState) Progress {
	completed := row.CompletedStates()
	done := map[int]bool{}
	for _, n := range completed {
		done[n] = true
	}
	p := Progress{
		UserID:               row.UserID,
		CurrentState:         row.CurrentState,
		CompletedStates:      completed,
		CompletionPercentage: CompletionPercentage(len(completed)),
		CanComplete:          len(completed) == TotalStates,
		IsComplete:           row.IsComplete,
		CurrentAgent:         row.CurrentAgent,
		TotalStates:          TotalStates,
	}
	if m, ok := State(row.CurrentState); ok {
		p.CurrentStateInfo = m.Info()
	}
	for n := 1; n <= TotalStates; n++ {
		if !done[n] {
			p.NextStateInfo = MustState(n).Info()
			break
		}
	}
	current := UIStepFor(row.CurrentState)
	p.CurrentUIStep = current.Step
	for _, step := range UISteps() {
		all := true
		for _, n := range step.States {
			if !done[n] {
				all = false
			}
		}
		p.UISteps = append(p.UISteps, UIStepProgress{
			UIStep:   step,
			Complete: all,
			Current:  step.Step == current.Step && !row.IsComplete,
		})
	}
	return p
}
