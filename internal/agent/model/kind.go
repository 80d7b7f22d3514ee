package model

// AgentKind tags a conversational agent implementation.
type AgentKind string

const (
	KindFitnessAssessment AgentKind = "fitness_assessment"
	KindWorkoutPlanning   AgentKind = "workout_planning"
	KindDietPlanning      AgentKind = "diet_planning"
	KindScheduling        AgentKind = "scheduling"
	KindGeneral           AgentKind = "general"
	KindTracker           AgentKind = "tracker"
)

// CurrentAgentGeneral is the tag stored on a completed onboarding row.
const CurrentAgentGeneral = "general_assistant"

// String returns the wire representation of the kind.
func (k AgentKind) String() string {
	return string(k)
}

// IsSpecialist reports whether the kind owns onboarding states.
func (k AgentKind) IsSpecialist() bool {
	switch k {
	case KindFitnessAssessment, KindWorkoutPlanning, KindDietPlanning, KindScheduling:
		return true
	}
	return false
}

// IsKnown reports whether the kind is one of the defined agents.
func (k AgentKind) IsKnown() bool {
	return k.IsSpecialist() || k == KindGeneral || k == KindTracker
}

// ParseAgentKind accepts both the kind name and the general_assistant alias.
func ParseAgentKind(v string) (AgentKind, bool) {
	if v == CurrentAgentGeneral {
		return KindGeneral, true
	}
	k := AgentKind(v)
	return k, k.IsKnown()
}
