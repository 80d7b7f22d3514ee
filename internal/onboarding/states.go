package onboarding

import (
	"github.com/fitcoach-core/server/internal/agent/model"
)

// TotalStates is the number of onboarding states.
const TotalStates = 9

// Section keys in agent_context, one per state.
const (
	SectionFitnessAssessment  = "fitness_assessment"
	SectionGoalSetting        = "goal_setting"
	SectionWorkoutConstraints = "workout_constraints"
	SectionWorkoutPlan        = "workout_plan"
	SectionWorkoutSchedule    = "workout_schedule"
	SectionDietPreferences    = "diet_preferences"
	SectionMealPlan           = "meal_plan"
	SectionMealSchedule       = "meal_schedule"
	SectionHydration          = "hydration"
)

// FieldSpec describes one collected field.
type FieldSpec struct {
	Name        string
	Description string
	Required    bool
	// Extractable marks fields the information extractor may fill from chat.
	Extractable bool
}

// StateMetadata is one row of the state registry.
type StateMetadata struct {
	Number      int
	Key         string
	Name        string
	Description string
	Agent       model.AgentKind
	Fields      []FieldSpec
	// RequiresApproval gates the state on user_approved=true.
	RequiresApproval bool
}

// RequiredFields lists the names of required fields.
func (m StateMetadata) RequiredFields() []string {
	out := []string{}
	for _, f := range m.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// ExtractableFields maps extractable field names to their descriptions.
func (m StateMetadata) ExtractableFields() map[string]string {
	out := map[string]string{}
	for _, f := range m.Fields {
		if f.Extractable {
			out[f.Name] = f.Description
		}
	}
	return out
}

// IsComplete reports whether the section satisfies the state's required-field predicate.
func (m StateMetadata) IsComplete(s model.Section) bool {
	if s == nil {
		return false
	}
	for _, name := range m.RequiredFields() {
		if !s.Has(name) {
			return false
		}
	}
	if m.RequiresApproval && !s.Bool("user_approved") {
		return false
	}
	return true
}

// MissingFields lists required fields absent from the section.
func (m StateMetadata) MissingFields(s model.Section) []string {
	out := []string{}
	for _, name := range m.RequiredFields() {
		if !s.Has(name) {
			out = append(out, name)
		}
	}
	if m.RequiresApproval && !s.Bool("user_approved") {
		out = append(out, "user_approved")
	}
	return out
}

var registry = [TotalStates]StateMetadata{
	{
		Number: 1, Key: SectionFitnessAssessment, Name: "Fitness Assessment", Agent: model.KindFitnessAssessment,
		Description: "Current fitness level, physical limitations and lifestyle baseline",
		Fields: []FieldSpec{
			{Name: "fitness_level", Description: "one of beginner, intermediate, advanced", Required: true, Extractable: true},
			{Name: "limitations", Description: "list of physical limitations or health conditions; empty list if the user said none", Required: true, Extractable: true},
			{Name: "energy_level", Description: "self-rated daily energy from 1 to 10", Extractable: true},
			{Name: "stress_level", Description: "self-rated stress from 1 to 10", Extractable: true},
			{Name: "sleep_quality", Description: "self-rated sleep quality from 1 to 10", Extractable: true},
			{Name: "body_weight_kg", Description: "current body weight in kilograms", Extractable: true},
		},
	},
	{
		Number: 2, Key: SectionGoalSetting, Name: "Goal Setting", Agent: model.KindFitnessAssessment,
		Description: "Primary and secondary goals with optional body targets",
		Fields: []FieldSpec{
			{Name: "primary_goal", Description: "one of fat_loss, muscle_gain, general_fitness", Required: true, Extractable: true},
			{Name: "secondary_goal", Description: "optional second goal, one of fat_loss, muscle_gain, general_fitness", Extractable: true},
			{Name: "target_weight_kg", Description: "optional target body weight in kilograms", Extractable: true},
			{Name: "target_body_fat_percentage", Description: "optional target body fat percentage", Extractable: true},
		},
	},
	{
		Number: 3, Key: SectionWorkoutConstraints, Name: "Workout Constraints", Agent: model.KindWorkoutPlanning,
		Description: "Available equipment, injuries and training limitations",
		Fields: []FieldSpec{
			{Name: "equipment", Description: "list of available training equipment; empty list if none", Required: true, Extractable: true},
			{Name: "injuries", Description: "list of current or past injuries; empty list if none", Required: true, Extractable: true},
			{Name: "limitations", Description: "list of training limitations such as time or movement restrictions; empty list if none", Required: true, Extractable: true},
			{Name: "location", Description: "where the user trains, home or gym", Extractable: true},
		},
	},
	{
		Number: 4, Key: SectionWorkoutPlan, Name: "Workout Plan", Agent: model.KindWorkoutPlanning, RequiresApproval: true,
		Description: "Generated workout plan approved by the user",
		Fields: []FieldSpec{
			{Name: "frequency", Description: "workouts per week, 2 to 7", Extractable: true},
			{Name: "location", Description: "home or gym", Extractable: true},
			{Name: "duration_minutes", Description: "minutes per session, 20 to 180", Extractable: true},
			{Name: "plan", Description: "the approved workout plan", Required: true},
		},
	},
	{
		Number: 5, Key: SectionWorkoutSchedule, Name: "Workout Schedule", Agent: model.KindWorkoutPlanning,
		Description: "Training days and start times",
		Fields: []FieldSpec{
			{Name: "days", Description: "list of training day names, Monday to Sunday", Required: true, Extractable: true},
			{Name: "times", Description: "list of HH:MM start times parallel to days", Required: true, Extractable: true},
		},
	},
	{
		Number: 6, Key: SectionDietPreferences, Name: "Diet Preferences", Agent: model.KindDietPlanning,
		Description: "Diet type, allergies, intolerances and dislikes",
		Fields: []FieldSpec{
			{Name: "diet_type", Description: "one of omnivore, vegetarian, vegan, pescatarian", Required: true, Extractable: true},
			{Name: "allergies", Description: "list of food allergies; empty list if none", Required: true, Extractable: true},
			{Name: "intolerances", Description: "list of food intolerances", Extractable: true},
			{Name: "dislikes", Description: "list of disliked foods; empty list if none", Required: true, Extractable: true},
			{Name: "prep_level", Description: "cooking effort, one of quick, moderate, elaborate", Extractable: true},
		},
	},
	{
		Number: 7, Key: SectionMealPlan, Name: "Meal Plan", Agent: model.KindDietPlanning, RequiresApproval: true,
		Description: "Calorie and macro targets approved by the user",
		Fields: []FieldSpec{
			{Name: "daily_calories", Description: "daily calorie target", Required: true},
			{Name: "protein_percentage", Description: "protein share of calories", Required: true},
			{Name: "carbs_percentage", Description: "carbohydrate share of calories", Required: true},
			{Name: "fats_percentage", Description: "fat share of calories", Required: true},
			{Name: "meal_frequency", Description: "meals per day, 2 to 6", Required: true, Extractable: true},
		},
	},
	{
		Number: 8, Key: SectionMealSchedule, Name: "Meal Schedule", Agent: model.KindDietPlanning,
		Description: "Meal names and HH:MM times in day order",
		Fields: []FieldSpec{
			{Name: "meals", Description: "ordered list of {meal_name, scheduled_time HH:MM}", Required: true},
		},
	},
	{
		Number: 9, Key: SectionHydration, Name: "Hydration & Supplements", Agent: model.KindScheduling,
		Description: "Water target, reminder cadence and supplement preferences",
		Fields: []FieldSpec{
			{Name: "daily_water_target_ml", Description: "daily water target in millilitres, 500 to 8000", Required: true, Extractable: true},
			{Name: "reminder_frequency_minutes", Description: "minutes between water reminders, 15 to 480", Required: true, Extractable: true},
			{Name: "supplement_interested", Description: "true if the user wants supplement guidance", Required: true, Extractable: true},
			{Name: "current_supplements", Description: "list of supplements the user already takes", Extractable: true},
		},
	},
}

// State returns the metadata for state n in [1,9].
func State(n int) (StateMetadata, bool) {
	if n < 1 || n > TotalStates {
		return StateMetadata{}, false
	}
	return registry[n-1], true
}

// MustState is State for compile-time known numbers.
func MustState(n int) StateMetadata {
	m, ok := State(n)
	if !ok {
		panic("onboarding: unknown state")
	}
	return m
}

// States returns every state in order.
func States() []StateMetadata {
	out := make([]StateMetadata, TotalStates)
	copy(out, registry[:])
	return out
}

// StateByKey looks a state up by its section key.
func StateByKey(key string) (StateMetadata, bool) {
	for _, m := range registry {
		if m.Key == key {
			return m, true
		}
	}
	return StateMetadata{}, false
}

// OwningAgent returns the agent for a state. State 0 belongs to the first agent.
func OwningAgent(n int) model.AgentKind {
	if n < 1 {
		n = 1
	}
	if n > TotalStates {
		n = TotalStates
	}
	return registry[n-1].Agent
}

// StatesOwnedBy lists the states an agent owns.
func StatesOwnedBy(kind model.AgentKind) []StateMetadata {
	out := []StateMetadata{}
	for _, m := range registry {
		if m.Agent == kind {
			out = append(out, m)
		}
	}
	return out
}

// UIStep is the collapsed four-step view shown by clients.
type UIStep struct {
	Step   int             `json:"step"`
	Name   string          `json:"name"`
	Agent  model.AgentKind `json:"agent"`
	States []int           `json:"states"`
}

var uiSteps = []UIStep{
	{Step: 1, Name: "assessment", Agent: model.KindFitnessAssessment, States: []int{1, 2}},
	{Step: 2, Name: "workout", Agent: model.KindWorkoutPlanning, States: []int{3, 4, 5}},
	{Step: 3, Name: "diet", Agent: model.KindDietPlanning, States: []int{6, 7, 8}},
	{Step: 4, Name: "scheduling", Agent: model.KindScheduling, States: []int{9}},
}

// UISteps returns the four-step projection.
func UISteps() []UIStep {
	out := make([]UIStep, len(uiSteps))
	copy(out, uiSteps)
	return out
}

// UIStepFor maps an internal state to its UI step; state 0 maps to step 1.
func UIStepFor(state int) UIStep {
	for _, s := range uiSteps {
		for _, n := range s.States {
			if n == state {
				return s
			}
		}
	}
	if state > TotalStates {
		return uiSteps[len(uiSteps)-1]
	}
	return uiSteps[0]
}
