package onboarding

import (
	"time"

	"github.com/fitcoach-core/server/internal/agent/model"
	"github.com/fitcoach-core/server/internal/plans"
)

func sectionStrings(s model.Section, key string) []string {
	if s == nil {
		return nil
	}
	out, _ := plans.ToStrings(s[key])
	return out
}

func sectionInt(s model.Section, key string) int {
	if s == nil {
		return 0
	}
	n, _ := plans.ToInt(s[key])
	return n
}

// WorkoutInputFromSections assembles generator input from collected sections;
// prefs (frequency, location, duration_minutes, training_split) override.
func WorkoutInputFromSections(sections map[string]model.Section, prefs model.Section) plans.WorkoutInput {
	fa := sections[SectionFitnessAssessment]
	goals := sections[SectionGoalSetting]
	constraints := sections[SectionWorkoutConstraints]
	saved := sections[SectionWorkoutPlan]

	in := plans.WorkoutInput{
		FitnessLevel: fa.String("fitness_level"),
		PrimaryGoal:  goals.String("primary_goal"),
		Equipment:    sectionStrings(constraints, "equipment"),
	}
	in.Limitations = append(in.Limitations, sectionStrings(fa, "limitations")...)
	in.Limitations = append(in.Limitations, sectionStrings(constraints, "limitations")...)
	in.Limitations = append(in.Limitations, sectionStrings(constraints, "injuries")...)

	in.Location = constraints.String("location")
	for _, src := range []model.Section{saved, prefs} {
		if src == nil {
			continue
		}
		if n := sectionInt(src, "frequency"); n != 0 {
			in.Frequency = n
		}
		if n := sectionInt(src, "duration_minutes"); n != 0 {
			in.DurationMinutes = n
		}
		if v := src.String("location"); v != "" {
			in.Location = v
		}
		if v := src.String("training_split"); v != "" {
			in.TrainingSplit = v
		}
	}
	return in
}

// DietInputFromSections assembles generator input from collected sections;
// prefs (meal_frequency, prep_level, diet fields) override.
func DietInputFromSections(sections map[string]model.Section, prefs model.Section) plans.DietInput {
	fa := sections[SectionFitnessAssessment]
	goals := sections[SectionGoalSetting]
	diet := sections[SectionDietPreferences]
	workout := sections[SectionWorkoutPlan]

	in := plans.DietInput{
		FitnessLevel:     fa.String("fitness_level"),
		PrimaryGoal:      goals.String("primary_goal"),
		WorkoutFrequency: sectionInt(workout, "frequency"),
		DietType:         diet.String("diet_type"),
		Allergies:        sectionStrings(diet, "allergies"),
		Intolerances:     sectionStrings(diet, "intolerances"),
		Dislikes:         sectionStrings(diet, "dislikes"),
		PrepLevel:        diet.String("prep_level"),
		MealFrequency:    3,
	}
	if w, ok := plans.ToFloat(fa["body_weight_kg"]); ok {
		in.BodyWeightKg = w
	}
	for _, src := range []model.Section{sections[SectionMealPlan], prefs} {
		if src == nil {
			continue
		}
		if n := sectionInt(src, "meal_frequency"); n != 0 {
			in.MealFrequency = n
		}
		if v := src.String("prep_level"); v != "" {
			in.PrepLevel = v
		}
		if v := src.String("diet_type"); v != "" {
			in.DietType = v
		}
	}
	return in
}

// WorkoutProposal is the section patch for a generated, unapproved plan.
// Any previously approved plan is removed.
func WorkoutProposal(p plans.WorkoutPlan) model.Section {
	return model.Section{
		"proposed_plan":    p.AsMap(),
		"user_approved":    false,
		"plan":             nil,
		"approved_at":      nil,
		"frequency":        p.Frequency,
		"location":         p.Location,
		"duration_minutes": p.DurationMinutes,
		"training_split":   p.TrainingSplit,
	}
}

// WorkoutApproval is the section patch for an approved plan.
func WorkoutApproval(p plans.WorkoutPlan, at time.Time) model.Section {
	return model.Section{
		"plan":             p.AsMap(),
		"user_approved":    true,
		"approved_at":      at.UTC().Format(time.RFC3339),
		"proposed_plan":    nil,
		"frequency":        p.Frequency,
		"location":         p.Location,
		"duration_minutes": p.DurationMinutes,
		"training_split":   p.TrainingSplit,
	}
}

func mealPlanFields(p plans.MealPlan) model.Section {
	return model.Section{
		"daily_calories":     p.DailyCalories,
		"protein_percentage": p.ProteinPercentage,
		"carbs_percentage":   p.CarbsPercentage,
		"fats_percentage":    p.FatsPercentage,
		"meal_frequency":     p.MealFrequency,
	}
}

// MealProposal is the section patch for a generated, unapproved meal plan.
// The macro fields stay unset until approval.
func MealProposal(p plans.MealPlan) model.Section {
	s := model.Section{
		"proposed_plan": p.AsMap(),
		"user_approved": false,
		"plan":          nil,
		"approved_at":   nil,
	}
	for k := range mealPlanFields(p) {
		s[k] = nil
	}
	s["meal_frequency"] = p.MealFrequency
	return s
}

// MealApproval is the section patch for an approved meal plan.
func MealApproval(p plans.MealPlan, at time.Time) model.Section {
	s := mealPlanFields(p)
	s["plan"] = p.AsMap()
	s["user_approved"] = true
	s["approved_at"] = at.UTC().Format(time.RFC3339)
	s["proposed_plan"] = nil
	return s
}
