package onboarding

import (
	"sort"
	"strings"

	"github.com/fitcoach-core/server/internal/agent/model"
	errx "github.com/fitcoach-core/server/internal/core/error"
	"github.com/fitcoach-core/server/internal/plans"
	"github.com/fitcoach-core/server/internal/schedule"
)

// Hydration ranges.
const (
	MinWaterML         = 500
	MaxWaterML         = 8000
	MinReminderMinutes = 15
	MaxReminderMinutes = 480
)

// canonicalMealOrder orders meal_times maps, which carry no order of their own.
var canonicalMealOrder = []string{
	"breakfast", "morning_snack", "snack_1", "brunch", "lunch", "afternoon_snack", "snack", "snack_2",
	"pre_workout", "post_workout", "dinner", "evening_snack", "snack_3",
}

type fieldFunc func(v any) (any, error)

func enumField(field string, allowed []string) fieldFunc {
	return func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, errx.InvalidInputf(field, "%s must be a string", field)
		}
		return plans.ValidateEnum(field, s, allowed)
	}
}

func listField(field string) fieldFunc {
	return func(v any) (any, error) {
		list, ok := plans.ToStrings(v)
		if !ok {
			return nil, errx.InvalidInputf(field, "%s must be a list of strings", field)
		}
		return list, nil
	}
}

func intField(field string, lo, hi int) fieldFunc {
	return func(v any) (any, error) {
		n, ok := plans.ToInt(v)
		if !ok {
			return nil, errx.InvalidInputf(field, "%s must be a whole number", field)
		}
		if n < lo || n > hi {
			return nil, errx.InvalidInputf(field, "%s must be between %d and %d, got %d", field, lo, hi, n)
		}
		return n, nil
	}
}

func ratingField(field string) fieldFunc {
	return func(v any) (any, error) {
		n, ok := plans.ToInt(v)
		if !ok {
			return nil, errx.InvalidInputf(field, "%s must be a whole number", field)
		}
		if err := schedule.ValidateRating(field, n); err != nil {
			return nil, err
		}
		return n, nil
	}
}

func floatField(field string, lo, hi float64) fieldFunc {
	return func(v any) (any, error) {
		f, ok := plans.ToFloat(v)
		if !ok {
			return nil, errx.InvalidInputf(field, "%s must be a number", field)
		}
		if f < lo || f > hi {
			return nil, errx.InvalidInputf(field, "%s must be between %g and %g, got %g", field, lo, hi, f)
		}
		return f, nil
	}
}

func boolField(field string) fieldFunc {
	return func(v any) (any, error) {
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(b)) {
			case "true", "yes":
				return true, nil
			case "false", "no":
				return false, nil
			}
		}
		return nil, errx.InvalidInputf(field, "%s must be true or false", field)
	}
}

func percentField(field string) fieldFunc {
	return func(v any) (any, error) {
		f, ok := plans.ToFloat(v)
		if !ok {
			return nil, errx.InvalidInputf("macros", "%s must be a number", field)
		}
		if f < 0 || f > 100 {
			return nil, errx.InvalidInputf("macros", "%s must be within [0,100], got %g", field, f)
		}
		return f, nil
	}
}

func dayListField(v any) (any, error) {
	list, ok := plans.ToStrings(v)
	if !ok {
		return nil, errx.InvalidInput("days", "days must be a list of day names")
	}
	out := make([]string, 0, len(list))
	for _, d := range list {
		c, err := schedule.CanonicalDay(d)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func timeListField(v any) (any, error) {
	list, ok := plans.ToStrings(v)
	if !ok {
		return nil, errx.InvalidInput("times", "times must be a list of HH:MM strings")
	}
	for _, t := range list {
		if err := schedule.ValidateTime(t); err != nil {
			return nil, err
		}
	}
	return list, nil
}

var fieldRules = map[int]map[string]fieldFunc{
	1: {
		"fitness_level":  enumField("fitness_level", plans.FitnessLevels),
		"limitations":    listField("limitations"),
		"energy_level":   ratingField("energy_level"),
		"stress_level":   ratingField("stress_level"),
		"sleep_quality":  ratingField("sleep_quality"),
		"body_weight_kg": floatField("body_weight_kg", 30, 300),
	},
	2: {
		"primary_goal":               enumField("primary_goal", plans.Goals),
		"secondary_goal":             enumField("secondary_goal", plans.Goals),
		"target_weight_kg":           floatField("target_weight_kg", 30, 300),
		"target_body_fat_percentage": floatField("target_body_fat_percentage", 3, 60),
	},
	3: {
		"equipment":   listField("equipment"),
		"injuries":    listField("injuries"),
		"limitations": listField("limitations"),
		"location":    enumField("location", plans.Locations),
	},
	4: {
		"frequency":        intField("frequency", 2, 7),
		"location":         enumField("location", plans.Locations),
		"duration_minutes": intField("duration_minutes", 20, 180),
		"training_split":   enumField("training_split", plans.Splits),
		"user_approved":    boolField("user_approved"),
	},
	5: {
		"days":  dayListField,
		"times": timeListField,
	},
	6: {
		"diet_type":    enumField("diet_type", plans.DietTypes),
		"allergies":    listField("allergies"),
		"intolerances": listField("intolerances"),
		"dislikes":     listField("dislikes"),
		"prep_level":   enumField("prep_level", plans.PrepLevels),
	},
	7: {
		"daily_calories":     intField("daily_calories", 1000, 6000),
		"protein_percentage": percentField("protein_percentage"),
		"carbs_percentage":   percentField("carbs_percentage"),
		"fats_percentage":    percentField("fats_percentage"),
		"meal_frequency":     intField("meal_frequency", 2, 6),
		"user_approved":      boolField("user_approved"),
	},
	9: {
		"daily_water_target_ml":      intField("daily_water_target_ml", MinWaterML, MaxWaterML),
		"reminder_frequency_minutes": intField("reminder_frequency_minutes", MinReminderMinutes, MaxReminderMinutes),
		"supplement_interested":      boolField("supplement_interested"),
		"current_supplements":        listField("current_supplements"),
	},
}

// NormalizeField validates a single field for a state and returns its
// canonical value. Unknown fields are rejected.
func NormalizeField(state int, name string, v any) (any, error) {
	rules, ok := fieldRules[state]
	if !ok {
		return nil, errx.InvalidInputf(name, "state %d has no directly settable field %q", state, name)
	}
	fn, ok := rules[name]
	if !ok {
		return nil, errx.InvalidInputf(name, "unknown field %q for state %d", name, state)
	}
	return fn(v)
}

// NormalizePartial keeps the valid, known, non-null fields of a partial
// record and drops the rest.
func NormalizePartial(state int, fields map[string]any) model.Section {
	out := model.Section{}
	for k, v := range fields {
		if v == nil {
			continue
		}
		if nv, err := NormalizeField(state, k, v); err == nil {
			out[k] = nv
		}
	}
	return out
}

// CompletingPartial guards a partial record that would complete the state's
// section. When known plus partial satisfies the required-field predicate but
// fails the section's cross-field rules, the required fields the partial
// supplies are withheld one at a time, in name order, until the merge is
// incomplete again. Partials that leave the section incomplete, or complete a
// valid one, are returned as they are.
func CompletingPartial(state int, known, partial model.Section) model.Section {
	meta, ok := State(state)
	if !ok || len(partial) == 0 || meta.IsComplete(known) {
		return partial
	}
	merged := model.Section{}
	for k, v := range known {
		merged[k] = v
	}
	for k, v := range partial {
		merged[k] = v
	}
	if !meta.IsComplete(merged) {
		return partial
	}
	if _, err := NormalizeSection(state, merged); err == nil {
		return partial
	}

	out := model.Section{}
	for k, v := range partial {
		out[k] = v
	}
	supplied := []string{}
	for _, name := range meta.RequiredFields() {
		if out.Has(name) && !known.Has(name) {
			supplied = append(supplied, name)
		}
	}
	sort.Strings(supplied)
	for _, name := range supplied {
		delete(out, name)
		delete(merged, name)
		if !meta.IsComplete(merged) {
			break
		}
	}
	return out
}

// NormalizeSection validates a full section payload for a state, including
// cross-field rules, and returns the canonical section.
func NormalizeSection(state int, data map[string]any) (model.Section, error) {
	if data == nil {
		data = map[string]any{}
	}
	switch state {
	case 4:
		return normalizeWorkoutPlanSection(data)
	case 7:
		return normalizeMealPlanSection(data)
	case 8:
		return normalizeMealScheduleSection(data)
	}

	meta, ok := State(state)
	if !ok {
		return nil, errx.InvalidInputf("step", "step must be between 1 and %d, got %d", TotalStates, state)
	}
	out := model.Section{}
	for _, f := range meta.Fields {
		v, present := data[f.Name]
		if !present || v == nil {
			if f.Required {
				if def, ok := requiredDefault(state, f.Name); ok {
					out[f.Name] = def
					continue
				}
				return nil, errx.InvalidInputf(f.Name, "%s is required", f.Name)
			}
			continue
		}
		nv, err := NormalizeField(state, f.Name, v)
		if err != nil {
			return nil, err
		}
		out[f.Name] = nv
	}

	switch state {
	case 2:
		if targets, ok := data["targets"].(map[string]any); ok {
			for _, k := range []string{"target_weight_kg", "target_body_fat_percentage"} {
				if v, ok := targets[k]; ok && v != nil && !out.Has(k) {
					nv, err := NormalizeField(2, k, v)
					if err != nil {
						return nil, err
					}
					out[k] = nv
				}
			}
		}
	case 5:
		slots, err := schedule.ValidateWorkoutSchedule(out["days"].([]string), out["times"].([]string))
		if err != nil {
			return nil, err
		}
		out["slots"] = slots
	}
	return out, nil
}

// requiredDefault supplies values for required fields that forms may omit.
func requiredDefault(state int, name string) (any, bool) {
	switch {
	case state == 3 && (name == "injuries" || name == "limitations" || name == "equipment"):
		return []string{}, true
	case state == 6 && (name == "allergies" || name == "dislikes"):
		return []string{}, true
	case state == 9 && name == "supplement_interested":
		return false, true
	case state == 1 && name == "limitations":
		return []string{}, true
	}
	return nil, false
}

func normalizeWorkoutPlanSection(data map[string]any) (model.Section, error) {
	out := model.Section{}
	for _, k := range []string{"frequency", "location", "duration_minutes", "training_split", "user_approved"} {
		v, ok := data[k]
		if !ok || v == nil {
			continue
		}
		nv, err := NormalizeField(4, k, v)
		if err != nil {
			return nil, err
		}
		out[k] = nv
	}
	for _, k := range []string{"frequency", "location", "duration_minutes"} {
		if !out.Has(k) {
			return nil, errx.InvalidInputf(k, "%s is required", k)
		}
	}
	if raw, ok := data["plan"]; ok && raw != nil {
		p, err := plans.DecodeWorkoutPlan(raw)
		if err != nil {
			return nil, err
		}
		out["plan"] = p.AsMap()
		if !out.Has("training_split") {
			out["training_split"] = p.TrainingSplit
		}
	}
	return out, nil
}

func normalizeMealPlanSection(data map[string]any) (model.Section, error) {
	out := model.Section{}
	for _, k := range []string{"daily_calories", "protein_percentage", "carbs_percentage", "fats_percentage", "meal_frequency", "user_approved"} {
		v, ok := data[k]
		if !ok || v == nil {
			if k == "user_approved" {
				continue
			}
			field := k
			if strings.HasSuffix(k, "_percentage") {
				field = "macros"
			}
			return nil, errx.InvalidInputf(field, "%s is required", k)
		}
		nv, err := NormalizeField(7, k, v)
		if err != nil {
			return nil, err
		}
		out[k] = nv
	}
	if err := plans.ValidateMacroPercentages(
		out["protein_percentage"].(float64), out["carbs_percentage"].(float64), out["fats_percentage"].(float64),
	); err != nil {
		return nil, err
	}
	if raw, ok := data["plan"]; ok && raw != nil {
		p, err := plans.DecodeMealPlan(raw)
		if err != nil {
			return nil, err
		}
		out["plan"] = p.AsMap()
	}
	return out, nil
}

func normalizeMealScheduleSection(data map[string]any) (model.Section, error) {
	var meals []schedule.Meal
	switch {
	case data["meals"] != nil:
		list, ok := data["meals"].([]any)
		if !ok {
			return nil, errx.InvalidInput("meal_schedule", "meals must be a list of {meal_name, scheduled_time}")
		}
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, errx.InvalidInput("meal_schedule", "meals must be a list of {meal_name, scheduled_time}")
			}
			name, _ := m["meal_name"].(string)
			at, _ := m["scheduled_time"].(string)
			meals = append(meals, schedule.Meal{Name: strings.TrimSpace(name), Time: strings.TrimSpace(at)})
		}
	case data["meal_times"] != nil:
		times, ok := data["meal_times"].(map[string]any)
		if !ok {
			return nil, errx.InvalidInput("meal_schedule", "meal_times must map meal names to HH:MM")
		}
		meals = orderedMealTimes(times)
		if meals == nil {
			return nil, errx.InvalidInput("meal_schedule", "meal_times values must be HH:MM strings")
		}
	default:
		return nil, errx.InvalidInput("meal_schedule", "meals is required")
	}
	if err := schedule.ValidateMealSchedule(meals); err != nil {
		return nil, err
	}
	return model.Section{"meals": meals}, nil
}

// orderedMealTimes orders a meal_times map by canonical meal order. Maps
// with names outside that order are sorted by time instead.
func orderedMealTimes(times map[string]any) []schedule.Meal {
	rank := map[string]int{}
	for i, n := range canonicalMealOrder {
		rank[n] = i
	}
	allKnown := true
	meals := make([]schedule.Meal, 0, len(times))
	for name, v := range times {
		at, ok := v.(string)
		if !ok {
			return nil
		}
		if _, ok := rank[strings.ToLower(name)]; !ok {
			allKnown = false
		}
		meals = append(meals, schedule.Meal{Name: name, Time: strings.TrimSpace(at)})
	}
	sort.Slice(meals, func(i, j int) bool {
		if allKnown {
			return rank[strings.ToLower(meals[i].Name)] < rank[strings.ToLower(meals[j].Name)]
		}
		if meals[i].Time != meals[j].Time {
			return meals[i].Time < meals[j].Time
		}
		return meals[i].Name < meals[j].Name
	})
	return meals
}

// SectionMeals decodes a stored meal_schedule section.
func SectionMeals(s model.Section) []schedule.Meal {
	var out []schedule.Meal
	switch v := s["meals"].(type) {
	case []schedule.Meal:
		return v
	case []any:
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			name, _ := m["meal_name"].(string)
			at, _ := m["scheduled_time"].(string)
			out = append(out, schedule.Meal{Name: name, Time: at})
		}
	}
	return out
}
