package plans

import (
	"fmt"
	"math"
	"strings"

	errx "github.com/fitcoach-core/server/internal/core/error"
)

// DefaultBodyWeightKg is the stand-in weight used when none is declared.
const DefaultBodyWeightKg = 75.0

const baselineCalories = 2000.0

// DietInput is everything the diet generator needs.
type DietInput struct {
	FitnessLevel     string   `json:"fitness_level"`
	PrimaryGoal      string   `json:"primary_goal"`
	WorkoutFrequency int      `json:"workout_frequency"`
	DietType         string   `json:"diet_type"`
	Allergies        []string `json:"allergies"`
	Intolerances     []string `json:"intolerances"`
	Dislikes         []string `json:"dislikes"`
	MealFrequency    int      `json:"meal_frequency"`
	PrepLevel        string   `json:"prep_level"`
	// BodyWeightKg overrides DefaultBodyWeightKg when positive.
	BodyWeightKg float64 `json:"body_weight_kg,omitempty"`
}

type SampleMeal struct {
	Name        string   `json:"name"`
	MealType    string   `json:"meal_type"`
	Ingredients []string `json:"ingredients"`
	PrepMinutes int      `json:"prep_minutes"`
	Calories    int      `json:"calories"`
	ProteinG    int      `json:"protein_g"`
	CarbsG      int      `json:"carbs_g"`
	FatsG       int      `json:"fats_g"`
}

type MealPlan struct {
	FitnessLevel      string       `json:"fitness_level"`
	PrimaryGoal       string       `json:"primary_goal"`
	WorkoutFrequency  int          `json:"workout_frequency"`
	DietType          string       `json:"diet_type"`
	Allergies         []string     `json:"allergies"`
	Intolerances      []string     `json:"intolerances"`
	Dislikes          []string     `json:"dislikes"`
	PrepLevel         string       `json:"prep_level"`
	BodyWeightKg      float64      `json:"body_weight_kg"`
	DailyCalories     int          `json:"daily_calories"`
	ProteinG          int          `json:"protein_g"`
	CarbsG            int          `json:"carbs_g"`
	FatsG             int          `json:"fats_g"`
	ProteinPercentage float64      `json:"protein_percentage"`
	CarbsPercentage   float64      `json:"carbs_percentage"`
	FatsPercentage    float64      `json:"fats_percentage"`
	MealFrequency     int          `json:"meal_frequency"`
	MealTimes         []string     `json:"meal_times"`
	SampleMeals       []SampleMeal `json:"sample_meals"`
	Notes             string       `json:"notes"`
}

func (p MealPlan) Input() DietInput {
	return DietInput{
		FitnessLevel:     p.FitnessLevel,
		PrimaryGoal:      p.PrimaryGoal,
		WorkoutFrequency: p.WorkoutFrequency,
		DietType:         p.DietType,
		Allergies:        append([]string(nil), p.Allergies...),
		Intolerances:     append([]string(nil), p.Intolerances...),
		Dislikes:         append([]string(nil), p.Dislikes...),
		MealFrequency:    p.MealFrequency,
		PrepLevel:        p.PrepLevel,
		BodyWeightKg:     p.BodyWeightKg,
	}
}

func (p MealPlan) AsMap() map[string]any {
	return toMap(p)
}

// MacroKcal is the energy implied by the plan's gram targets.
func (p MealPlan) MacroKcal() int {
	return p.ProteinG*4 + p.CarbsG*4 + p.FatsG*9
}

// DecodeMealPlan accepts a stored plan (map or struct) and returns it typed.
func DecodeMealPlan(v any) (MealPlan, error) {
	var p MealPlan
	if err := fromAny(v, &p); err != nil {
		return MealPlan{}, errx.InvalidInput("plan", "meal plan is malformed")
	}
	if p.DailyCalories <= 0 {
		return MealPlan{}, errx.InvalidInput("plan", "meal plan has no daily calorie target")
	}
	return p, nil
}

// ActivityMultiplier maps weekly workouts to a TDEE multiplier.
func ActivityMultiplier(frequency int) float64 {
	switch {
	case frequency <= 1:
		return 1.2
	case frequency <= 3:
		return 1.375
	case frequency <= 5:
		return 1.55
	default:
		return 1.725
	}
}

func (in DietInput) normalize() (DietInput, error) {
	var err error
	if in.FitnessLevel, err = ValidateEnum("fitness_level", in.FitnessLevel, FitnessLevels); err != nil {
		return in, err
	}
	if in.PrimaryGoal, err = ValidateEnum("primary_goal", in.PrimaryGoal, Goals); err != nil {
		return in, err
	}
	if err = checkRange("workout_frequency", in.WorkoutFrequency, 0, 7); err != nil {
		return in, err
	}
	if in.DietType, err = ValidateEnum("diet_type", in.DietType, DietTypes); err != nil {
		return in, err
	}
	if err = checkRange("meal_frequency", in.MealFrequency, 2, 6); err != nil {
		return in, err
	}
	if in.PrepLevel == "" {
		in.PrepLevel = PrepModerate
	}
	if in.PrepLevel, err = ValidateEnum("prep_level", in.PrepLevel, PrepLevels); err != nil {
		return in, err
	}
	if in.BodyWeightKg < 0 || in.BodyWeightKg > 400 || math.IsNaN(in.BodyWeightKg) {
		return in, errx.InvalidInputf("body_weight_kg", "body_weight_kg must be between 0 and 400, got %.1f", in.BodyWeightKg)
	}
	if in.BodyWeightKg == 0 {
		in.BodyWeightKg = DefaultBodyWeightKg
	}
	in.Allergies = lowerAll(in.Allergies)
	in.Intolerances = lowerAll(in.Intolerances)
	in.Dislikes = lowerAll(in.Dislikes)
	return in, nil
}

func proteinPerKg(goal string) float64 {
	switch goal {
	case GoalMuscleGain:
		return 2.0
	case GoalFatLoss:
		return 1.8
	default:
		return 1.6
	}
}

func calorieAdjustment(goal string) int {
	switch goal {
	case GoalMuscleGain:
		return 400
	case GoalFatLoss:
		return -400
	default:
		return 0
	}
}

// GenerateMealPlan builds a deterministic meal plan.
func GenerateMealPlan(in DietInput) (MealPlan, error) {
	in, err := in.normalize()
	if err != nil {
		return MealPlan{}, err
	}
	calories := int(math.Round(baselineCalories*ActivityMultiplier(in.WorkoutFrequency))) + calorieAdjustment(in.PrimaryGoal)

	plan := MealPlan{
		FitnessLevel:     in.FitnessLevel,
		PrimaryGoal:      in.PrimaryGoal,
		WorkoutFrequency: in.WorkoutFrequency,
		DietType:         in.DietType,
		Allergies:        in.Allergies,
		Intolerances:     in.Intolerances,
		Dislikes:         in.Dislikes,
		PrepLevel:        in.PrepLevel,
		BodyWeightKg:     in.BodyWeightKg,
		DailyCalories:    calories,
		MealFrequency:    in.MealFrequency,
	}
	plan.ProteinG = int(math.Round(proteinPerKg(in.PrimaryGoal) * in.BodyWeightKg))
	remaining := float64(calories - plan.ProteinG*4)
	if remaining < 0 {
		remaining = 0
	}
	plan.FatsG = int(math.Round(remaining * 0.28 / 9))
	plan.CarbsG = int(math.Round((remaining - float64(plan.FatsG*9)) / 4))
	nudgeCarbs(&plan)
	setPercentages(&plan)

	plan.MealTimes = MealTimeHints(in.MealFrequency)
	plan.SampleMeals = pickSampleMeals(in)
	plan.Notes = dietNotes(plan)
	return plan, nil
}

// nudgeCarbs moves carbs so macro energy lands within 10% of the target.
func nudgeCarbs(p *MealPlan) {
	target := float64(p.DailyCalories)
	if math.Abs(float64(p.MacroKcal())-target) <= target*0.10 {
		return
	}
	carbs := int(math.Round((target - float64(p.ProteinG*4+p.FatsG*9)) / 4))
	if carbs < 0 {
		carbs = 0
	}
	p.CarbsG = carbs
}

// setPercentages derives macro shares from grams; carbs absorb rounding so
// the three always sum to 100.
func setPercentages(p *MealPlan) {
	total := float64(p.MacroKcal())
	if total <= 0 {
		p.ProteinPercentage, p.CarbsPercentage, p.FatsPercentage = 0, 100, 0
		return
	}
	p.ProteinPercentage = round2(float64(p.ProteinG*4) * 100 / total)
	p.FatsPercentage = round2(float64(p.FatsG*9) * 100 / total)
	p.CarbsPercentage = round2(100 - p.ProteinPercentage - p.FatsPercentage)
}

// gramsFromPercentages re-derives grams from the calorie target and shares.
func gramsFromPercentages(p *MealPlan) {
	cal := float64(p.DailyCalories)
	p.ProteinG = int(math.Round(cal * p.ProteinPercentage / 100 / 4))
	p.CarbsG = int(math.Round(cal * p.CarbsPercentage / 100 / 4))
	p.FatsG = int(math.Round(cal * p.FatsPercentage / 100 / 9))
}

func (in DietInput) banned() []string {
	out := make([]string, 0, len(in.Allergies)+len(in.Intolerances)+len(in.Dislikes))
	out = append(out, in.Allergies...)
	out = append(out, in.Intolerances...)
	return append(out, in.Dislikes...)
}

// mealAllowed reports whether a meal fits the diet type and contains none of
// the banned substrings in any ingredient.
func mealAllowed(m mealEntry, dietType string, banned []string) bool {
	if dietRank[m.diet] > dietRank[dietType] {
		return false
	}
	for _, ing := range m.ingredients {
		ing = strings.ToLower(ing)
		for _, b := range banned {
			if b != "" && strings.Contains(ing, b) {
				return false
			}
		}
	}
	return true
}

func pickSampleMeals(in DietInput) []SampleMeal {
	count := in.MealFrequency
	if count < 3 {
		count = 3
	}
	if count > 5 {
		count = 5
	}
	banned := in.banned()
	limit := prepLimits[in.PrepLevel]
	used := map[string]bool{}

	find := func(mealType string, maxPrep int) (mealEntry, bool) {
		for _, m := range mealCatalog {
			if used[m.name] || (mealType != "" && m.mealType != mealType) || m.prepMinutes > maxPrep {
				continue
			}
			if mealAllowed(m, in.DietType, banned) {
				return m, true
			}
		}
		return mealEntry{}, false
	}

	out := []SampleMeal{}
	for _, slot := range mealSlots[count] {
		m, ok := find(slot, limit)
		if !ok {
			m, ok = find(slot, prepLimits[PrepElaborate])
		}
		if !ok {
			m, ok = find("", prepLimits[PrepElaborate])
		}
		if !ok {
			break
		}
		used[m.name] = true
		out = append(out, SampleMeal{
			Name:        m.name,
			MealType:    m.mealType,
			Ingredients: append([]string(nil), m.ingredients...),
			PrepMinutes: m.prepMinutes,
			Calories:    m.calories,
			ProteinG:    m.protein,
			CarbsG:      m.carbs,
			FatsG:       m.fats,
		})
	}
	return out
}

func dietNotes(p MealPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d kcal per day with %dg protein, %dg carbs and %dg fats across %d meals.",
		p.DailyCalories, p.ProteinG, p.CarbsG, p.FatsG, p.MealFrequency)
	switch p.PrimaryGoal {
	case GoalMuscleGain:
		b.WriteString(" A modest surplus supports muscle growth.")
	case GoalFatLoss:
		b.WriteString(" A moderate deficit with high protein preserves muscle while you lose fat.")
	default:
		b.WriteString(" Calories match your estimated maintenance needs.")
	}
	if len(p.SampleMeals) < 3 {
		b.WriteString(" Few catalog meals fit every restriction, so sample meals are limited.")
	}
	return b.String()
}

// ModifyMealPlan applies modifications and re-derives dependent fields.
func ModifyMealPlan(current MealPlan, mods map[string]any) (MealPlan, error) {
	if len(mods) == 0 {
		return MealPlan{}, errx.InvalidInput("modifications", "no modifications given")
	}
	plan := current
	in := current.Input()
	regenerateSamples := false
	macrosTouched := false

	for key, raw := range mods {
		switch key {
		case "daily_calories":
			n, ok := ToInt(raw)
			if !ok {
				return MealPlan{}, errx.InvalidInput(key, "daily_calories must be a whole number")
			}
			if err := checkRange(key, n, 1000, 6000); err != nil {
				return MealPlan{}, err
			}
			plan.DailyCalories = n
			macrosTouched = true
		case "meal_frequency":
			n, ok := ToInt(raw)
			if !ok {
				return MealPlan{}, errx.InvalidInput(key, "meal_frequency must be a whole number")
			}
			if err := checkRange(key, n, 2, 6); err != nil {
				return MealPlan{}, err
			}
			in.MealFrequency = n
			plan.MealFrequency = n
			regenerateSamples = true
		case "protein_percentage", "carbs_percentage", "fats_percentage":
			f, ok := ToFloat(raw)
			if !ok {
				return MealPlan{}, errx.InvalidInputf("macros", "%s must be a number", key)
			}
			switch key {
			case "protein_percentage":
				plan.ProteinPercentage = f
			case "carbs_percentage":
				plan.CarbsPercentage = f
			default:
				plan.FatsPercentage = f
			}
			macrosTouched = true
		case "diet_type", "prep_level":
			s, ok := raw.(string)
			if !ok {
				return MealPlan{}, errx.InvalidInputf(key, "%s must be a string", key)
			}
			if key == "diet_type" {
				in.DietType = s
			} else {
				in.PrepLevel = s
			}
			regenerateSamples = true
		case "allergies", "intolerances", "dislikes":
			list, ok := ToStrings(raw)
			if !ok {
				return MealPlan{}, errx.InvalidInputf(key, "%s must be a list of strings", key)
			}
			switch key {
			case "allergies":
				in.Allergies = list
			case "intolerances":
				in.Intolerances = list
			default:
				in.Dislikes = list
			}
			regenerateSamples = true
		default:
			return MealPlan{}, unknownModification(key)
		}
	}

	if macrosTouched {
		if err := ValidateMacroPercentages(plan.ProteinPercentage, plan.CarbsPercentage, plan.FatsPercentage); err != nil {
			return MealPlan{}, err
		}
		gramsFromPercentages(&plan)
	}
	if regenerateSamples {
		norm, err := in.normalize()
		if err != nil {
			return MealPlan{}, err
		}
		plan.DietType = norm.DietType
		plan.PrepLevel = norm.PrepLevel
		plan.Allergies = norm.Allergies
		plan.Intolerances = norm.Intolerances
		plan.Dislikes = norm.Dislikes
		plan.MealTimes = MealTimeHints(norm.MealFrequency)
		plan.SampleMeals = pickSampleMeals(norm)
	}
	plan.Notes = dietNotes(plan)
	return plan, nil
}
