package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fitcoach-core/server/internal/agent/model"
	errx "github.com/fitcoach-core/server/internal/core/error"
	"github.com/fitcoach-core/server/internal/onboarding"
	"github.com/fitcoach-core/server/internal/plans"
	"github.com/fitcoach-core/server/internal/schedule"
	logx "github.com/fitcoach-core/server/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Graph is the set of entities created by one materialization.
type Graph struct {
	Profile              *UserProfile          `json:"profile"`
	Goals                []*FitnessGoal        `json:"goals"`
	Constraints          []*PhysicalConstraint `json:"constraints"`
	DietaryPreference    *DietaryPreference    `json:"dietary_preference"`
	MealPlan             *MealPlan             `json:"meal_plan"`
	MealSchedules        []*MealSchedule       `json:"meal_schedules"`
	WorkoutPlan          *WorkoutPlan          `json:"workout_plan"`
	WorkoutSchedules     []*WorkoutSchedule    `json:"workout_schedules"`
	Hydration            *HydrationPreference  `json:"hydration"`
	Lifestyle            *LifestyleBaseline    `json:"lifestyle,omitempty"`
	SupplementPreference *SupplementPreference `json:"supplement_preference"`
}

type Materializer struct {
	db  *gorm.DB
	now func() time.Time
}

func NewMaterializer(db *gorm.DB) *Materializer {
	return &Materializer{db: db, now: time.Now}
}

// Materialize builds and commits the profile graph in its own transaction.
func (m *Materializer) Materialize(ctx context.Context, userID string, sections map[string]model.Section) (*Graph, error) {
	var graph *Graph
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		g, err := m.MaterializeTx(ctx, tx, userID, sections)
		if err != nil {
			return err
		}
		graph = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return graph, nil
}

// MaterializeTx validates sections and creates the graph inside tx. A nil tx
// falls back to the materializer's own handle. Nothing is written when
// validation fails; callers roll tx back on any other error.
func (m *Materializer) MaterializeTx(ctx context.Context, tx *gorm.DB, userID string, sections map[string]model.Section) (*Graph, error) {
	transaction := tx
	if transaction == nil {
		transaction = m.db
	}
	transaction = transaction.WithContext(ctx)

	graph, err := Build(userID, sections, m.now().UTC())
	if err != nil {
		return nil, err
	}

	if err := transaction.Create(graph.Profile).Error; err != nil {
		return nil, errx.WrapDB(fmt.Errorf("creating user profile: %w", err))
	}
	pid := graph.Profile.ID
	steps := []struct {
		what string
		rows any
		n    int
	}{
		{"fitness goals", graph.Goals, len(graph.Goals)},
		{"physical constraints", graph.Constraints, len(graph.Constraints)},
		{"dietary preference", graph.DietaryPreference, 1},
		{"meal plan", graph.MealPlan, 1},
		{"meal schedules", graph.MealSchedules, len(graph.MealSchedules)},
		{"workout plan", graph.WorkoutPlan, 1},
		{"workout schedules", graph.WorkoutSchedules, len(graph.WorkoutSchedules)},
		{"hydration preference", graph.Hydration, 1},
		{"supplement preference", graph.SupplementPreference, 1},
	}
	graph.attach(pid)
	for _, s := range steps {
		if s.n == 0 {
			continue
		}
		if err := transaction.Create(s.rows).Error; err != nil {
			return nil, errx.WrapDB(fmt.Errorf("creating %s: %w", s.what, err))
		}
	}
	if graph.Lifestyle != nil {
		if err := transaction.Create(graph.Lifestyle).Error; err != nil {
			return nil, errx.WrapDB(fmt.Errorf("creating lifestyle baseline: %w", err))
		}
	}

	logx.Info().
		Str("user_id", userID).
		Str("profile_id", pid.String()).
		Int("goals", len(graph.Goals)).
		Int("constraints", len(graph.Constraints)).
		Int("meal_schedules", len(graph.MealSchedules)).
		Int("workout_schedules", len(graph.WorkoutSchedules)).
		Msg("profile materialized")
	return graph, nil
}

// attach sets the profile id on every child entity.
func (g *Graph) attach(pid uuid.UUID) {
	for _, x := range g.Goals {
		x.ProfileID = pid
	}
	for _, x := range g.Constraints {
		x.ProfileID = pid
	}
	g.DietaryPreference.ProfileID = pid
	g.MealPlan.ProfileID = pid
	for _, x := range g.MealSchedules {
		x.ProfileID = pid
	}
	g.WorkoutPlan.ProfileID = pid
	for _, x := range g.WorkoutSchedules {
		x.ProfileID = pid
	}
	g.Hydration.ProfileID = pid
	g.SupplementPreference.ProfileID = pid
	if g.Lifestyle != nil {
		g.Lifestyle.ProfileID = pid
	}
}

// Build validates a complete agent_context and returns the unsaved graph.
// Missing sections or fields fail with OnboardingIncomplete; invalid values
// fail with InvalidInput naming the section and field.
func Build(userID string, sections map[string]model.Section, now time.Time) (*Graph, error) {
	for _, meta := range onboarding.States() {
		s, ok := sections[meta.Key]
		if !ok || s == nil {
			return nil, errx.OnboardingIncomplete(meta.Key)
		}
		if missing := meta.MissingFields(s); len(missing) > 0 {
			return nil, errx.OnboardingIncomplete(meta.Key + "." + missing[0])
		}
	}

	b := builder{sections: sections, now: now}
	g := &Graph{}
	var err error
	if g.Profile, g.Lifestyle, err = b.profile(userID); err != nil {
		return nil, err
	}
	if g.Goals, err = b.goals(); err != nil {
		return nil, err
	}
	if g.Constraints, err = b.constraints(); err != nil {
		return nil, err
	}
	if g.DietaryPreference, err = b.dietaryPreference(); err != nil {
		return nil, err
	}
	if g.MealPlan, err = b.mealPlan(); err != nil {
		return nil, err
	}
	if g.MealSchedules, err = b.mealSchedules(); err != nil {
		return nil, err
	}
	if g.WorkoutPlan, err = b.workoutPlan(); err != nil {
		return nil, err
	}
	if g.WorkoutSchedules, err = b.workoutSchedules(); err != nil {
		return nil, err
	}
	if g.Hydration, g.SupplementPreference, err = b.hydration(); err != nil {
		return nil, err
	}
	return g, nil
}

type builder struct {
	sections map[string]model.Section
	now      time.Time
}

func (b builder) section(key string) model.Section {
	return b.sections[key]
}

func invalid(section, field, format string, args ...any) error {
	return errx.InvalidInputf(section+"."+field, format, args...)
}

func (b builder) wholeNumber(key, field string) (int, error) {
	n, ok := plans.ToInt(b.section(key)[field])
	if !ok {
		return 0, invalid(key, field, "%s must be a whole number", field)
	}
	return n, nil
}

func (b builder) number(key, field string) (float64, error) {
	f, ok := plans.ToFloat(b.section(key)[field])
	if !ok {
		return 0, invalid(key, field, "%s must be a number", field)
	}
	return f, nil
}

func (b builder) list(key, field string) ([]string, error) {
	v, present := b.section(key)[field]
	if !present || v == nil {
		return []string{}, nil
	}
	list, ok := plans.ToStrings(v)
	if !ok {
		return nil, invalid(key, field, "%s must be a list of strings", field)
	}
	return list, nil
}

func (b builder) optionalFloat(key, field string) (*float64, error) {
	if !b.section(key).Has(field) {
		return nil, nil
	}
	f, err := b.number(key, field)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (b builder) profile(userID string) (*UserProfile, *LifestyleBaseline, error) {
	key := onboarding.SectionFitnessAssessment
	fa := b.section(key)
	level, err := plans.ValidateEnum("fitness_level", fa.String("fitness_level"), plans.FitnessLevels)
	if err != nil {
		return nil, nil, invalid(key, "fitness_level", "%s", errx.MessageOf(err))
	}
	weight, err := b.optionalFloat(key, "body_weight_kg")
	if err != nil {
		return nil, nil, err
	}
	p := &UserProfile{
		UserID:       userID,
		FitnessLevel: level,
		BodyWeightKg: weight,
		IsLocked:     true,
		CreatedAt:    b.now,
		UpdatedAt:    b.now,
	}

	var lifestyle *LifestyleBaseline
	lb := &LifestyleBaseline{CreatedAt: b.now}
	ratings := []struct {
		field string
		dst   **int
	}{
		{"energy_level", &lb.EnergyLevel},
		{"stress_level", &lb.StressLevel},
		{"sleep_quality", &lb.SleepQuality},
	}
	for _, r := range ratings {
		if !fa.Has(r.field) {
			continue
		}
		n, err := b.wholeNumber(key, r.field)
		if err != nil {
			return nil, nil, err
		}
		if err := schedule.ValidateRating(r.field, n); err != nil {
			return nil, nil, invalid(key, r.field, "%s", errx.MessageOf(err))
		}
		*r.dst = &n
		lifestyle = lb
	}
	return p, lifestyle, nil
}

func (b builder) goals() ([]*FitnessGoal, error) {
	key := onboarding.SectionGoalSetting
	gs := b.section(key)
	primary, err := plans.ValidateEnum("primary_goal", gs.String("primary_goal"), plans.Goals)
	if err != nil {
		return nil, invalid(key, "primary_goal", "%s", errx.MessageOf(err))
	}
	target, err := b.optionalFloat(key, "target_weight_kg")
	if err != nil {
		return nil, err
	}
	bodyFat, err := b.optionalFloat(key, "target_body_fat_percentage")
	if err != nil {
		return nil, err
	}
	out := []*FitnessGoal{{
		GoalType:                primary,
		Priority:                1,
		TargetWeightKg:          target,
		TargetBodyFatPercentage: bodyFat,
		CreatedAt:               b.now,
	}}
	if gs.Has("secondary_goal") {
		secondary, err := plans.ValidateEnum("secondary_goal", gs.String("secondary_goal"), plans.Goals)
		if err != nil {
			return nil, invalid(key, "secondary_goal", "%s", errx.MessageOf(err))
		}
		if secondary != primary {
			out = append(out, &FitnessGoal{GoalType: secondary, Priority: 2, CreatedAt: b.now})
		}
	}
	return out, nil
}

func (b builder) constraints() ([]*PhysicalConstraint, error) {
	var out []*PhysicalConstraint
	add := func(key, field, kind string) error {
		list, err := b.list(key, field)
		if err != nil {
			return err
		}
		for _, d := range list {
			out = append(out, &PhysicalConstraint{Type: kind, Description: d, CreatedAt: b.now})
		}
		return nil
	}
	if err := add(onboarding.SectionFitnessAssessment, "limitations", ConstraintLimitation); err != nil {
		return nil, err
	}
	if err := add(onboarding.SectionWorkoutConstraints, "injuries", ConstraintInjury); err != nil {
		return nil, err
	}
	if err := add(onboarding.SectionWorkoutConstraints, "limitations", ConstraintWorkoutLimitation); err != nil {
		return nil, err
	}
	return out, nil
}

func (b builder) dietaryPreference() (*DietaryPreference, error) {
	key := onboarding.SectionDietPreferences
	dp := b.section(key)
	diet, err := plans.ValidateEnum("diet_type", dp.String("diet_type"), plans.DietTypes)
	if err != nil {
		return nil, invalid(key, "diet_type", "%s", errx.MessageOf(err))
	}
	lists := map[string][]string{}
	for _, field := range []string{"allergies", "intolerances", "dislikes"} {
		if lists[field], err = b.list(key, field); err != nil {
			return nil, err
		}
	}
	return &DietaryPreference{
		DietType:     diet,
		Allergies:    datatypes.NewJSONType(lists["allergies"]),
		Intolerances: datatypes.NewJSONType(lists["intolerances"]),
		Dislikes:     datatypes.NewJSONType(lists["dislikes"]),
		PrepLevel:    dp.String("prep_level"),
		CreatedAt:    b.now,
	}, nil
}

func (b builder) mealPlan() (*MealPlan, error) {
	key := onboarding.SectionMealPlan
	calories, err := b.wholeNumber(key, "daily_calories")
	if err != nil {
		return nil, err
	}
	if calories <= 0 {
		return nil, invalid(key, "daily_calories", "daily_calories must be positive, got %d", calories)
	}
	var pct [3]float64
	for i, field := range []string{"protein_percentage", "carbs_percentage", "fats_percentage"} {
		if pct[i], err = b.number(key, field); err != nil {
			return nil, err
		}
	}
	if err := plans.ValidateMacroPercentages(pct[0], pct[1], pct[2]); err != nil {
		return nil, invalid(key, "macros", "%s", errx.MessageOf(err))
	}
	freq, err := b.wholeNumber(key, "meal_frequency")
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(b.section(key)["plan"])
	if err != nil {
		return nil, invalid(key, "plan", "plan is not serializable: %v", err)
	}
	return &MealPlan{
		DailyCalorieTarget: calories,
		ProteinPercentage:  pct[0],
		CarbsPercentage:    pct[1],
		FatsPercentage:     pct[2],
		MealFrequency:      freq,
		PlanData:           datatypes.JSON(data),
		CreatedAt:          b.now,
	}, nil
}

func (b builder) mealSchedules() ([]*MealSchedule, error) {
	key := onboarding.SectionMealSchedule
	meals := onboarding.SectionMeals(b.section(key))
	if err := schedule.ValidateMealSchedule(meals); err != nil {
		return nil, invalid(key, "meals", "%s", errx.MessageOf(err))
	}
	out := make([]*MealSchedule, 0, len(meals))
	for i, m := range meals {
		out = append(out, &MealSchedule{
			MealName:            m.Name,
			ScheduledTime:       m.Time,
			Position:            i,
			EnableNotifications: true,
			CreatedAt:           b.now,
		})
	}
	return out, nil
}

func (b builder) workoutPlan() (*WorkoutPlan, error) {
	key := onboarding.SectionWorkoutPlan
	wp := b.section(key)
	plan, err := plans.DecodeWorkoutPlan(wp["plan"])
	if err != nil {
		return nil, invalid(key, "plan", "%s", errx.MessageOf(err))
	}
	frequency := plan.Frequency
	if n, ok := plans.ToInt(wp["frequency"]); ok {
		frequency = n
	}
	duration := plan.DurationMinutes
	if n, ok := plans.ToInt(wp["duration_minutes"]); ok {
		duration = n
	}
	location := plan.Location
	if l := wp.String("location"); l != "" {
		location = l
	}
	split := plan.TrainingSplit
	if s := wp.String("training_split"); s != "" {
		split = s
	}
	if frequency < 2 || frequency > 7 {
		return nil, invalid(key, "frequency", "frequency must be between 2 and 7, got %d", frequency)
	}
	if duration < 20 || duration > 180 {
		return nil, invalid(key, "duration_minutes", "duration_minutes must be between 20 and 180, got %d", duration)
	}
	equipment, err := b.list(onboarding.SectionWorkoutConstraints, "equipment")
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(wp["plan"])
	if err != nil {
		return nil, invalid(key, "plan", "plan is not serializable: %v", err)
	}
	return &WorkoutPlan{
		Frequency:       frequency,
		DurationMinutes: duration,
		Location:        location,
		TrainingSplit:   split,
		Equipment:       datatypes.NewJSONType(equipment),
		PlanData:        datatypes.JSON(data),
		CreatedAt:       b.now,
	}, nil
}

func (b builder) workoutSchedules() ([]*WorkoutSchedule, error) {
	key := onboarding.SectionWorkoutSchedule
	days, err := b.list(key, "days")
	if err != nil {
		return nil, err
	}
	times, err := b.list(key, "times")
	if err != nil {
		return nil, err
	}
	slots, err := schedule.ValidateWorkoutSchedule(days, times)
	if err != nil {
		return nil, invalid(key, errx.FieldOf(err), "%s", errx.MessageOf(err))
	}
	out := make([]*WorkoutSchedule, 0, len(slots))
	for _, s := range slots {
		if err := schedule.ValidateDayOfWeek(s.DayOfWeek); err != nil {
			return nil, invalid(key, "day_of_week", "%s", errx.MessageOf(err))
		}
		out = append(out, &WorkoutSchedule{
			DayOfWeek:           s.DayOfWeek,
			ScheduledTime:       s.Time,
			EnableNotifications: true,
			CreatedAt:           b.now,
		})
	}
	return out, nil
}

func (b builder) hydration() (*HydrationPreference, *SupplementPreference, error) {
	key := onboarding.SectionHydration
	hs := b.section(key)
	water, err := b.wholeNumber(key, "daily_water_target_ml")
	if err != nil {
		return nil, nil, err
	}
	if water < onboarding.MinWaterML || water > onboarding.MaxWaterML {
		return nil, nil, invalid(key, "daily_water_target_ml", "daily_water_target_ml must be between %d and %d, got %d",
			onboarding.MinWaterML, onboarding.MaxWaterML, water)
	}
	reminder, err := b.wholeNumber(key, "reminder_frequency_minutes")
	if err != nil {
		return nil, nil, err
	}
	if reminder < onboarding.MinReminderMinutes || reminder > onboarding.MaxReminderMinutes {
		return nil, nil, invalid(key, "reminder_frequency_minutes", "reminder_frequency_minutes must be between %d and %d, got %d",
			onboarding.MinReminderMinutes, onboarding.MaxReminderMinutes, reminder)
	}
	current, err := b.list(key, "current_supplements")
	if err != nil {
		return nil, nil, err
	}
	hydration := &HydrationPreference{
		DailyWaterTargetML:       water,
		ReminderFrequencyMinutes: reminder,
		EnableReminders:          true,
		CreatedAt:                b.now,
	}
	supplements := &SupplementPreference{
		Interested:         hs.Bool("supplement_interested"),
		CurrentSupplements: datatypes.NewJSONType(current),
		CreatedAt:          b.now,
	}
	return hydration, supplements, nil
}
