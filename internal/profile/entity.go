package profile

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Constraint types recorded on PhysicalConstraint.
const (
	ConstraintLimitation        = "limitation"
	ConstraintInjury            = "injury"
	ConstraintWorkoutLimitation = "workout_limitation"
)

// UserProfile is the root of the materialized profile graph.
type UserProfile struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       string    `gorm:"column:user_id;size:64;not null;uniqueIndex" json:"user_id"`
	FitnessLevel string    `gorm:"column:fitness_level;size:32;not null" json:"fitness_level"`
	BodyWeightKg *float64  `gorm:"column:body_weight_kg" json:"body_weight_kg,omitempty"`
	IsLocked     bool      `gorm:"column:is_locked;not null" json:"is_locked"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

func (UserProfile) TableName() string { return "user_profile" }

type FitnessGoal struct {
	ID                      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProfileID               uuid.UUID `gorm:"type:uuid;not null;index" json:"profile_id"`
	GoalType                string    `gorm:"column:goal_type;size:32;not null" json:"goal_type"`
	Priority                int       `gorm:"column:priority;not null" json:"priority"`
	TargetWeightKg          *float64  `gorm:"column:target_weight_kg" json:"target_weight_kg,omitempty"`
	TargetBodyFatPercentage *float64  `gorm:"column:target_body_fat_percentage" json:"target_body_fat_percentage,omitempty"`
	CreatedAt               time.Time `gorm:"not null" json:"created_at"`
}

func (FitnessGoal) TableName() string { return "fitness_goal" }

type PhysicalConstraint struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProfileID   uuid.UUID `gorm:"type:uuid;not null;index" json:"profile_id"`
	Type        string    `gorm:"column:type;size:32;not null" json:"type"`
	Description string    `gorm:"column:description;not null" json:"description"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

func (PhysicalConstraint) TableName() string { return "physical_constraint" }

type DietaryPreference struct {
	ID           uuid.UUID                    `gorm:"type:uuid;primaryKey" json:"id"`
	ProfileID    uuid.UUID                    `gorm:"type:uuid;not null;uniqueIndex" json:"profile_id"`
	DietType     string                       `gorm:"column:diet_type;size:32;not null" json:"diet_type"`
	Allergies    datatypes.JSONType[[]string] `gorm:"column:allergies" json:"allergies"`
	Intolerances datatypes.JSONType[[]string] `gorm:"column:intolerances" json:"intolerances"`
	Dislikes     datatypes.JSONType[[]string] `gorm:"column:dislikes" json:"dislikes"`
	PrepLevel    string                       `gorm:"column:prep_level;size:32" json:"prep_level,omitempty"`
	CreatedAt    time.Time                    `gorm:"not null" json:"created_at"`
}

func (DietaryPreference) TableName() string { return "dietary_preference" }

type MealPlan struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ProfileID          uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"profile_id"`
	DailyCalorieTarget int            `gorm:"column:daily_calorie_target;not null" json:"daily_calorie_target"`
	ProteinPercentage  float64        `gorm:"column:protein_percentage;not null" json:"protein_percentage"`
	CarbsPercentage    float64        `gorm:"column:carbs_percentage;not null" json:"carbs_percentage"`
	FatsPercentage     float64        `gorm:"column:fats_percentage;not null" json:"fats_percentage"`
	MealFrequency      int            `gorm:"column:meal_frequency;not null" json:"meal_frequency"`
	PlanData           datatypes.JSON `gorm:"column:plan_data" json:"plan_data"`
	CreatedAt          time.Time      `gorm:"not null" json:"created_at"`
}

func (MealPlan) TableName() string { return "meal_plan" }

type MealSchedule struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProfileID           uuid.UUID `gorm:"type:uuid;not null;index" json:"profile_id"`
	MealName            string    `gorm:"column:meal_name;size:64;not null" json:"meal_name"`
	ScheduledTime       string    `gorm:"column:scheduled_time;size:5;not null" json:"scheduled_time"`
	Position            int       `gorm:"column:position;not null" json:"position"`
	EnableNotifications bool      `gorm:"column:enable_notifications;not null" json:"enable_notifications"`
	CreatedAt           time.Time `gorm:"not null" json:"created_at"`
}

func (MealSchedule) TableName() string { return "meal_schedule" }

type WorkoutPlan struct {
	ID              uuid.UUID                    `gorm:"type:uuid;primaryKey" json:"id"`
	ProfileID       uuid.UUID                    `gorm:"type:uuid;not null;uniqueIndex" json:"profile_id"`
	Frequency       int                          `gorm:"column:frequency;not null" json:"frequency"`
	DurationMinutes int                          `gorm:"column:duration_minutes;not null" json:"duration_minutes"`
	Location        string                       `gorm:"column:location;size:16" json:"location"`
	TrainingSplit   string                       `gorm:"column:training_split;size:32;not null" json:"training_split"`
	Equipment       datatypes.JSONType[[]string] `gorm:"column:equipment" json:"equipment"`
	PlanData        datatypes.JSON               `gorm:"column:plan_data" json:"plan_data"`
	CreatedAt       time.Time                    `gorm:"not null" json:"created_at"`
}

func (WorkoutPlan) TableName() string { return "workout_plan" }

type WorkoutSchedule struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProfileID           uuid.UUID `gorm:"type:uuid;not null;index" json:"profile_id"`
	DayOfWeek           int       `gorm:"column:day_of_week;not null" json:"day_of_week"`
	ScheduledTime       string    `gorm:"column:scheduled_time;size:5;not null" json:"scheduled_time"`
	EnableNotifications bool      `gorm:"column:enable_notifications;not null" json:"enable_notifications"`
	CreatedAt           time.Time `gorm:"not null" json:"created_at"`
}

func (WorkoutSchedule) TableName() string { return "workout_schedule" }

type HydrationPreference struct {
	ID                       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProfileID                uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"profile_id"`
	DailyWaterTargetML       int       `gorm:"column:daily_water_target_ml;not null" json:"daily_water_target_ml"`
	ReminderFrequencyMinutes int       `gorm:"column:reminder_frequency_minutes;not null" json:"reminder_frequency_minutes"`
	EnableReminders          bool      `gorm:"column:enable_reminders;not null" json:"enable_reminders"`
	CreatedAt                time.Time `gorm:"not null" json:"created_at"`
}

func (HydrationPreference) TableName() string { return "hydration_preference" }

// LifestyleBaseline holds the optional 1-10 self ratings.
type LifestyleBaseline struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProfileID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"profile_id"`
	EnergyLevel  *int      `gorm:"column:energy_level" json:"energy_level,omitempty"`
	StressLevel  *int      `gorm:"column:stress_level" json:"stress_level,omitempty"`
	SleepQuality *int      `gorm:"column:sleep_quality" json:"sleep_quality,omitempty"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

func (LifestyleBaseline) TableName() string { return "lifestyle_baseline" }

type SupplementPreference struct {
	ID                 uuid.UUID                    `gorm:"type:uuid;primaryKey" json:"id"`
	ProfileID          uuid.UUID                    `gorm:"type:uuid;not null;uniqueIndex" json:"profile_id"`
	Interested         bool                         `gorm:"column:interested;not null" json:"interested"`
	CurrentSupplements datatypes.JSONType[[]string] `gorm:"column:current_supplements" json:"current_supplements"`
	CreatedAt          time.Time                    `gorm:"not null" json:"created_at"`
}

func (SupplementPreference) TableName() string { return "supplement_preference" }

// Models lists every profile graph table, parents first.
func Models() []any {
	return []any{
		&UserProfile{}, &FitnessGoal{}, &PhysicalConstraint{}, &DietaryPreference{},
		&MealPlan{}, &MealSchedule{}, &WorkoutPlan{}, &WorkoutSchedule{},
		&HydrationPreference{}, &LifestyleBaseline{}, &SupplementPreference{},
	}
}

// Migrate creates the profile graph tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

func newID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (p *UserProfile) BeforeCreate(*gorm.DB) error { newID(&p.ID); return nil }
func (g *FitnessGoal) BeforeCreate(*gorm.DB) error { newID(&g.ID); return nil }
func (c *PhysicalConstraint) BeforeCreate(*gorm.DB) error { newID(&c.ID); return nil }
func (d *DietaryPreference) BeforeCreate(*gorm.DB) error { newID(&d.ID); return nil }
func (m *MealPlan) BeforeCreate(*gorm.DB) error { newID(&m.ID); return nil }
func (m *MealSchedule) BeforeCreate(*gorm.DB) error { newID(&m.ID); return nil }
func (w *WorkoutPlan) BeforeCreate(*gorm.DB) error { newID(&w.ID); return nil }
func (w *WorkoutSchedule) BeforeCreate(*gorm.DB) error { newID(&w.ID); return nil }
func (h *HydrationPreference) BeforeCreate(*gorm.DB) error { newID(&h.ID); return nil }
func (l *LifestyleBaseline) BeforeCreate(*gorm.DB) error { newID(&l.ID); return nil }
func (s *SupplementPreference) BeforeCreate(*gorm.DB) error { newID(&s.ID); return nil }
