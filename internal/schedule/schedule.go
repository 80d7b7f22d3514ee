// Package schedule holds the pure validators for workout and meal schedules.
package schedule

import (
	"fmt"
	"strings"

	errx "github.com/fitcoach-core/server/internal/core/error"
)

// MinMealSpacingMinutes is the smallest allowed gap between consecutive meals.
const MinMealSpacingMinutes = 120

// Days lists the canonical day names; the index is the day-of-week number.
var Days = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DayNameToNumber maps a case-insensitive day name to 0 (Monday) .. 6 (Sunday).
func DayNameToNumber(name string) (int, error) {
	n := strings.TrimSpace(name)
	for i, d := range Days {
		if strings.EqualFold(d, n) {
			return i, nil
		}
	}
	return -1, errx.InvalidInputf("days", "invalid day name %q: expected one of Monday..Sunday", name)
}

// CanonicalDay returns the canonical capitalization of a day name.
func CanonicalDay(name string) (string, error) {
	n, err := DayNameToNumber(name)
	if err != nil {
		return "", err
	}
	return Days[n], nil
}

// ValidateDayOfWeek checks a day number is within [0,6].
func ValidateDayOfWeek(day int) error {
	if day < 0 || day > 6 {
		return errx.InvalidInputf("day_of_week", "day_of_week %d out of range [0,6]", day)
	}
	return nil
}

// ValidateRating checks a 1-10 lifestyle rating.
func ValidateRating(field string, v int) error {
	if v < 1 || v > 10 {
		return errx.InvalidInputf(field, "%s must be between 1 and 10, got %d", field, v)
	}
	return nil
}

// ParseClock parses a strict HH:MM time and returns minutes after midnight.
// Exactly two digits per segment are required.
func ParseClock(v string) (int, error) {
	if len(v) != 5 || v[2] != ':' {
		return 0, invalidTime(v)
	}
	h, ok := twoDigits(v[0], v[1])
	if !ok || h > 23 {
		return 0, invalidTime(v)
	}
	m, ok := twoDigits(v[3], v[4])
	if !ok || m > 59 {
		return 0, invalidTime(v)
	}
	return h*60 + m, nil
}

// ValidateTime checks the HH:MM format.
func ValidateTime(v string) error {
	_, err := ParseClock(v)
	return err
}

// FormatClock renders minutes after midnight as HH:MM.
func FormatClock(minutes int) string {
	minutes = ((minutes % 1440) + 1440) % 1440
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}

func invalidTime(v string) error {
	return errx.InvalidInputf("times", "invalid time format %q: expected HH:MM between 00:00 and 23:59", v)
}

// Meal is one slot of a day's meal sequence.
type Meal struct {
	Name string `json:"meal_name"`
	Time string `json:"scheduled_time"`
}

// ValidateMealChronology checks that times strictly increase along the sequence.
func ValidateMealChronology(meals []Meal) error {
	prev := -1
	for i, m := range meals {
		t, err := ParseClock(m.Time)
		if err != nil {
			return err
		}
		if i > 0 && t <= prev {
			return errx.InvalidInputf("meal_schedule", "meal %q at %s is not after the previous meal", m.Name, m.Time)
		}
		prev = t
	}
	return nil
}

// ValidateMealSpacing checks consecutive meals are at least two hours apart.
func ValidateMealSpacing(meals []Meal) error {
	for i := 1; i < len(meals); i++ {
		a, err := ParseClock(meals[i-1].Time)
		if err != nil {
			return err
		}
		b, err := ParseClock(meals[i].Time)
		if err != nil {
			return err
		}
		if b-a < MinMealSpacingMinutes {
			return errx.InvalidInputf("meal_schedule",
				"meals %q and %q must be at least %d minutes apart", meals[i-1].Name, meals[i].Name, MinMealSpacingMinutes)
		}
	}
	return nil
}

// ValidateMealSchedule runs every meal check in order: names, times, chronology, spacing.
func ValidateMealSchedule(meals []Meal) error {
	if len(meals) == 0 {
		return errx.InvalidInput("meal_schedule", "at least one meal is required")
	}
	seen := make(map[string]bool, len(meals))
	for _, m := range meals {
		name := strings.ToLower(strings.TrimSpace(m.Name))
		if name == "" {
			return errx.InvalidInput("meal_schedule", "meal_name must not be empty")
		}
		if seen[name] {
			return errx.InvalidInputf("meal_schedule", "duplicate meal %q", m.Name)
		}
		seen[name] = true
	}
	if err := ValidateMealChronology(meals); err != nil {
		return err
	}
	return ValidateMealSpacing(meals)
}

// WorkoutSlot is one scheduled training day.
type WorkoutSlot struct {
	Day       string `json:"day"`
	DayOfWeek int    `json:"day_of_week"`
	Time      string `json:"time"`
}

// ValidateWorkoutSchedule checks the parallel days/times arrays and returns
// normalized slots.
func ValidateWorkoutSchedule(days, times []string) ([]WorkoutSlot, error) {
	if len(days) == 0 {
		return nil, errx.InvalidInput("days", "at least one training day is required")
	}
	if len(days) != len(times) {
		return nil, errx.InvalidInputf("times", "days and times must have the same length (%d vs %d)", len(days), len(times))
	}
	seen := make(map[int]bool, len(days))
	slots := make([]WorkoutSlot, 0, len(days))
	for i, d := range days {
		n, err := DayNameToNumber(d)
		if err != nil {
			return nil, err
		}
		if seen[n] {
			return nil, errx.InvalidInputf("days", "day %s listed twice", Days[n])
		}
		seen[n] = true
		if err := ValidateTime(times[i]); err != nil {
			return nil, err
		}
		slots = append(slots, WorkoutSlot{Day: Days[n], DayOfWeek: n, Time: times[i]})
	}
	return slots, nil
}
