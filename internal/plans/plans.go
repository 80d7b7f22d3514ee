// Package plans generates workout and diet plans from collected onboarding
// inputs. Every function here is deterministic and free of I/O.
package plans

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	errx "github.com/fitcoach-core/server/internal/core/error"
)

// Fitness levels.
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// Primary goals.
const (
	GoalFatLoss        = "fat_loss"
	GoalMuscleGain     = "muscle_gain"
	GoalGeneralFitness = "general_fitness"
)

// Training locations.
const (
	LocationHome = "home"
	LocationGym  = "gym"
)

// Diet types.
const (
	DietOmnivore    = "omnivore"
	DietVegetarian  = "vegetarian"
	DietVegan       = "vegan"
	DietPescatarian = "pescatarian"
)

var (
	FitnessLevels = []string{LevelBeginner, LevelIntermediate, LevelAdvanced}
	Goals         = []string{GoalFatLoss, GoalMuscleGain, GoalGeneralFitness}
	Locations     = []string{LocationHome, LocationGym}
	DietTypes     = []string{DietOmnivore, DietVegetarian, DietVegan, DietPescatarian}
)

// ValidateEnum checks v is one of allowed (case-insensitive) and returns the
// canonical lower-case value.
func ValidateEnum(field, v string, allowed []string) (string, error) {
	n := strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if n == a {
			return a, nil
		}
	}
	return "", errx.InvalidInputf(field, "%s must be one of %s, got %q", field, strings.Join(allowed, ", "), v)
}

// ValidateMacroPercentages checks the three macro shares close to 100.
func ValidateMacroPercentages(protein, carbs, fats float64) error {
	for _, v := range []float64{protein, carbs, fats} {
		if v < 0 || v > 100 || math.IsNaN(v) {
			return errx.InvalidInputf("macros", "macro percentages must be within [0,100], got %.2f/%.2f/%.2f", protein, carbs, fats)
		}
	}
	if sum := protein + carbs + fats; math.Abs(sum-100) > 0.01 {
		return errx.InvalidInputf("macros", "protein, carbs and fats percentages must sum to 100, got %.2f", sum)
	}
	return nil
}

func checkRange(field string, v, lo, hi int) error {
	if v < lo || v > hi {
		return errx.InvalidInputf(field, "%s must be between %d and %d, got %d", field, lo, hi, v)
	}
	return nil
}

// ToInt coerces JSON-ish numbers into an int.
func ToInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case float32:
		return ToInt(float64(n))
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

// ToFloat coerces JSON-ish numbers into a float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// ToStrings coerces a JSON array into a slice of trimmed, non-empty strings.
func ToStrings(v any) ([]string, bool) {
	switch s := v.(type) {
	case nil:
		return []string{}, true
	case []string:
		return cleanStrings(s), true
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return cleanStrings(out), true
	case string:
		if strings.TrimSpace(s) == "" {
			return []string{}, true
		}
		return cleanStrings(strings.Split(s, ",")), true
	}
	return nil, false
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if t := strings.ToLower(strings.TrimSpace(s)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func unknownModification(key string) error {
	return errx.InvalidInput("modifications", fmt.Sprintf("unsupported modification %q", key))
}
