package plans

// Exercise types.
const (
	TypeCompound  = "compound"
	TypeIsolation = "isolation"
	TypeCardio    = "cardio"
	TypeMobility  = "mobility"
)

// Movement patterns used by split templates.
const (
	patSquat          = "squat"
	patHinge          = "hinge"
	patLunge          = "lunge"
	patHorizontalPush = "horizontal_push"
	patVerticalPush   = "vertical_push"
	patHorizontalPull = "horizontal_pull"
	patVerticalPull   = "vertical_pull"
	patChestIso       = "chest_iso"
	patShoulderIso    = "shoulder_iso"
	patBiceps         = "biceps"
	patTriceps        = "triceps"
	patLegIso         = "leg_iso"
	patCalves         = "calves"
	patCore           = "core"
	patCardio         = "cardio"
	patMobility       = "mobility"
)

type catalogEntry struct {
	name      string
	pattern   string
	kind      string
	equipment string // empty for bodyweight
	timed     bool
	// avoid lists limitation keywords that rule the movement out.
	avoid []string
}

// gymEquipment is assumed available at any gym.
var gymEquipment = map[string]bool{
	"barbell": true, "dumbbells": true, "machine": true, "cable": true, "kettlebell": true,
	"pull_up_bar": true, "resistance_bands": true, "bench": true, "treadmill": true,
	"rower": true, "bike": true, "jump_rope": true,
}

var equipmentAliases = map[string]string{
	"dumbbell": "dumbbells", "dumbells": "dumbbells", "db": "dumbbells",
	"barbells": "barbell", "kettlebells": "kettlebell", "kettle bell": "kettlebell",
	"band": "resistance_bands", "bands": "resistance_bands", "resistance band": "resistance_bands",
	"resistance bands": "resistance_bands", "pull-up bar": "pull_up_bar", "pullup bar": "pull_up_bar",
	"pull up bar": "pull_up_bar", "chin-up bar": "pull_up_bar", "stationary bike": "bike",
	"exercise bike": "bike", "spin bike": "bike", "rowing machine": "rower", "jump rope": "jump_rope",
	"skipping rope": "jump_rope", "cables": "cable", "machines": "machine", "weight bench": "bench",
}

var noEquipment = map[string]bool{"none": true, "no equipment": true, "bodyweight": true, "body weight": true, "nothing": true}

// NormalizeEquipment canonicalizes free-form equipment names.
func NormalizeEquipment(in []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, raw := range lowerAll(in) {
		if noEquipment[raw] {
			continue
		}
		name := raw
		if alias, ok := equipmentAliases[raw]; ok {
			name = alias
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

var catalog = []catalogEntry{
	// squat
	{name: "Barbell Back Squat", pattern: patSquat, kind: TypeCompound, equipment: "barbell", avoid: []string{"knee", "back"}},
	{name: "Leg Press", pattern: patSquat, kind: TypeCompound, equipment: "machine", avoid: []string{"knee"}},
	{name: "Goblet Squat", pattern: patSquat, kind: TypeCompound, equipment: "dumbbells", avoid: []string{"knee"}},
	{name: "Kettlebell Goblet Squat", pattern: patSquat, kind: TypeCompound, equipment: "kettlebell", avoid: []string{"knee"}},
	{name: "Bodyweight Squat", pattern: patSquat, kind: TypeCompound, avoid: []string{"knee"}},
	{name: "Box Squat to Bench", pattern: patSquat, kind: TypeCompound},

	// hinge
	{name: "Romanian Deadlift", pattern: patHinge, kind: TypeCompound, equipment: "barbell", avoid: []string{"back"}},
	{name: "Barbell Hip Thrust", pattern: patHinge, kind: TypeCompound, equipment: "barbell"},
	{name: "Dumbbell Romanian Deadlift", pattern: patHinge, kind: TypeCompound, equipment: "dumbbells", avoid: []string{"back"}},
	{name: "Kettlebell Swing", pattern: patHinge, kind: TypeCompound, equipment: "kettlebell", avoid: []string{"back"}},
	{name: "Glute Bridge", pattern: patHinge, kind: TypeCompound},
	{name: "Single-Leg Hip Hinge", pattern: patHinge, kind: TypeCompound, avoid: []string{"back", "balance"}},

	// lunge
	{name: "Dumbbell Walking Lunge", pattern: patLunge, kind: TypeCompound, equipment: "dumbbells", avoid: []string{"knee"}},
	{name: "Smith Machine Split Squat", pattern: patLunge, kind: TypeCompound, equipment: "machine", avoid: []string{"knee"}},
	{name: "Reverse Lunge", pattern: patLunge, kind: TypeCompound, avoid: []string{"knee"}},
	{name: "Bulgarian Split Squat", pattern: patLunge, kind: TypeCompound, avoid: []string{"knee", "balance"}},
	{name: "Step-Up", pattern: patLunge, kind: TypeCompound, avoid: []string{"knee"}},

	// horizontal push
	{name: "Barbell Bench Press", pattern: patHorizontalPush, kind: TypeCompound, equipment: "barbell", avoid: []string{"shoulder"}},
	{name: "Dumbbell Bench Press", pattern: patHorizontalPush, kind: TypeCompound, equipment: "dumbbells", avoid: []string{"shoulder"}},
	{name: "Machine Chest Press", pattern: patHorizontalPush, kind: TypeCompound, equipment: "machine"},
	{name: "Push-Up", pattern: patHorizontalPush, kind: TypeCompound, avoid: []string{"wrist", "shoulder"}},
	{name: "Incline Push-Up", pattern: patHorizontalPush, kind: TypeCompound, avoid: []string{"wrist"}},

	// vertical push
	{name: "Standing Overhead Press", pattern: patVerticalPush, kind: TypeCompound, equipment: "barbell", avoid: []string{"shoulder", "back"}},
	{name: "Seated Dumbbell Shoulder Press", pattern: patVerticalPush, kind: TypeCompound, equipment: "dumbbells", avoid: []string{"shoulder"}},
	{name: "Machine Shoulder Press", pattern: patVerticalPush, kind: TypeCompound, equipment: "machine", avoid: []string{"shoulder"}},
	{name: "Band Overhead Press", pattern: patVerticalPush, kind: TypeCompound, equipment: "resistance_bands", avoid: []string{"shoulder"}},
	{name: "Pike Push-Up", pattern: patVerticalPush, kind: TypeCompound, avoid: []string{"shoulder", "wrist"}},

	// horizontal pull
	{name: "Seated Cable Row", pattern: patHorizontalPull, kind: TypeCompound, equipment: "cable"},
	{name: "Barbell Bent-Over Row", pattern: patHorizontalPull, kind: TypeCompound, equipment: "barbell", avoid: []string{"back"}},
	{name: "One-Arm Dumbbell Row", pattern: patHorizontalPull, kind: TypeCompound, equipment: "dumbbells"},
	{name: "Resistance Band Row", pattern: patHorizontalPull, kind: TypeCompound, equipment: "resistance_bands"},
	{name: "Inverted Table Row", pattern: patHorizontalPull, kind: TypeCompound, avoid: []string{"shoulder"}},

	// vertical pull
	{name: "Lat Pulldown", pattern: patVerticalPull, kind: TypeCompound, equipment: "cable", avoid: []string{"shoulder"}},
	{name: "Pull-Up", pattern: patVerticalPull, kind: TypeCompound, equipment: "pull_up_bar", avoid: []string{"shoulder", "elbow"}},
	{name: "Band Lat Pulldown", pattern: patVerticalPull, kind: TypeCompound, equipment: "resistance_bands"},
	{name: "Prone Superman Pull", pattern: patVerticalPull, kind: TypeIsolation, avoid: []string{"back"}},

	// chest isolation
	{name: "Cable Chest Fly", pattern: patChestIso, kind: TypeIsolation, equipment: "cable", avoid: []string{"shoulder"}},
	{name: "Dumbbell Chest Fly", pattern: patChestIso, kind: TypeIsolation, equipment: "dumbbells", avoid: []string{"shoulder"}},
	{name: "Band Chest Fly", pattern: patChestIso, kind: TypeIsolation, equipment: "resistance_bands"},

	// shoulder isolation
	{name: "Dumbbell Lateral Raise", pattern: patShoulderIso, kind: TypeIsolation, equipment: "dumbbells", avoid: []string{"shoulder"}},
	{name: "Cable Face Pull", pattern: patShoulderIso, kind: TypeIsolation, equipment: "cable"},
	{name: "Band Pull-Apart", pattern: patShoulderIso, kind: TypeIsolation, equipment: "resistance_bands"},
	{name: "Prone Y-T-W Raise", pattern: patShoulderIso, kind: TypeIsolation},

	// biceps
	{name: "EZ-Bar Curl", pattern: patBiceps, kind: TypeIsolation, equipment: "barbell", avoid: []string{"elbow", "wrist"}},
	{name: "Dumbbell Hammer Curl", pattern: patBiceps, kind: TypeIsolation, equipment: "dumbbells", avoid: []string{"elbow"}},
	{name: "Cable Curl", pattern: patBiceps, kind: TypeIsolation, equipment: "cable", avoid: []string{"elbow"}},
	{name: "Band Biceps Curl", pattern: patBiceps, kind: TypeIsolation, equipment: "resistance_bands"},
	{name: "Towel Isometric Curl", pattern: patBiceps, kind: TypeIsolation, timed: true},

	// triceps
	{name: "Cable Triceps Pushdown", pattern: patTriceps, kind: TypeIsolation, equipment: "cable", avoid: []string{"elbow"}},
	{name: "Overhead Dumbbell Triceps Extension", pattern: patTriceps, kind: TypeIsolation, equipment: "dumbbells", avoid: []string{"elbow", "shoulder"}},
	{name: "Band Triceps Extension", pattern: patTriceps, kind: TypeIsolation, equipment: "resistance_bands"},
	{name: "Bench Dip", pattern: patTriceps, kind: TypeIsolation, avoid: []string{"shoulder", "wrist"}},
	{name: "Diamond Push-Up", pattern: patTriceps, kind: TypeIsolation, avoid: []string{"wrist", "elbow"}},

	// leg isolation
	{name: "Lying Leg Curl", pattern: patLegIso, kind: TypeIsolation, equipment: "machine"},
	{name: "Leg Extension", pattern: patLegIso, kind: TypeIsolation, equipment: "machine", avoid: []string{"knee"}},
	{name: "Band Hamstring Curl", pattern: patLegIso, kind: TypeIsolation, equipment: "resistance_bands"},
	{name: "Single-Leg Glute Bridge", pattern: patLegIso, kind: TypeIsolation},

	// calves
	{name: "Standing Calf Raise Machine", pattern: patCalves, kind: TypeIsolation, equipment: "machine", avoid: []string{"ankle"}},
	{name: "Dumbbell Calf Raise", pattern: patCalves, kind: TypeIsolation, equipment: "dumbbells", avoid: []string{"ankle"}},
	{name: "Bodyweight Calf Raise", pattern: patCalves, kind: TypeIsolation, avoid: []string{"ankle"}},

	// core
	{name: "Cable Woodchopper", pattern: patCore, kind: TypeIsolation, equipment: "cable", avoid: []string{"back"}},
	{name: "Hanging Knee Raise", pattern: patCore, kind: TypeIsolation, equipment: "pull_up_bar", avoid: []string{"shoulder"}},
	{name: "Plank", pattern: patCore, kind: TypeIsolation, timed: true},
	{name: "Dead Bug", pattern: patCore, kind: TypeIsolation},
	{name: "Side Plank", pattern: patCore, kind: TypeIsolation, timed: true, avoid: []string{"shoulder"}},

	// cardio
	{name: "Treadmill Intervals", pattern: patCardio, kind: TypeCardio, equipment: "treadmill", timed: true, avoid: []string{"knee", "ankle"}},
	{name: "Stationary Bike Intervals", pattern: patCardio, kind: TypeCardio, equipment: "bike", timed: true},
	{name: "Rowing Machine Intervals", pattern: patCardio, kind: TypeCardio, equipment: "rower", timed: true, avoid: []string{"back"}},
	{name: "Jump Rope Intervals", pattern: patCardio, kind: TypeCardio, equipment: "jump_rope", timed: true, avoid: []string{"knee", "ankle"}},
	{name: "Jumping Jack and High Knee Circuit", pattern: patCardio, kind: TypeCardio, timed: true, avoid: []string{"knee", "ankle"}},
	{name: "Brisk Marching Circuit", pattern: patCardio, kind: TypeCardio, timed: true},

	// mobility
	{name: "Dynamic Warm-Up", pattern: patMobility, kind: TypeMobility, timed: true},
	{name: "Hip and Thoracic Mobility Flow", pattern: patMobility, kind: TypeMobility, timed: true},
}

func entriesFor(pattern string) []catalogEntry {
	out := []catalogEntry{}
	for _, e := range catalog {
		if e.pattern == pattern {
			out = append(out, e)
		}
	}
	return out
}

func isCompoundPattern(p string) bool {
	switch p {
	case patSquat, patHinge, patLunge, patHorizontalPush, patVerticalPush, patHorizontalPull, patVerticalPull:
		return true
	}
	return false
}
