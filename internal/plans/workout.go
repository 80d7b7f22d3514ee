package plans

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	errx "github.com/fitcoach-core/server/internal/core/error"
)

// Training splits.
const (
	SplitFullBody   = "full_body"
	SplitUpperLower = "upper_lower"
	SplitPushPull   = "push_pull_legs"
	SplitBodyPart   = "body_part_split"
)

var Splits = []string{SplitFullBody, SplitUpperLower, SplitPushPull, SplitBodyPart}

var splitTitles = map[string]string{
	SplitFullBody:   "Full Body",
	SplitUpperLower: "Upper / Lower",
	SplitPushPull:   "Push / Pull / Legs",
	SplitBodyPart:   "Body Part Split",
}

// WorkoutInput is everything the workout generator needs.
type WorkoutInput struct {
	FitnessLevel    string   `json:"fitness_level"`
	PrimaryGoal     string   `json:"primary_goal"`
	Frequency       int      `json:"frequency"`
	Location        string   `json:"location"`
	DurationMinutes int      `json:"duration_minutes"`
	Equipment       []string `json:"equipment"`
	Limitations     []string `json:"limitations"`
	// TrainingSplit overrides the decision table when set.
	TrainingSplit string `json:"training_split,omitempty"`
}

type Exercise struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Sets        int    `json:"sets"`
	RepsRange   string `json:"reps_range"`
	RestSeconds int    `json:"rest_seconds"`
	Notes       string `json:"notes"`
	Equipment   string `json:"equipment,omitempty"`
}

type WorkoutDay struct {
	Day       int        `json:"day"`
	Name      string     `json:"name"`
	Focus     string     `json:"focus"`
	Exercises []Exercise `json:"exercises"`
}

type WorkoutPlan struct {
	FitnessLevel    string       `json:"fitness_level"`
	PrimaryGoal     string       `json:"primary_goal"`
	Frequency       int          `json:"frequency"`
	Location        string       `json:"location"`
	DurationMinutes int          `json:"duration_minutes"`
	Equipment       []string     `json:"equipment"`
	Limitations     []string     `json:"limitations"`
	TrainingSplit   string       `json:"training_split"`
	SplitName       string       `json:"split_name"`
	Days            []WorkoutDay `json:"days"`
	Rationale       string       `json:"rationale"`
}

// Input recovers the generator input a plan was built from.
func (p WorkoutPlan) Input() WorkoutInput {
	return WorkoutInput{
		FitnessLevel:    p.FitnessLevel,
		PrimaryGoal:     p.PrimaryGoal,
		Frequency:       p.Frequency,
		Location:        p.Location,
		DurationMinutes: p.DurationMinutes,
		Equipment:       append([]string(nil), p.Equipment...),
		Limitations:     append([]string(nil), p.Limitations...),
		TrainingSplit:   p.TrainingSplit,
	}
}

// AsMap renders the plan as a JSON object for storage in agent context.
func (p WorkoutPlan) AsMap() map[string]any {
	return toMap(p)
}

// DecodeWorkoutPlan accepts a stored plan (map or struct) and returns it typed.
func DecodeWorkoutPlan(v any) (WorkoutPlan, error) {
	var p WorkoutPlan
	if err := fromAny(v, &p); err != nil {
		return WorkoutPlan{}, errx.InvalidInput("plan", "workout plan is malformed")
	}
	if p.TrainingSplit == "" || len(p.Days) == 0 {
		return WorkoutPlan{}, errx.InvalidInput("plan", "workout plan has no training split or days")
	}
	return p, nil
}

// ChooseSplit applies the level x frequency decision table.
func ChooseSplit(level string, frequency int) string {
	switch level {
	case LevelBeginner:
		if frequency <= 3 {
			return SplitFullBody
		}
		return SplitUpperLower
	case LevelIntermediate:
		switch {
		case frequency <= 3:
			return SplitFullBody
		case frequency == 4:
			return SplitUpperLower
		default:
			return SplitPushPull
		}
	default:
		switch {
		case frequency <= 4:
			return SplitUpperLower
		case frequency == 5:
			return SplitPushPull
		default:
			return SplitBodyPart
		}
	}
}

func (in WorkoutInput) normalize() (WorkoutInput, error) {
	var err error
	if in.FitnessLevel, err = ValidateEnum("fitness_level", in.FitnessLevel, FitnessLevels); err != nil {
		return in, err
	}
	if in.PrimaryGoal, err = ValidateEnum("primary_goal", in.PrimaryGoal, Goals); err != nil {
		return in, err
	}
	if err = checkRange("frequency", in.Frequency, 2, 7); err != nil {
		return in, err
	}
	if in.Location, err = ValidateEnum("location", in.Location, Locations); err != nil {
		return in, err
	}
	if err = checkRange("duration_minutes", in.DurationMinutes, 20, 180); err != nil {
		return in, err
	}
	if in.TrainingSplit != "" {
		if in.TrainingSplit, err = ValidateEnum("training_split", in.TrainingSplit, Splits); err != nil {
			return in, err
		}
	}
	in.Equipment = NormalizeEquipment(in.Equipment)
	in.Limitations = lowerAll(in.Limitations)
	return in, nil
}

type dayTemplate struct {
	key   string
	title string
	focus string
	slots []string
}

var templates = map[string]dayTemplate{
	"fbA": {key: "fbA", title: "Full Body A", focus: "squat, push and pull",
		slots: []string{patSquat, patHorizontalPush, patHorizontalPull, patHinge, patVerticalPush, patCore, patCalves}},
	"fbB": {key: "fbB", title: "Full Body B", focus: "hinge, press and pull-down",
		slots: []string{patHinge, patVerticalPush, patVerticalPull, patLunge, patHorizontalPush, patCore, patTriceps}},
	"fbC": {key: "fbC", title: "Full Body C", focus: "single-leg strength and upper body",
		slots: []string{patLunge, patHorizontalPush, patVerticalPull, patSquat, patShoulderIso, patCore, patBiceps}},
	"upper": {key: "upper", title: "Upper Body", focus: "chest, back, shoulders and arms",
		slots: []string{patHorizontalPush, patHorizontalPull, patVerticalPush, patVerticalPull, patBiceps, patTriceps, patShoulderIso}},
	"lower": {key: "lower", title: "Lower Body", focus: "quads, hamstrings, glutes and core",
		slots: []string{patSquat, patHinge, patLunge, patLegIso, patCalves, patCore, patLegIso}},
	"push": {key: "push", title: "Push", focus: "chest, shoulders and triceps",
		slots: []string{patHorizontalPush, patVerticalPush, patChestIso, patShoulderIso, patTriceps, patHorizontalPush, patCore}},
	"pull": {key: "pull", title: "Pull", focus: "back, rear delts and biceps",
		slots: []string{patVerticalPull, patHorizontalPull, patHinge, patShoulderIso, patBiceps, patHorizontalPull, patCore}},
	"legs": {key: "legs", title: "Legs", focus: "quads, hamstrings, glutes and calves",
		slots: []string{patSquat, patHinge, patLunge, patLegIso, patCalves, patCore, patLegIso}},
	"chest": {key: "chest", title: "Chest", focus: "chest and triceps",
		slots: []string{patHorizontalPush, patHorizontalPush, patChestIso, patVerticalPush, patTriceps, patChestIso, patCore}},
	"back": {key: "back", title: "Back", focus: "lats, upper back and biceps",
		slots: []string{patVerticalPull, patHorizontalPull, patHinge, patHorizontalPull, patBiceps, patShoulderIso, patCore}},
	"shoulders": {key: "shoulders", title: "Shoulders", focus: "delts and upper back",
		slots: []string{patVerticalPush, patShoulderIso, patHorizontalPull, patShoulderIso, patTriceps, patCore, patVerticalPush}},
	"arms": {key: "arms", title: "Arms", focus: "biceps and triceps",
		slots: []string{patHorizontalPush, patVerticalPull, patBiceps, patTriceps, patBiceps, patTriceps, patCore}},
	"core_conditioning": {key: "core_conditioning", title: "Core and Conditioning", focus: "trunk stability and work capacity",
		slots: []string{patLunge, patHinge, patHorizontalPush, patCore, patCore, patCalves, patCore}},
}

func dayRotation(split string, frequency int) []string {
	var cycle []string
	switch split {
	case SplitFullBody:
		cycle = []string{"fbA", "fbB", "fbC"}
	case SplitUpperLower:
		cycle = []string{"upper", "lower"}
	case SplitPushPull:
		cycle = []string{"push", "pull", "legs"}
	default:
		cycle = []string{"chest", "back", "legs", "shoulders", "arms", "core_conditioning", "legs"}
	}
	out := make([]string, frequency)
	for i := range out {
		out[i] = cycle[i%len(cycle)]
	}
	return out
}

func resistanceCount(level string, duration int) int {
	var n int
	switch {
	case duration < 30:
		n = 3
	case duration < 45:
		n = 4
	case duration < 60:
		n = 5
	case duration < 90:
		n = 6
	default:
		n = 7
	}
	if level == LevelBeginner && n > 5 {
		n = 5
	}
	return n
}

type prescription struct {
	sets  int
	reps  string
	rest  int
	notes string
}

func prescribe(level, goal, kind string, timed bool) prescription {
	compound := kind == TypeCompound
	p := prescription{}
	switch goal {
	case GoalMuscleGain:
		if compound {
			p.reps, p.rest = "8-12", 90
		} else {
			p.reps, p.rest = "10-12", 60
		}
	case GoalFatLoss:
		if compound {
			p.reps, p.rest = "12-15", 45
		} else {
			p.reps, p.rest = "15-20", 30
		}
	default:
		if compound {
			p.reps, p.rest = "10-12", 60
		} else {
			p.reps, p.rest = "12-15", 45
		}
	}
	switch level {
	case LevelBeginner:
		p.sets = 3
		if !compound {
			p.sets = 2
		}
	case LevelAdvanced:
		p.sets = 3
		if compound {
			p.sets = 4
		}
	default:
		p.sets = 3
	}
	if timed {
		p.reps = "30-45 sec"
	}
	switch {
	case compound && level == LevelBeginner:
		p.notes = "Focus on form; stop each set with 2-3 reps in reserve."
	case compound:
		p.notes = "Control the lowering phase; leave 1-2 reps in reserve."
	default:
		p.notes = "Smooth tempo, full range of motion."
	}
	return p
}

type selector struct {
	in        WorkoutInput
	available map[string]bool
	// occurrences counts how many times a pattern has been filled per template,
	// so repeated templates rotate to alternates.
	occurrences map[string]int
}

func newSelector(in WorkoutInput) *selector {
	s := &selector{in: in, available: map[string]bool{"": true}, occurrences: map[string]int{}}
	if in.Location == LocationGym {
		for k := range gymEquipment {
			s.available[k] = true
		}
	}
	for _, e := range in.Equipment {
		s.available[e] = true
	}
	return s
}

func (s *selector) blocked(e catalogEntry) bool {
	for _, keyword := range e.avoid {
		for _, lim := range s.in.Limitations {
			if strings.Contains(lim, keyword) {
				return true
			}
		}
	}
	return false
}

func (s *selector) candidates(pattern string) []catalogEntry {
	var equipped, bodyweight []catalogEntry
	for _, e := range entriesFor(pattern) {
		if !s.available[e.equipment] || s.blocked(e) {
			continue
		}
		if e.equipment == "" {
			bodyweight = append(bodyweight, e)
		} else {
			equipped = append(equipped, e)
		}
	}
	if len(equipped) > 0 {
		return equipped
	}
	return bodyweight
}

func (s *selector) pick(templateKey, pattern string, used map[string]bool) (catalogEntry, bool) {
	cands := s.candidates(pattern)
	if len(cands) == 0 {
		return catalogEntry{}, false
	}
	key := templateKey + "/" + pattern
	start := s.occurrences[key]
	s.occurrences[key]++
	for i := 0; i < len(cands); i++ {
		c := cands[(start+i)%len(cands)]
		if !used[c.name] {
			return c, true
		}
	}
	return catalogEntry{}, false
}

func (s *selector) toExercise(e catalogEntry) Exercise {
	p := prescribe(s.in.FitnessLevel, s.in.PrimaryGoal, e.kind, e.timed)
	return Exercise{
		Name:        e.name,
		Type:        e.kind,
		Sets:        p.sets,
		RepsRange:   p.reps,
		RestSeconds: p.rest,
		Notes:       p.notes,
		Equipment:   e.equipment,
	}
}

func (s *selector) buildDay(idx int, tpl dayTemplate, count int) WorkoutDay {
	day := WorkoutDay{Day: idx + 1, Name: fmt.Sprintf("Day %d - %s", idx+1, tpl.title), Focus: tpl.focus}
	used := map[string]bool{}

	if warm, ok := s.pick(tpl.key, patMobility, used); ok {
		used[warm.name] = true
		day.Exercises = append(day.Exercises, Exercise{
			Name: warm.name, Type: TypeMobility, Sets: 1, RepsRange: "5-8 min",
			Notes: "Raise temperature and open up the joints you will load today.",
		})
	}

	slots := tpl.slots
	if s.in.FitnessLevel == LevelBeginner {
		slots = compoundFirst(slots)
	}
	var resistance []Exercise
	for _, pattern := range slots {
		if len(resistance) == count {
			break
		}
		e, ok := s.pick(tpl.key, pattern, used)
		if !ok {
			continue
		}
		used[e.name] = true
		resistance = append(resistance, s.toExercise(e))
	}
	if s.in.FitnessLevel == LevelBeginner {
		resistance = enforceCompoundShare(resistance)
	}
	day.Exercises = append(day.Exercises, resistance...)

	if s.in.PrimaryGoal == GoalFatLoss || (s.in.PrimaryGoal == GoalGeneralFitness && s.in.DurationMinutes >= 45) {
		if c, ok := s.pick(tpl.key, patCardio, used); ok {
			minutes := "10-15 min"
			notes := "Steady effort you can hold a conversation at."
			if s.in.PrimaryGoal == GoalFatLoss {
				minutes = "15-20 min"
				notes = "Alternate 1 minute hard with 1 minute easy."
			}
			day.Exercises = append(day.Exercises, Exercise{
				Name: c.name, Type: TypeCardio, Sets: 1, RepsRange: minutes, Notes: notes, Equipment: c.equipment,
			})
		}
	}
	return day
}

func compoundFirst(slots []string) []string {
	out := make([]string, 0, len(slots))
	for _, p := range slots {
		if isCompoundPattern(p) {
			out = append(out, p)
		}
	}
	for _, p := range slots {
		if !isCompoundPattern(p) {
			out = append(out, p)
		}
	}
	return out
}

// enforceCompoundShare trims trailing isolation work until compounds are at
// least half of the list.
func enforceCompoundShare(ex []Exercise) []Exercise {
	for {
		compound := 0
		for _, e := range ex {
			if e.Type == TypeCompound {
				compound++
			}
		}
		if compound*2 >= len(ex) || len(ex) <= 1 {
			return ex
		}
		cut := -1
		for i := len(ex) - 1; i >= 0; i-- {
			if ex[i].Type != TypeCompound {
				cut = i
				break
			}
		}
		if cut < 0 {
			return ex
		}
		ex = append(ex[:cut:cut], ex[cut+1:]...)
	}
}

// GenerateWorkoutPlan builds a deterministic weekly plan.
func GenerateWorkoutPlan(in WorkoutInput) (WorkoutPlan, error) {
	in, err := in.normalize()
	if err != nil {
		return WorkoutPlan{}, err
	}
	split := in.TrainingSplit
	if split == "" {
		split = ChooseSplit(in.FitnessLevel, in.Frequency)
	}

	sel := newSelector(in)
	count := resistanceCount(in.FitnessLevel, in.DurationMinutes)
	plan := WorkoutPlan{
		FitnessLevel:    in.FitnessLevel,
		PrimaryGoal:     in.PrimaryGoal,
		Frequency:       in.Frequency,
		Location:        in.Location,
		DurationMinutes: in.DurationMinutes,
		Equipment:       in.Equipment,
		Limitations:     in.Limitations,
		TrainingSplit:   split,
		SplitName:       splitTitles[split],
	}
	rotation := dayRotation(split, in.Frequency)
	total := map[string]int{}
	for _, key := range rotation {
		total[key]++
	}
	seen := map[string]int{}
	for i, key := range rotation {
		tpl := templates[key]
		if total[key] > 1 && split != SplitFullBody {
			tpl.title = fmt.Sprintf("%s %c", tpl.title, 'A'+rune(seen[key]))
		}
		seen[key]++
		plan.Days = append(plan.Days, sel.buildDay(i, tpl, count))
	}
	plan.Rationale = rationale(plan)
	return plan, nil
}

func rationale(p WorkoutPlan) string {
	goal := strings.ReplaceAll(p.PrimaryGoal, "_", " ")
	article := "a"
	if p.FitnessLevel != LevelBeginner {
		article = "an"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "A %s split over %d days fits %s %s trainee focused on %s. ", p.SplitName, p.Frequency, article, p.FitnessLevel, goal)
	if p.FitnessLevel == LevelBeginner {
		b.WriteString("Compound lifts come first so you practice the big movement patterns while fresh. ")
	}
	switch p.PrimaryGoal {
	case GoalMuscleGain:
		b.WriteString("Most sets sit in the 8-12 rep range with longer rests to drive hypertrophy.")
	case GoalFatLoss:
		b.WriteString("Higher reps, short rests and a cardio finisher keep energy expenditure high.")
	default:
		b.WriteString("Moderate reps and rests balance strength and conditioning.")
	}
	if len(p.Limitations) > 0 {
		fmt.Fprintf(&b, " Movements that aggravate %s were left out.", strings.Join(p.Limitations, ", "))
	}
	return b.String()
}

// ModifyWorkoutPlan applies modifications to the plan's inputs and regenerates it.
func ModifyWorkoutPlan(current WorkoutPlan, mods map[string]any) (WorkoutPlan, error) {
	if len(mods) == 0 {
		return WorkoutPlan{}, errx.InvalidInput("modifications", "no modifications given")
	}
	in := current.Input()
	// An explicit split from the old plan is only kept when asked for again.
	in.TrainingSplit = ""
	for key, raw := range mods {
		switch key {
		case "frequency", "duration_minutes":
			n, ok := ToInt(raw)
			if !ok {
				return WorkoutPlan{}, errx.InvalidInputf(key, "%s must be a whole number", key)
			}
			if key == "frequency" {
				in.Frequency = n
			} else {
				in.DurationMinutes = n
			}
		case "location", "fitness_level", "primary_goal", "training_split":
			s, ok := raw.(string)
			if !ok {
				return WorkoutPlan{}, errx.InvalidInputf(key, "%s must be a string", key)
			}
			switch key {
			case "location":
				in.Location = s
			case "fitness_level":
				in.FitnessLevel = s
			case "primary_goal":
				in.PrimaryGoal = s
			default:
				in.TrainingSplit = s
			}
		case "equipment", "limitations":
			list, ok := ToStrings(raw)
			if !ok {
				return WorkoutPlan{}, errx.InvalidInputf(key, "%s must be a list of strings", key)
			}
			if key == "equipment" {
				in.Equipment = list
			} else {
				in.Limitations = list
			}
		default:
			return WorkoutPlan{}, unknownModification(key)
		}
	}
	return GenerateWorkoutPlan(in)
}

// PlanStats summarizes exercise selection for policy checks.
type PlanStats struct {
	Resistance    int
	Compound      int
	NonMobility   int
	Equipped      int
	Bodyweight    int
	Cardio        int
	MuscleWindow  int
	FatLossWindow int
}

// Stats counts exercise kinds across every day of the plan.
func (p WorkoutPlan) Stats() PlanStats {
	var s PlanStats
	for _, d := range p.Days {
		for _, e := range d.Exercises {
			switch e.Type {
			case TypeMobility:
				continue
			case TypeCardio:
				s.Cardio++
			default:
				s.Resistance++
				if e.Type == TypeCompound {
					s.Compound++
				}
				if lo, hi, ok := parseRepRange(e.RepsRange); ok {
					if lo >= 8 && hi <= 12 {
						s.MuscleWindow++
					}
					if lo >= 12 && hi <= 20 {
						s.FatLossWindow++
					}
				}
			}
			s.NonMobility++
			if e.Equipment == "" {
				s.Bodyweight++
			} else {
				s.Equipped++
			}
		}
	}
	return s
}

func parseRepRange(r string) (int, int, bool) {
	lo, hi, ok := strings.Cut(r, "-")
	if !ok {
		return 0, 0, false
	}
	a, err1 := strconv.Atoi(strings.TrimSpace(lo))
	b, err2 := strconv.Atoi(strings.TrimSpace(hi))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return a, b, true
}

func toMap(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return out
}

func fromAny(v any, dst any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
