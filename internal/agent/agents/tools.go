package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/fitcoach-core/server/internal/agent/model"
	errx "github.com/fitcoach-core/server/internal/core/error"
	"github.com/fitcoach-core/server/internal/onboarding"
	logx "github.com/fitcoach-core/server/pkg/logger"
)

// Tool names.
const (
	ToolSaveFitnessAssessment = "save_fitness_assessment"
	ToolSaveGoals             = "save_goals"

	ToolSaveWorkoutConstraints = "save_workout_constraints"
	ToolGenerateWorkoutPlan    = "generate_workout_plan"
	ToolModifyWorkoutPlan      = "modify_workout_plan"
	ToolSaveWorkoutPlan        = "save_workout_plan"
	ToolSaveWorkoutSchedule    = "save_workout_schedule"

	ToolSaveDietPreferences = "save_diet_preferences"
	ToolGenerateMealPlan    = "generate_meal_plan"
	ToolModifyMealPlan      = "modify_meal_plan"
	ToolSaveMealPlan        = "save_meal_plan"
	ToolSaveMealSchedule    = "save_meal_schedule"

	ToolSaveHydration   = "save_hydration"
	ToolSaveSupplements = "save_supplements"
)

// ToolResult is what every tool hands back to the model.
type ToolResult struct {
	Success      bool           `json:"success"`
	CurrentState int            `json:"current_state,omitempty"`
	NextState    *int           `json:"next_state,omitempty"`
	ErrorCode    string         `json:"error_code,omitempty"`
	Field        string         `json:"field,omitempty"`
	Message      string         `json:"message,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// failure maps an error onto a tool result. Client-side errors carry their
// message back to the model so it can ask the user again; anything else is
// reported as an internal error.
func failure(err error) *ToolResult {
	var app *errx.AppError
	if errors.As(err, &app) && app.Status >= 400 && app.Status < 500 {
		return &ToolResult{
			ErrorCode: errx.CodeValidation,
			Field:     app.Field,
			Message:   app.Message,
		}
	}
	return &ToolResult{
		ErrorCode: errx.CodeInternal,
		Message:   "the data could not be saved right now, please try again",
	}
}

func refused(field, message string) *ToolResult {
	return &ToolResult{ErrorCode: errx.CodeValidation, Field: field, Message: message}
}

func (b *Base) newTool(d toolDef) tool.BaseTool {
	name := d.info.Name
	return utils.NewTool(d.info, func(ctx context.Context, args map[string]any) (*ToolResult, error) {
		res := d.run(ctx, args)
		b.deps.Metrics.ObserveToolCall(name, res.Success)
		ev := logx.Debug()
		if !res.Success {
			ev = logx.Warn().Str("error_code", res.ErrorCode).Str("field", res.Field).Str("message", res.Message)
		}
		ev.Str("agent", b.kind.String()).Str("user_id", b.userID()).Str("tool", name).Bool("success", res.Success).Msg("tool executed")
		return res, nil
	})
}

// saveSection merges a validated section, lets progress catch up and
// reports where onboarding stands afterwards.
func (b *Base) saveSection(ctx context.Context, state int, section model.Section) *ToolResult {
	meta := onboarding.MustState(state)
	before, err := b.deps.Store.SaveSection(ctx, b.userID(), meta.Key, section)
	if err != nil {
		return failure(err)
	}
	row, err := onboarding.SyncProgress(ctx, b.deps.Store, b.userID())
	if err != nil {
		return failure(err)
	}
	if row.CurrentState > before.CurrentState {
		b.deps.Metrics.ObserveStateAdvance(strconv.Itoa(row.CurrentState))
	}
	res := &ToolResult{Success: true, CurrentState: row.CurrentState}
	if meta.IsComplete(row.Section(meta.Key)) {
		if state < onboarding.TotalStates {
			next := state + 1
			res.NextState = &next
		}
		res.Message = fmt.Sprintf("%s saved and complete.", meta.Name)
	} else {
		res.Message = fmt.Sprintf("%s saved. Still missing: %s.", meta.Name, strings.Join(meta.MissingFields(row.Section(meta.Key)), ", "))
	}
	return res
}

// pickFields validates the named optional fields present in args.
func pickFields(state int, args map[string]any, names ...string) (model.Section, error) {
	out := model.Section{}
	for _, k := range names {
		v, ok := args[k]
		if !ok || v == nil {
			continue
		}
		nv, err := onboarding.NormalizeField(state, k, v)
		if err != nil {
			return nil, err
		}
		out[k] = nv
	}
	return out, nil
}

// sanitizeArguments turns unreadable tool arguments into an empty object so
// the handler reports the missing fields instead of the node failing.
func sanitizeArguments(_ context.Context, name, arguments string) (string, error) {
	var args map[string]any
	if err := json.Unmarshal([]byte(arguments), &args); err != nil || args == nil {
		logx.Warn().Str("tool", name).Str("arguments", arguments).Msg("unreadable tool arguments replaced")
		return "{}", nil
	}
	for k, v := range args {
		if s, ok := v.(string); ok {
			args[k] = strings.TrimSpace(s)
		}
	}
	out, err := json.Marshal(args)
	if err != nil {
		return "{}", nil
	}
	return string(out), nil
}

func unknownTool(_ context.Context, name, _ string) (string, error) {
	logx.Warn().Str("tool", name).Msg("model called an unknown tool")
	out, _ := json.Marshal(refused("tool", fmt.Sprintf("tool %q does not exist", name)))
	return string(out), nil
}

// Parameter schema helpers.

func toolInfo(name, desc string, params map[string]*schema.ParameterInfo) *schema.ToolInfo {
	info := &schema.ToolInfo{Name: name, Desc: desc}
	if len(params) > 0 {
		info.ParamsOneOf = schema.NewParamsOneOfByParams(params)
	}
	return info
}

func strParam(desc string, required bool, enum ...string) *schema.ParameterInfo {
	return &schema.ParameterInfo{Type: schema.String, Desc: desc, Required: required, Enum: enum}
}

func intParam(desc string, required bool) *schema.ParameterInfo {
	return &schema.ParameterInfo{Type: schema.Integer, Desc: desc, Required: required}
}

func numParam(desc string, required bool) *schema.ParameterInfo {
	return &schema.ParameterInfo{Type: schema.Number, Desc: desc, Required: required}
}

func boolParam(desc string, required bool) *schema.ParameterInfo {
	return &schema.ParameterInfo{Type: schema.Boolean, Desc: desc, Required: required}
}

func listParam(desc string, required bool) *schema.ParameterInfo {
	return &schema.ParameterInfo{
		Type: schema.Array, Desc: desc, Required: required,
		ElemInfo: &schema.ParameterInfo{Type: schema.String},
	}
}

func objectParam(desc string, required bool, fields map[string]*schema.ParameterInfo) *schema.ParameterInfo {
	return &schema.ParameterInfo{Type: schema.Object, Desc: desc, Required: required, SubParams: fields}
}
