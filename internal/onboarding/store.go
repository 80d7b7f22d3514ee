package onboarding

import (
	"context"
	"errors"
	"time"

	"github.com/fitcoach-core/server/internal/agent/model"
	errx "github.com/fitcoach-core/server/internal/core/error"
	logx "github.com/fitcoach-core/server/pkg/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxWriteAttempts = 5

var (
	errConflict = errors.New("onboarding state changed concurrently")
	errNoop     = errors.New("no change")
)

// Store persists onboarding state. Every write runs in its own transaction
// with optimistic concurrency on updated_at.
type Store interface {
	Load(ctx context.Context, userID string) (*OnboardingState, error)
	Start(ctx context.Context, userID string) (*OnboardingState, bool, error)
	SaveSection(ctx context.Context, userID, key string, fields model.Section) (*OnboardingState, error)
	SaveStep(ctx context.Context, userID string, state int, section model.Section) (*OnboardingState, error)
	AppendMessages(ctx context.Context, userID string, msgs ...model.Message) (*OnboardingState, error)
	AdvanceTo(ctx context.Context, userID string, n int) (*OnboardingState, error)
	RecordAgentVisit(ctx context.Context, userID string, state int, agent model.AgentKind) (*OnboardingState, error)
	Progress(ctx context.Context, userID string) (*Progress, error)
	MarkCompleteTx(ctx context.Context, tx *gorm.DB, userID string) error
	// Now is the store's clock, used for timestamps written into sections.
	Now() time.Time
}

type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore builds a Store on db. now defaults to time.Now.
func NewGormStore(db *gorm.DB, now func() time.Time) *GormStore {
	if now == nil {
		now = time.Now
	}
	return &GormStore{db: db, now: now}
}

// Migrate creates the onboarding table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&OnboardingState{})
}

func (s *GormStore) Now() time.Time {
	return s.stamp()
}

func (s *GormStore) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// nextStamp returns a timestamp strictly after prev.
func (s *GormStore) nextStamp(prev time.Time) time.Time {
	t := s.stamp()
	if !t.After(prev) {
		t = prev.UTC().Add(time.Microsecond)
	}
	return t
}

func loadRow(ctx context.Context, tx *gorm.DB, userID string) (*OnboardingState, error) {
	var row OnboardingState
	err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errx.NotFound("onboarding state")
	}
	if err != nil {
		return nil, errx.WrapDB(err)
	}
	return &row, nil
}

func (s *GormStore) Load(ctx context.Context, userID string) (*OnboardingState, error) {
	return loadRow(ctx, s.db, userID)
}

// Start creates the row at state 0 unless it exists. created reports whether
// this call inserted it.
func (s *GormStore) Start(ctx context.Context, userID string) (*OnboardingState, bool, error) {
	now := s.stamp()
	row := OnboardingState{
		UserID:              userID,
		CurrentAgent:        model.KindFitnessAssessment.String(),
		AgentContext:        datatypes.NewJSONType(map[string]model.Section{}),
		ConversationHistory: datatypes.NewJSONType([]model.Message{}),
		AgentHistory:        datatypes.NewJSONType([]model.AgentVisit{}),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return nil, false, errx.WrapDB(res.Error)
	}
	loaded, err := s.Load(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if res.RowsAffected > 0 {
		logx.Info().Str("user_id", userID).Msg("onboarding started")
	}
	return loaded, res.RowsAffected > 0, nil
}

// mutate loads the row, applies fn and writes it back if updated_at is
// unchanged, retrying on conflict. fn may return errNoop to skip the write.
func (s *GormStore) mutate(ctx context.Context, userID string, fn func(row *OnboardingState) error) (*OnboardingState, error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		var out *OnboardingState
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			row, err := loadRow(ctx, tx, userID)
			if err != nil {
				return err
			}
			prev := row.UpdatedAt
			if err := fn(row); err != nil {
				if errors.Is(err, errNoop) {
					out = row
					return nil
				}
				return err
			}
			row.UpdatedAt = s.nextStamp(prev)
			res := tx.Model(&OnboardingState{}).
				Where("user_id = ? AND updated_at = ?", userID, prev).
				Updates(row.columns())
			if res.Error != nil {
				return errx.WrapDB(res.Error)
			}
			if res.RowsAffected == 0 {
				return errConflict
			}
			out = row
			return nil
		})
		if errors.Is(err, errConflict) {
			logx.Debug().Str("user_id", userID).Int("attempt", attempt).Msg("onboarding write conflict, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, errx.WrapDB(errConflict)
}

func (s *OnboardingState) columns() map[string]any {
	return map[string]any{
		"current_state":        s.CurrentState,
		"is_complete":          s.IsComplete,
		"current_agent":        s.CurrentAgent,
		"agent_context":        datatypes.NewJSONType(s.Sections()),
		"conversation_history": datatypes.NewJSONType(s.History()),
		"agent_history":        datatypes.NewJSONType(s.Visits()),
		"step_1_complete":      s.Step1Complete,
		"step_2_complete":      s.Step2Complete,
		"step_3_complete":      s.Step3Complete,
		"step_4_complete":      s.Step4Complete,
		"step_5_complete":      s.Step5Complete,
		"step_6_complete":      s.Step6Complete,
		"step_7_complete":      s.Step7Complete,
		"step_8_complete":      s.Step8Complete,
		"step_9_complete":      s.Step9Complete,
		"updated_at":           s.UpdatedAt,
	}
}

// putSection merges or replaces a section and keeps completed_at in step
// with the state's required-field predicate. A section that stops being
// complete loses its step flag; current_state never moves back. Nil values
// delete keys.
func (s *GormStore) putSection(row *OnboardingState, key string, fields model.Section, replace bool) {
	sections := row.Sections()
	section := sections[key]
	if replace || section == nil {
		section = model.Section{}
	}
	for k, v := range fields {
		if v == nil {
			delete(section, k)
			continue
		}
		section[k] = v
	}
	if meta, ok := StateByKey(key); ok {
		if meta.IsComplete(section) {
			if !section.Has("completed_at") {
				section["completed_at"] = s.stamp().Format(time.RFC3339)
			}
		} else {
			delete(section, "completed_at")
			row.setStepComplete(meta.Number, false)
		}
	}
	sections[key] = section
	row.AgentContext = datatypes.NewJSONType(sections)
}

// SaveSection merges fields into agent_context[key]. It never advances state.
func (s *GormStore) SaveSection(ctx context.Context, userID, key string, fields model.Section) (*OnboardingState, error) {
	if _, ok := StateByKey(key); !ok {
		return nil, errx.InvalidInputf("section", "unknown section %q", key)
	}
	return s.mutate(ctx, userID, func(row *OnboardingState) error {
		if row.IsComplete {
			return errx.AlreadyCompleted()
		}
		s.putSection(row, key, fields, false)
		return nil
	})
}

// StepAllowed reports whether a direct save for state may be applied at current.
func StepAllowed(current, state int) bool {
	return state <= current || (current == 0 && state == 1)
}

// SaveStep replaces the section for state and advances when the section is
// complete, all in one write.
func (s *GormStore) SaveStep(ctx context.Context, userID string, state int, section model.Section) (*OnboardingState, error) {
	meta, ok := State(state)
	if !ok {
		return nil, errx.InvalidInputf("step", "step must be between 1 and %d, got %d", TotalStates, state)
	}
	return s.mutate(ctx, userID, func(row *OnboardingState) error {
		if row.IsComplete {
			return errx.AlreadyCompleted()
		}
		if !StepAllowed(row.CurrentState, state) {
			return errx.InvalidInputf("step", "step %d is not available yet, onboarding is at state %d", state, row.CurrentState)
		}
		s.putSection(row, meta.Key, section, true)
		if meta.IsComplete(row.Section(meta.Key)) {
			advance(row, state+1)
		}
		return nil
	})
}

func (s *GormStore) AppendMessages(ctx context.Context, userID string, msgs ...model.Message) (*OnboardingState, error) {
	if len(msgs) == 0 {
		return s.Load(ctx, userID)
	}
	return s.mutate(ctx, userID, func(row *OnboardingState) error {
		history := row.History()
		for _, m := range msgs {
			m.Timestamp = m.Timestamp.UTC()
			history = append(history, m)
		}
		row.ConversationHistory = datatypes.NewJSONType(history)
		return nil
	})
}

// advance moves current_state to max(current, n) capped at the last state
// and flags state n-1 complete.
func advance(row *OnboardingState, n int) bool {
	before := row.CurrentState
	flagged := n-1 >= 1 && n-1 <= TotalStates && !row.StepComplete(n-1)
	next := n
	if next < row.CurrentState {
		next = row.CurrentState
	}
	if next > TotalStates {
		next = TotalStates
	}
	row.CurrentState = next
	if n-1 >= 1 {
		row.setStepComplete(n-1, true)
	}
	return flagged || next != before
}

func (s *GormStore) AdvanceTo(ctx context.Context, userID string, n int) (*OnboardingState, error) {
	return s.mutate(ctx, userID, func(row *OnboardingState) error {
		if row.IsComplete {
			return errNoop
		}
		if !advance(row, n) {
			return errNoop
		}
		logx.Info().Str("user_id", userID).Int("state", row.CurrentState).Msg("onboarding state advanced")
		return nil
	})
}

// RecordAgentVisit closes the open visit when the owning agent changes and
// opens a new one.
func (s *GormStore) RecordAgentVisit(ctx context.Context, userID string, state int, agent model.AgentKind) (*OnboardingState, error) {
	return s.mutate(ctx, userID, func(row *OnboardingState) error {
		visits := row.Visits()
		if n := len(visits); n > 0 && visits[n-1].ExitedAt == nil && visits[n-1].Agent == agent.String() {
			if row.CurrentAgent == agent.String() {
				return errNoop
			}
			row.CurrentAgent = agent.String()
			return nil
		}
		now := s.stamp()
		if n := len(visits); n > 0 && visits[n-1].ExitedAt == nil {
			visits[n-1].ExitedAt = &now
		}
		visits = append(visits, model.AgentVisit{State: state, Agent: agent.String(), EnteredAt: now})
		row.AgentHistory = datatypes.NewJSONType(visits)
		row.CurrentAgent = agent.String()
		return nil
	})
}

func (s *GormStore) Progress(ctx context.Context, userID string) (*Progress, error) {
	row, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := BuildProgress(row)
	return &p, nil
}

// MarkCompleteTx flips the row to complete inside tx. It fails with
// AlreadyCompleted when another request got there first.
func (s *GormStore) MarkCompleteTx(ctx context.Context, tx *gorm.DB, userID string) error {
	row, err := loadRow(ctx, tx, userID)
	if err != nil {
		return err
	}
	if row.IsComplete {
		return errx.AlreadyCompleted()
	}
	now := s.nextStamp(row.UpdatedAt)
	visits := row.Visits()
	if n := len(visits); n > 0 && visits[n-1].ExitedAt == nil {
		visits[n-1].ExitedAt = &now
	}
	res := tx.WithContext(ctx).Model(&OnboardingState{}).
		Where("user_id = ? AND is_complete = ?", userID, false).
		Updates(map[string]any{
			"is_complete":   true,
			"current_agent": model.CurrentAgentGeneral,
			"agent_history": datatypes.NewJSONType(visits),
			"updated_at":    now,
		})
	if res.Error != nil {
		return errx.WrapDB(res.Error)
	}
	if res.RowsAffected == 0 {
		return errx.AlreadyCompleted()
	}
	return nil
}

// SyncProgress flags every complete section up to the current state and
// advances through consecutive complete sections. Agents call it after each
// tool write so data saved ahead of the dialog is picked up once the earlier
// states catch up.
func SyncProgress(ctx context.Context, store Store, userID string) (*OnboardingState, error) {
	row, err := store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if row.IsComplete {
		return row, nil
	}
	for n := 1; n <= TotalStates && n <= row.CurrentState; n++ {
		meta := MustState(n)
		if row.StepComplete(n) || !meta.IsComplete(row.Section(meta.Key)) {
			continue
		}
		if row, err = store.AdvanceTo(ctx, userID, n+1); err != nil {
			return nil, err
		}
	}
	return row, nil
}
