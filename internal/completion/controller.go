// Package completion finishes onboarding: it materializes the profile graph
// and flips the onboarding row to complete in one transaction.
package completion

import (
	"context"
	"errors"
	"net/http"

	errx "github.com/fitcoach-core/server/internal/core/error"
	"github.com/fitcoach-core/server/internal/metrics"
	"github.com/fitcoach-core/server/internal/onboarding"
	"github.com/fitcoach-core/server/internal/profile"
	logx "github.com/fitcoach-core/server/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Result is the response body of a successful completion.
type Result struct {
	ProfileID          uuid.UUID `json:"profile_id"`
	UserID             string    `json:"user_id"`
	FitnessLevel       string    `json:"fitness_level"`
	IsLocked           bool      `json:"is_locked"`
	OnboardingComplete bool      `json:"onboarding_complete"`
}

type Controller struct {
	db           *gorm.DB
	store        onboarding.Store
	materializer *profile.Materializer
	metrics      *metrics.Metrics
}

func New(db *gorm.DB, store onboarding.Store, materializer *profile.Materializer, m *metrics.Metrics) *Controller {
	return &Controller{db: db, store: store, materializer: materializer, metrics: m}
}

// Complete materializes the user's profile. Failures leave both the profile
// graph and the onboarding row untouched, so the call can be retried.
//
// Status mapping: already complete 409, incomplete 400, other validation
// failures 422, persistence failures 500.
func (c *Controller) Complete(ctx context.Context, userID string) (*Result, error) {
	row, err := c.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if row.IsComplete {
		return nil, errx.AlreadyCompleted()
	}

	var graph *profile.Graph
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		g, err := c.materializer.MaterializeTx(ctx, tx, userID, row.Sections())
		if err != nil {
			return err
		}
		if err := c.store.MarkCompleteTx(ctx, tx, userID); err != nil {
			return err
		}
		graph = g
		return nil
	})
	c.metrics.ObserveMaterialization(err)
	if err != nil {
		err = classify(err)
		logx.Warn().Err(err).Str("user_id", userID).Str("code", errx.CodeOf(err)).Msg("onboarding completion failed")
		return nil, err
	}

	logx.Info().Str("user_id", userID).Str("profile_id", graph.Profile.ID.String()).Msg("onboarding completed")
	return &Result{
		ProfileID:          graph.Profile.ID,
		UserID:             userID,
		FitnessLevel:       graph.Profile.FitnessLevel,
		IsLocked:           graph.Profile.IsLocked,
		OnboardingComplete: true,
	}, nil
}

func classify(err error) error {
	var app *errx.AppError
	switch {
	case errors.Is(err, errx.ErrInvalidInput) && errors.As(err, &app):
		return app.WithStatus(http.StatusUnprocessableEntity)
	case errors.As(err, &app):
		return err
	default:
		return errx.WrapDB(err)
	}
}
