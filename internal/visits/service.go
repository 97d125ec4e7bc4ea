// Package visits hosts many single-patient workflow engines behind a store.
package visits

import (
	"context"
	"errors"
	"time"

	"github.com/normanwashere/patient-portal-prototype-sub005/internal/models"
)

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrInvalidPause  = errors.New("pause reason is required")
)

type CreateVisitInput struct {
	RequestID string
	Mode      models.Mode
}

type PauseInput struct {
	Reason     string
	Notes      string
	ResumeDate *time.Time
}

type VisitActionInput struct {
	VisitID string
	Action  string
	Pause   PauseInput
}

type StepActionInput struct {
	VisitID string
	StepID  string
	Action  string
}

type Service interface {
	CreateVisit(ctx context.Context, input CreateVisitInput) (models.VisitView, bool, error)
	GetVisit(ctx context.Context, visitID string) (models.VisitView, error)
	ApplyVisitAction(ctx context.Context, input VisitActionInput) (models.VisitView, bool, error)
	ApplyStepAction(ctx context.Context, input StepActionInput) (models.VisitView, bool, error)
	CanQueueStep(ctx context.Context, visitID, stepID string) (bool, error)
	ListEvents(ctx context.Context, visitID string) ([]models.VisitEvent, error)
	VerifyEvents(ctx context.Context, visitID string) (bool, error)
}
