package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/normanwashere/patient-portal-prototype-sub005/internal/models"
)

type EventInput struct {
	Type      string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// VisitStore keeps visit snapshots and their append-only event journal.
type VisitStore interface {
	// CreateVisit is idempotent on RequestID: a repeated request returns the
	// visit created the first time and false.
	CreateVisit(ctx context.Context, visit models.Visit) (models.Visit, bool, error)
	GetVisit(ctx context.Context, visitID string) (models.Visit, error)
	// SaveVisit replaces the snapshot and appends events in one unit.
	SaveVisit(ctx context.Context, visit models.Visit, events []EventInput) ([]models.VisitEvent, error)
	ListVisitEvents(ctx context.Context, visitID string) ([]models.VisitEvent, error)
	ListActiveVisitIDs(ctx context.Context, limit int) ([]string, error)
}
