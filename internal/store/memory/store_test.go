package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanwashere/patient-portal-prototype-sub005/internal/models"
	"github.com/normanwashere/patient-portal-prototype-sub005/internal/store"
)

func newVisit(id, requestID string, createdAt time.Time) models.Visit {
	return models.Visit{
		VisitID:   id,
		RequestID: requestID,
		Mode:      models.ModeLinear,
		Steps:     []models.QueueStep{{ID: "triage", Status: models.StatusPending}, {ID: "consult", Status: models.StatusPending, Dependencies: []string{"triage"}}},
		CreatedAt: createdAt,
	}
}

func TestCreateVisitIsIdempotentOnRequestID(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	now := time.Now().UTC()

	first, created, err := st.CreateVisit(ctx, newVisit("visit-1", "req-1", now))
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := st.CreateVisit(ctx, newVisit("visit-2", "req-1", now))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.VisitID, second.VisitID)

	_, err = st.GetVisit(ctx, "visit-2")
	assert.ErrorIs(t, err, store.ErrVisitNotFound)
}

func TestSaveVisitAppendsChainedEvents(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	visit, _, err := st.CreateVisit(ctx, newVisit("visit-1", "", time.Now().UTC()))
	require.NoError(t, err)

	visit.Active = true
	visit.Steps[0].Status = models.StatusQueued
	_, err = st.SaveVisit(ctx, visit, []store.EventInput{{Type: models.ActionJoinQueue, Payload: json.RawMessage(`{}`)}})
	require.NoError(t, err)
	_, err = st.SaveVisit(ctx, visit, []store.EventInput{{Type: models.ActionAdvance, Payload: json.RawMessage(`{}`)}})
	require.NoError(t, err)

	events, err := st.ListVisitEvents(ctx, "visit-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 2, events[1].Seq)
	require.NoError(t, store.VerifyVisitEvents(events))

	loaded, err := st.GetVisit(ctx, "visit-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, loaded.Steps[0].Status)
	assert.True(t, loaded.Active)
}

func TestSaveUnknownVisit(t *testing.T) {
	_, err := NewStore().SaveVisit(context.Background(), models.Visit{VisitID: "nope"}, nil)
	assert.ErrorIs(t, err, store.ErrVisitNotFound)

	_, err = NewStore().ListVisitEvents(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrVisitNotFound)
}

func TestStoredVisitIsIsolatedFromCaller(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	visit := newVisit("visit-1", "", time.Now().UTC())
	_, _, err := st.CreateVisit(ctx, visit)
	require.NoError(t, err)

	visit.Steps[0].Status = models.StatusCompleted
	visit.Steps[1].Dependencies[0] = "changed"

	loaded, err := st.GetVisit(ctx, "visit-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, loaded.Steps[0].Status)
	assert.Equal(t, []string{"triage"}, loaded.Steps[1].Dependencies)
}

func TestListActiveVisitIDs(t *testing.T) {
	ctx := context.Background()
	st := NewStore()
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	for i, id := range []string{"c", "a", "b", "paused", "idle"} {
		visit := newVisit(id, "", base.Add(time.Duration(i)*time.Minute))
		visit.Active = id != "idle"
		visit.Paused = id == "paused"
		_, _, err := st.CreateVisit(ctx, visit)
		require.NoError(t, err)
	}

	ids, err := st.ListActiveVisitIDs(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, ids)

	ids, err = st.ListActiveVisitIDs(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids)
}
