package postgres

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanwashere/patient-portal-prototype-sub005/internal/models"
	"github.com/normanwashere/patient-portal-prototype-sub005/internal/store"
)

func TestCreateVisitIdempotent(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	requestID := uuid.NewString()
	first, created, err := st.CreateVisit(ctx, newVisit(requestID))
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := st.CreateVisit(ctx, newVisit(requestID))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.VisitID, second.VisitID)

	loaded, err := st.GetVisit(ctx, first.VisitID)
	require.NoError(t, err)
	assert.Equal(t, first.Steps, loaded.Steps)
}

func TestSaveVisitConcurrentAppendsKeepChain(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	visit, _, err := st.CreateVisit(ctx, newVisit(uuid.NewString()))
	require.NoError(t, err)
	visit.Active = true

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.SaveVisit(ctx, visit, []store.EventInput{{
				Type:    models.ActionAdvance,
				Payload: json.RawMessage(`{"action":"advance"}`),
			}})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	events, err := st.ListVisitEvents(ctx, visit.VisitID)
	require.NoError(t, err)
	require.Len(t, events, 8)
	require.NoError(t, store.VerifyVisitEvents(events))

	ids, err := st.ListActiveVisitIDs(ctx, 10)
	require.NoError(t, err)
	assert.Contains(t, ids, visit.VisitID)
}

func TestSaveVisitUnknown(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	_, err := st.SaveVisit(ctx, newVisit(""), nil)
	assert.ErrorIs(t, err, store.ErrVisitNotFound)

	_, err = st.GetVisit(ctx, uuid.NewString())
	assert.ErrorIs(t, err, store.ErrVisitNotFound)
}

func newVisit(requestID string) models.Visit {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return models.Visit{
		VisitID:   uuid.NewString(),
		RequestID: requestID,
		Mode:      models.ModeLinear,
		Steps: []models.QueueStep{
			{ID: "triage", Status: models.StatusPending},
			{ID: "consult", Status: models.StatusPending, Dependencies: []string{"triage"}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func setupTestStore(t *testing.T, ctx context.Context) (*Store, *pgxpool.Pool, func()) {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DB_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_DB_DSN or DB_DSN is required for integration tests")
	}

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := createSchema(ctx, dsn, schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	pool, err := newPoolWithSchema(ctx, dsn, schema)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("apply migrations: %v", err)
	}

	cleanup := func() {
		pool.Close()
		_ = dropSchema(context.Background(), dsn, schema)
	}
	return NewStore(pool), pool, cleanup
}

func createSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "CREATE SCHEMA "+schema)
	return err
}

func dropSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "DROP SCHEMA "+schema+" CASCADE")
	return err
}

func newPoolWithSchema(ctx context.Context, dsn, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	return pgxpool.NewWithConfig(ctx, cfg)
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	dir := filepath.Join("..", "..", "..", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(content)); err != nil {
			return err
		}
	}
	return nil
}
