package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/normanwashere/patient-portal-prototype-sub005/internal/models"
	"github.com/normanwashere/patient-portal-prototype-sub005/internal/store"
)

type Store struct {
	pool *pgxpool.Pool
}

var _ store.VisitStore = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateVisit(ctx context.Context, visit models.Visit) (models.Visit, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Visit{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if visit.RequestID != "" {
		var existing models.Visit
		var found bool
		existing, found, err = findVisitByRequestID(ctx, tx, visit.RequestID)
		if err != nil {
			return models.Visit{}, false, err
		}
		if found {
			if err = tx.Commit(ctx); err != nil {
				return models.Visit{}, false, err
			}
			return existing, false, nil
		}
	}

	snapshot, err := json.Marshal(visit)
	if err != nil {
		return models.Visit{}, false, err
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO visits (visit_id, request_id, mode, active, paused, snapshot, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (request_id) DO NOTHING
	`, visit.VisitID, nullIfEmpty(visit.RequestID), string(visit.Mode), visit.Active, visit.Paused, snapshot, visit.CreatedAt, visit.UpdatedAt)
	if err != nil {
		return models.Visit{}, false, err
	}
	if tag.RowsAffected() == 0 {
		// Lost a race with the same request id.
		var existing models.Visit
		existing, _, err = findVisitByRequestID(ctx, tx, visit.RequestID)
		if err != nil {
			return models.Visit{}, false, err
		}
		if err = tx.Commit(ctx); err != nil {
			return models.Visit{}, false, err
		}
		return existing, false, nil
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Visit{}, false, err
	}
	return visit, true, nil
}

func (s *Store) GetVisit(ctx context.Context, visitID string) (models.Visit, error) {
	var snapshot []byte
	row := s.pool.QueryRow(ctx, `SELECT snapshot FROM visits WHERE visit_id = $1`, visitID)
	if err := row.Scan(&snapshot); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Visit{}, store.ErrVisitNotFound
		}
		return models.Visit{}, err
	}
	var visit models.Visit
	if err := json.Unmarshal(snapshot, &visit); err != nil {
		return models.Visit{}, err
	}
	return visit, nil
}

func (s *Store) SaveVisit(ctx context.Context, visit models.Visit, inputs []store.EventInput) ([]models.VisitEvent, error) {
	snapshot, err := json.Marshal(visit)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, visit.VisitID); err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE visits
		SET mode = $2, active = $3, paused = $4, snapshot = $5, updated_at = $6
		WHERE visit_id = $1
	`, visit.VisitID, string(visit.Mode), visit.Active, visit.Paused, snapshot, visit.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		err = store.ErrVisitNotFound
		return nil, err
	}

	var lastSeq int
	var prevHash sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT seq, hash
		FROM visit_events
		WHERE visit_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`, visit.VisitID)
	if err = row.Scan(&lastSeq, &prevHash); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		err = nil
	}

	stamped := make([]store.EventInput, len(inputs))
	for i, input := range inputs {
		stamped[i] = input
		if input.CreatedAt.IsZero() {
			stamped[i].CreatedAt = time.Now()
		}
		stamped[i].CreatedAt = truncate(stamped[i].CreatedAt)
	}
	events := store.ChainEvents(visit.VisitID, lastSeq, prevHash.String, stamped)
	for _, event := range events {
		if _, err = tx.Exec(ctx, `
			INSERT INTO visit_events (event_id, visit_id, seq, type, payload, created_at, prev_hash, hash)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, event.EventID, event.VisitID, event.Seq, event.Type, []byte(event.Payload), event.CreatedAt, event.PrevHash, event.Hash); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) ListVisitEvents(ctx context.Context, visitID string) ([]models.VisitEvent, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM visits WHERE visit_id = $1)`, visitID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrVisitNotFound
	}

	rows, err := s.pool.Query(ctx, `
		SELECT event_id, visit_id, seq, type, payload, created_at, prev_hash, hash
		FROM visit_events
		WHERE visit_id = $1
		ORDER BY seq ASC
	`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.VisitEvent{}
	for rows.Next() {
		var event models.VisitEvent
		var payload []byte
		if err := rows.Scan(&event.EventID, &event.VisitID, &event.Seq, &event.Type, &payload, &event.CreatedAt, &event.PrevHash, &event.Hash); err != nil {
			return nil, err
		}
		event.Payload = json.RawMessage(payload)
		event.CreatedAt = event.CreatedAt.UTC()
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *Store) ListActiveVisitIDs(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT visit_id
		FROM visits
		WHERE active AND NOT paused
		ORDER BY created_at ASC, visit_id ASC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func findVisitByRequestID(ctx context.Context, tx pgx.Tx, requestID string) (models.Visit, bool, error) {
	var snapshot []byte
	row := tx.QueryRow(ctx, `SELECT snapshot FROM visits WHERE request_id = $1`, requestID)
	if err := row.Scan(&snapshot); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Visit{}, false, nil
		}
		return models.Visit{}, false, err
	}
	var visit models.Visit
	if err := json.Unmarshal(snapshot, &visit); err != nil {
		return models.Visit{}, false, err
	}
	return visit, true, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

// Timestamps round-trip through TIMESTAMPTZ with microsecond precision.
func truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
