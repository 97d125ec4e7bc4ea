// Package memory is a process-local VisitStore, used when no database is
// configured.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/normanwashere/patient-portal-prototype-sub005/internal/models"
	"github.com/normanwashere/patient-portal-prototype-sub005/internal/store"
)

type Store struct {
	mu        sync.RWMutex
	visits    map[string]models.Visit
	byRequest map[string]string
	events    map[string][]models.VisitEvent
}

var _ store.VisitStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		visits:    make(map[string]models.Visit),
		byRequest: make(map[string]string),
		events:    make(map[string][]models.VisitEvent),
	}
}

func (s *Store) CreateVisit(ctx context.Context, visit models.Visit) (models.Visit, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if visit.RequestID != "" {
		if existingID, ok := s.byRequest[visit.RequestID]; ok {
			return cloneVisit(s.visits[existingID]), false, nil
		}
		s.byRequest[visit.RequestID] = visit.VisitID
	}
	s.visits[visit.VisitID] = cloneVisit(visit)
	return cloneVisit(visit), true, nil
}

func (s *Store) GetVisit(ctx context.Context, visitID string) (models.Visit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	visit, ok := s.visits[visitID]
	if !ok {
		return models.Visit{}, store.ErrVisitNotFound
	}
	return cloneVisit(visit), nil
}

func (s *Store) SaveVisit(ctx context.Context, visit models.Visit, inputs []store.EventInput) ([]models.VisitEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.visits[visit.VisitID]; !ok {
		return nil, store.ErrVisitNotFound
	}
	existing := s.events[visit.VisitID]
	lastSeq, prevHash := 0, ""
	if n := len(existing); n > 0 {
		lastSeq, prevHash = existing[n-1].Seq, existing[n-1].Hash
	}
	events := store.ChainEvents(visit.VisitID, lastSeq, prevHash, inputs)
	s.visits[visit.VisitID] = cloneVisit(visit)
	s.events[visit.VisitID] = append(existing, events...)
	return events, nil
}

func (s *Store) ListVisitEvents(ctx context.Context, visitID string) ([]models.VisitEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.visits[visitID]; !ok {
		return nil, store.ErrVisitNotFound
	}
	return append([]models.VisitEvent{}, s.events[visitID]...), nil
}

// ListActiveVisitIDs returns checked-in, unpaused visits, oldest first.
func (s *Store) ListActiveVisitIDs(ctx context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []models.Visit
	for _, visit := range s.visits {
		if visit.Active && !visit.Paused {
			active = append(active, visit)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].VisitID < active[j].VisitID
		}
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	ids := make([]string, 0, len(active))
	for _, visit := range active {
		if limit > 0 && len(ids) >= limit {
			break
		}
		ids = append(ids, visit.VisitID)
	}
	return ids, nil
}

func cloneVisit(visit models.Visit) models.Visit {
	out := visit
	if visit.Pause != nil {
		pause := *visit.Pause
		if visit.Pause.ResumeDate != nil {
			date := *visit.Pause.ResumeDate
			pause.ResumeDate = &date
		}
		out.Pause = &pause
	}
	if visit.Steps != nil {
		out.Steps = make([]models.QueueStep, len(visit.Steps))
		for i, step := range visit.Steps {
			out.Steps[i] = step
			out.Steps[i].Dependencies = append([]string(nil), step.Dependencies...)
		}
	}
	return out
}
