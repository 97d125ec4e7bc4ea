package visits

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/normanwashere/patient-portal-prototype-sub005/internal/models"
	"github.com/normanwashere/patient-portal-prototype-sub005/internal/store"
	"github.com/normanwashere/patient-portal-prototype-sub005/internal/workflow"
)

var transitionsTotal = expvar.NewInt("visit_transitions_total")

type Options struct {
	Seed        []models.QueueStep
	DefaultMode models.Mode
	Logger      logrus.FieldLogger
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Registry keeps one engine per checked-in, unfinished visit. Each visit has
// its own lock so an operation and the persistence of its changes are never
// interleaved with another operation on the same visit. Visits are dropped
// from the cache once they leave the queue or complete.
type Registry struct {
	store  store.VisitStore
	seed   []models.QueueStep
	mode   models.Mode
	log    logrus.FieldLogger
	tracer trace.Tracer

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu     sync.Mutex
	engine *workflow.Engine
}

var _ Service = (*Registry)(nil)

func NewRegistry(visitStore store.VisitStore, options Options) *Registry {
	mode := options.DefaultMode
	if !mode.Valid() {
		mode = models.ModeLinear
	}
	logger := options.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	provider := options.TracerProvider
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Registry{
		store:   visitStore,
		seed:    options.Seed,
		mode:    mode,
		log:     logger.WithField("component", "visits"),
		tracer:  provider.Tracer("visit-service/visits"),
		entries: make(map[string]*entry),
	}
}

func (r *Registry) CreateVisit(ctx context.Context, input CreateVisitInput) (models.VisitView, bool, error) {
	ctx, span := r.tracer.Start(ctx, "visits.CreateVisit")
	defer span.End()

	mode := r.mode
	if input.Mode.Valid() {
		mode = input.Mode
	}
	engine := workflow.New(uuid.NewString(), r.seed, workflow.WithMode(mode), workflow.WithRequestID(input.RequestID))
	stored, created, err := r.store.CreateVisit(ctx, engine.Snapshot())
	if err != nil {
		return models.VisitView{}, false, r.fail(span, fmt.Errorf("create visit: %w", err))
	}
	span.SetAttributes(attribute.String("visit.id", stored.VisitID), attribute.Bool("visit.created", created))
	if !created {
		view, err := r.GetVisit(ctx, stored.VisitID)
		return view, false, err
	}

	r.log.WithFields(logrus.Fields{"visit_id": stored.VisitID, "mode": mode}).Info("visit created")
	return engine.View(), true, nil
}

func (r *Registry) GetVisit(ctx context.Context, visitID string) (models.VisitView, error) {
	engine, err := r.peek(ctx, visitID)
	if err != nil {
		return models.VisitView{}, err
	}
	return engine.View(), nil
}

func (r *Registry) ApplyVisitAction(ctx context.Context, input VisitActionInput) (models.VisitView, bool, error) {
	ctx, span := r.tracer.Start(ctx, "visits.ApplyVisitAction", trace.WithAttributes(
		attribute.String("visit.id", input.VisitID),
		attribute.String("visit.action", input.Action),
	))
	defer span.End()

	var op func(*workflow.Engine) bool
	switch input.Action {
	case models.ActionJoinQueue:
		op = (*workflow.Engine).JoinQueue
	case models.ActionLeaveQueue:
		op = (*workflow.Engine).LeaveQueue
	case models.ActionAdvance:
		op = (*workflow.Engine).Advance
	case models.ActionToggleMode:
		op = (*workflow.Engine).ToggleQueueMode
	case models.ActionQueueAll:
		op = (*workflow.Engine).QueueAllAvailable
	case models.ActionResumeQueue:
		op = (*workflow.Engine).ResumeQueue
	case models.ActionPauseQueue:
		pause := input.Pause
		pause.Reason = strings.TrimSpace(pause.Reason)
		if pause.Reason == "" {
			return models.VisitView{}, false, r.fail(span, ErrInvalidPause)
		}
		op = func(e *workflow.Engine) bool {
			return e.PauseQueue(pause.Reason, strings.TrimSpace(pause.Notes), pause.ResumeDate)
		}
	default:
		return models.VisitView{}, false, r.fail(span, fmt.Errorf("%w: %s", ErrUnknownAction, input.Action))
	}

	view, applied, err := r.apply(ctx, input.VisitID, op)
	if err != nil {
		return models.VisitView{}, false, r.fail(span, err)
	}
	span.SetAttributes(attribute.Bool("visit.applied", applied))
	return view, applied, nil
}

func (r *Registry) ApplyStepAction(ctx context.Context, input StepActionInput) (models.VisitView, bool, error) {
	ctx, span := r.tracer.Start(ctx, "visits.ApplyStepAction", trace.WithAttributes(
		attribute.String("visit.id", input.VisitID),
		attribute.String("visit.step_id", input.StepID),
		attribute.String("visit.action", input.Action),
	))
	defer span.End()

	var op func(*workflow.Engine, string) bool
	switch input.Action {
	case models.ActionQueueStep:
		op = (*workflow.Engine).QueueForStep
	case models.ActionStartStep:
		op = (*workflow.Engine).StartStep
	case models.ActionCheckIn:
		op = (*workflow.Engine).CheckIn
	case models.ActionCompleteStep:
		op = (*workflow.Engine).CompleteStep
	default:
		return models.VisitView{}, false, r.fail(span, fmt.Errorf("%w: %s", ErrUnknownAction, input.Action))
	}

	view, applied, err := r.apply(ctx, input.VisitID, func(e *workflow.Engine) bool {
		return op(e, input.StepID)
	}, input.StepID)
	if err != nil {
		return models.VisitView{}, false, r.fail(span, err)
	}
	span.SetAttributes(attribute.Bool("visit.applied", applied))
	return view, applied, nil
}

func (r *Registry) CanQueueStep(ctx context.Context, visitID, stepID string) (bool, error) {
	engine, err := r.peek(ctx, visitID)
	if err != nil {
		return false, err
	}
	if _, ok := engine.Step(stepID); !ok {
		return false, store.ErrStepNotFound
	}
	return engine.CanQueueStep(stepID), nil
}

func (r *Registry) ListEvents(ctx context.Context, visitID string) ([]models.VisitEvent, error) {
	return r.store.ListVisitEvents(ctx, visitID)
}

func (r *Registry) VerifyEvents(ctx context.Context, visitID string) (bool, error) {
	events, err := r.store.ListVisitEvents(ctx, visitID)
	if err != nil {
		return false, err
	}
	if err := store.VerifyVisitEvents(events); err != nil {
		r.log.WithError(err).WithField("visit_id", visitID).Warn("visit journal failed verification")
		return false, nil
	}
	return true, nil
}

// AdvanceAll ticks every checked-in, unpaused visit once.
func (r *Registry) AdvanceAll(ctx context.Context, batchSize int) (int, error) {
	ids, err := r.store.ListActiveVisitIDs(ctx, batchSize)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		_, applied, err := r.ApplyVisitAction(ctx, VisitActionInput{VisitID: id, Action: models.ActionAdvance})
		if err != nil {
			r.log.WithError(err).WithField("visit_id", id).Warn("auto advance failed")
			continue
		}
		if applied {
			count++
		}
	}
	return count, nil
}

// apply runs op under the visit lock and persists whatever it changed. When
// persisting fails the engine is reverted to the state it had before op, so a
// failed action never reaches the store through a later one.
func (r *Registry) apply(ctx context.Context, visitID string, op func(*workflow.Engine) bool, stepID ...string) (models.VisitView, bool, error) {
	e, err := r.lockEntry(ctx, visitID)
	if err != nil {
		return models.VisitView{}, false, err
	}
	defer e.mu.Unlock()

	for _, id := range stepID {
		if _, ok := e.engine.Step(id); !ok {
			return models.VisitView{}, false, store.ErrStepNotFound
		}
	}

	before := e.engine.Snapshot()
	applied := op(e.engine)
	changes := e.engine.DrainChanges()
	if len(changes) > 0 {
		if err := r.persist(ctx, e.engine, changes); err != nil {
			e.engine.Revert(before)
			return models.VisitView{}, false, fmt.Errorf("persist visit %s: %w", visitID, err)
		}
	}
	view := e.engine.View()
	if !view.Active || view.Complete {
		r.evict(visitID, e)
	}
	return view, applied, nil
}

func (r *Registry) persist(ctx context.Context, engine *workflow.Engine, changes []workflow.Change) error {
	inputs := make([]store.EventInput, 0, len(changes))
	transitions := 0
	for _, change := range changes {
		payload, err := json.Marshal(change)
		if err != nil {
			return err
		}
		inputs = append(inputs, store.EventInput{Type: change.Action, Payload: payload, CreatedAt: change.At})
		transitions += len(change.Transitions)
	}
	if _, err := r.store.SaveVisit(ctx, engine.Snapshot(), inputs); err != nil {
		return err
	}
	transitionsTotal.Add(int64(transitions))
	r.log.WithFields(logrus.Fields{
		"visit_id":    engine.VisitID(),
		"events":      len(inputs),
		"transitions": transitions,
	}).Debug("visit changes persisted")
	return nil
}

// lockEntry returns the cached entry for visitID with its lock held. An entry
// evicted while the caller waited for its lock is not used.
func (r *Registry) lockEntry(ctx context.Context, visitID string) (*entry, error) {
	for {
		e, err := r.load(ctx, visitID)
		if err != nil {
			return nil, err
		}
		e.mu.Lock()
		r.mu.Lock()
		current := r.entries[visitID] == e
		r.mu.Unlock()
		if current {
			return e, nil
		}
		e.mu.Unlock()
	}
}

func (r *Registry) load(ctx context.Context, visitID string) (*entry, error) {
	r.mu.Lock()
	e, ok := r.entries[visitID]
	r.mu.Unlock()
	if ok {
		return e, nil
	}

	visit, err := r.store.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[visitID]; ok {
		return e, nil
	}
	e = &entry{engine: workflow.Restore(visit)}
	r.entries[visitID] = e
	return e, nil
}

// peek serves reads. A visit that is not cached is restored from the store
// without being cached.
func (r *Registry) peek(ctx context.Context, visitID string) (*workflow.Engine, error) {
	r.mu.Lock()
	e, ok := r.entries[visitID]
	r.mu.Unlock()
	if ok {
		return e.engine, nil
	}
	visit, err := r.store.GetVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	return workflow.Restore(visit), nil
}

// evict drops a visit that left the queue or finished. Only visits that are
// checked in and still in progress stay cached.
func (r *Registry) evict(visitID string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[visitID] == e {
		delete(r.entries, visitID)
	}
}

func (r *Registry) fail(span trace.Span, err error) error {
	if !errors.Is(err, store.ErrVisitNotFound) && !errors.Is(err, store.ErrStepNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
