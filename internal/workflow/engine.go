// Package workflow tracks a patient's progress through the clinical stations of
// a single hospital visit.
//
// An Engine owns the visit's ordered step collection. Every public method runs
// in one critical section: it reads the current collection, computes the next
// one from that snapshot and swaps it in. Inapplicable calls are silent no-ops;
// mutating methods report whether anything was applied.
package workflow

import (
	"sync"
	"time"

	"github.com/normanwashere/patient-portal-prototype-sub005/internal/models"
)

// Change is one applied operation, kept until DrainChanges is called.
type Change struct {
	Action      string                  `json:"action"`
	StepID      string                  `json:"step_id,omitempty"`
	Transitions []models.StepTransition `json:"transitions"`
	Mode        models.Mode             `json:"mode"`
	Active      bool                    `json:"active"`
	Paused      bool                    `json:"paused"`
	Pause       *models.PauseInfo       `json:"pause,omitempty"`
	At          time.Time               `json:"at"`
}

type Engine struct {
	mu        sync.Mutex
	visitID   string
	requestID string
	createdAt time.Time
	updatedAt time.Time
	steps     []models.QueueStep
	mode      models.Mode
	active    bool
	pause     *models.PauseInfo
	changes   []Change
	now       func() time.Time
}

type Option func(*Engine)

func WithMode(mode models.Mode) Option {
	return func(e *Engine) {
		if mode.Valid() {
			e.mode = mode
		}
	}
}

func WithRequestID(requestID string) Option {
	return func(e *Engine) {
		e.requestID = requestID
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New starts an inactive visit over the given steps, all reset to PENDING.
func New(visitID string, steps []models.QueueStep, opts ...Option) *Engine {
	e := &Engine{
		visitID: visitID,
		mode:    models.ModeLinear,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.steps = resetSteps(steps)
	e.createdAt = e.now().UTC()
	e.updatedAt = e.createdAt
	return e
}

// Restore rebuilds an engine from a previously taken snapshot.
func Restore(visit models.Visit, opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	e.loadLocked(visit)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Revert puts the engine back to a snapshot and discards every change not
// yet drained.
func (e *Engine) Revert(visit models.Visit) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loadLocked(visit)
	e.changes = nil
}

func (e *Engine) loadLocked(visit models.Visit) {
	e.visitID = visit.VisitID
	e.requestID = visit.RequestID
	e.createdAt = visit.CreatedAt
	e.updatedAt = visit.UpdatedAt
	e.steps = cloneSteps(visit.Steps)
	e.mode = visit.Mode
	e.active = visit.Active
	e.pause = clonePause(visit.Pause)
	if !e.mode.Valid() {
		e.mode = models.ModeLinear
	}
	if visit.Paused && e.pause == nil {
		e.pause = &models.PauseInfo{}
	}
}

func (e *Engine) VisitID() string {
	return e.visitID
}

func (e *Engine) Mode() models.Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

func (e *Engine) IsActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *Engine) IsQueuePaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pause != nil
}

func (e *Engine) PauseInfo() (models.PauseInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pause == nil {
		return models.PauseInfo{}, false
	}
	return *clonePause(e.pause), true
}

func (e *Engine) Steps() []models.QueueStep {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneSteps(e.steps)
}

func (e *Engine) Step(stepID string) (models.QueueStep, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx := indexOf(e.steps, stepID)
	if idx < 0 {
		return models.QueueStep{}, false
	}
	return cloneSteps(e.steps[idx : idx+1])[0], true
}

// ToggleQueueMode flips between LINEAR and MULTI_STREAM.
func (e *Engine) ToggleQueueMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == models.ModeLinear {
		e.mode = models.ModeMultiStream
	} else {
		e.mode = models.ModeLinear
	}
	e.record(models.ActionToggleMode, "", nil)
	return true
}

// Snapshot returns the visit state without derived views.
func (e *Engine) Snapshot() models.Visit {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() models.Visit {
	return models.Visit{
		VisitID:   e.visitID,
		RequestID: e.requestID,
		Mode:      e.mode,
		Active:    e.active,
		Paused:    e.pause != nil,
		Pause:     clonePause(e.pause),
		Steps:     cloneSteps(e.steps),
		CreatedAt: e.createdAt,
		UpdatedAt: e.updatedAt,
	}
}

// DrainChanges hands over every change recorded since the previous drain.
func (e *Engine) DrainChanges() []Change {
	e.mu.Lock()
	defer e.mu.Unlock()
	changes := e.changes
	e.changes = nil
	return changes
}

// swap installs next as the step collection and returns the status changes.
func (e *Engine) swap(next []models.QueueStep) []models.StepTransition {
	var transitions []models.StepTransition
	for i := range next {
		if next[i].Status != e.steps[i].Status {
			transitions = append(transitions, models.StepTransition{
				StepID: next[i].ID,
				From:   e.steps[i].Status,
				To:     next[i].Status,
			})
		}
	}
	e.steps = next
	return transitions
}

func (e *Engine) record(action, stepID string, transitions []models.StepTransition) {
	at := e.now().UTC()
	e.updatedAt = at
	e.changes = append(e.changes, Change{
		Action:      action,
		StepID:      stepID,
		Transitions: transitions,
		Mode:        e.mode,
		Active:      e.active,
		Paused:      e.pause != nil,
		Pause:       clonePause(e.pause),
		At:          at,
	})
}

// transform builds the next collection, deciding every status from the
// unmodified current collection.
func transform(steps []models.QueueStep, fn func(i int, step models.QueueStep) models.Status) []models.QueueStep {
	next := cloneSteps(steps)
	for i, step := range steps {
		next[i].Status = fn(i, step)
	}
	return next
}

func cloneSteps(steps []models.QueueStep) []models.QueueStep {
	if steps == nil {
		return nil
	}
	out := make([]models.QueueStep, len(steps))
	for i, step := range steps {
		out[i] = step
		if step.Dependencies != nil {
			out[i].Dependencies = append([]string(nil), step.Dependencies...)
		}
	}
	return out
}

func resetSteps(steps []models.QueueStep) []models.QueueStep {
	out := cloneSteps(steps)
	for i := range out {
		out[i].Status = models.StatusPending
	}
	return out
}

func clonePause(pause *models.PauseInfo) *models.PauseInfo {
	if pause == nil {
		return nil
	}
	out := *pause
	if pause.ResumeDate != nil {
		date := *pause.ResumeDate
		out.ResumeDate = &date
	}
	return &out
}

func indexOf(steps []models.QueueStep, stepID string) int {
	for i, step := range steps {
		if step.ID == stepID {
			return i
		}
	}
	return -1
}
