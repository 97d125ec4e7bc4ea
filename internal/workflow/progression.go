package workflow

import "github.com/normanwashere/patient-portal-prototype-sub005/internal/models"

// Advance moves the visit forward one tick using the current mode.
func (e *Engine) Advance() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pause != nil {
		return false
	}
	var next []models.QueueStep
	if e.mode == models.ModeMultiStream {
		next = advanceMultiStream(e.steps)
	} else {
		next = advanceLinear(e.steps)
	}
	if next == nil {
		return false
	}
	transitions := e.swap(next)
	if len(transitions) == 0 {
		return false
	}
	e.record(models.ActionAdvance, "", transitions)
	return true
}

// advanceLinear moves the first non-completed step one status forward. When
// that completes a step, the following PENDING step is queued right away.
func advanceLinear(steps []models.QueueStep) []models.QueueStep {
	idx := -1
	for i, step := range steps {
		if step.Status != models.StatusCompleted {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	current := steps[idx]
	var to models.Status
	switch current.Status {
	case models.StatusPending:
		if !dependenciesMet(steps, current) {
			return nil
		}
		to = models.StatusQueued
	case models.StatusQueued:
		to = models.StatusReady
	case models.StatusReady:
		to = models.StatusInSession
	case models.StatusInSession:
		to = models.StatusCompleted
	default:
		return nil
	}

	next := transform(steps, func(i int, step models.QueueStep) models.Status {
		if i == idx {
			return to
		}
		return step.Status
	})
	if to == models.StatusCompleted && idx+1 < len(next) {
		following := next[idx+1]
		if following.Status == models.StatusPending && dependenciesMet(next, following) {
			next[idx+1].Status = models.StatusQueued
		}
	}
	return next
}

// advanceMultiStream runs the three phases of a tick against one snapshot so
// no step moves twice: IN_SESSION completes, READY enters session, QUEUED
// becomes READY. PENDING steps wait for an explicit queue action.
func advanceMultiStream(steps []models.QueueStep) []models.QueueStep {
	return transform(steps, func(_ int, step models.QueueStep) models.Status {
		switch step.Status {
		case models.StatusInSession:
			return models.StatusCompleted
		case models.StatusReady:
			return models.StatusInSession
		case models.StatusQueued:
			return models.StatusReady
		}
		return step.Status
	})
}

// QueueForStep joins the station queue for a PENDING step whose
// dependencies have all completed.
func (e *Engine) QueueForStep(stepID string) bool {
	return e.applyStepAction(models.ActionQueueStep, stepID)
}

func (e *Engine) StartStep(stepID string) bool {
	return e.applyStepAction(models.ActionStartStep, stepID)
}

func (e *Engine) CheckIn(stepID string) bool {
	return e.applyStepAction(models.ActionCheckIn, stepID)
}

func (e *Engine) CompleteStep(stepID string) bool {
	return e.applyStepAction(models.ActionCompleteStep, stepID)
}

func (e *Engine) applyStepAction(action, stepID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pause != nil {
		return false
	}
	idx := indexOf(e.steps, stepID)
	if idx < 0 {
		return false
	}
	step := e.steps[idx]
	if !ValidTransition(action, step.Status) {
		return false
	}
	if action == models.ActionQueueStep && !dependenciesMet(e.steps, step) {
		return false
	}
	to, _ := TargetStatus(action)
	next := transform(e.steps, func(i int, step models.QueueStep) models.Status {
		if i == idx {
			return to
		}
		return step.Status
	})
	e.record(action, stepID, e.swap(next))
	return true
}

// QueueAllAvailable queues every PENDING step whose dependencies are complete
// in the collection as it was before the call.
func (e *Engine) QueueAllAvailable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pause != nil {
		return false
	}
	next := transform(e.steps, func(_ int, step models.QueueStep) models.Status {
		if step.Status == models.StatusPending && dependenciesMet(e.steps, step) {
			return models.StatusQueued
		}
		return step.Status
	})
	transitions := e.swap(next)
	if len(transitions) == 0 {
		return false
	}
	e.record(models.ActionQueueAll, "", transitions)
	return true
}

func (e *Engine) CanQueueStep(stepID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return canQueue(e.steps, stepID)
}

func canQueue(steps []models.QueueStep, stepID string) bool {
	idx := indexOf(steps, stepID)
	if idx < 0 {
		return false
	}
	step := steps[idx]
	return step.Status == models.StatusPending && dependenciesMet(steps, step)
}

func dependenciesMet(steps []models.QueueStep, step models.QueueStep) bool {
	for _, depID := range step.Dependencies {
		idx := indexOf(steps, depID)
		if idx < 0 || steps[idx].Status != models.StatusCompleted {
			return false
		}
	}
	return true
}
