package workflow

import (
	"time"

	"github.com/normanwashere/patient-portal-prototype-sub005/internal/models"
)

// PauseQueue freezes every QUEUED, READY or IN_SESSION step as PAUSED.
// PENDING and COMPLETED steps are left alone. Only an active, unpaused
// visit can be paused.
func (e *Engine) PauseQueue(reason, notes string, resumeDate *time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active || e.pause != nil {
		return false
	}
	next := transform(e.steps, func(_ int, step models.QueueStep) models.Status {
		if ValidTransition(models.ActionPauseQueue, step.Status) {
			return models.StatusPaused
		}
		return step.Status
	})
	e.pause = &models.PauseInfo{
		Reason:   reason,
		Notes:    notes,
		PausedAt: e.now().UTC(),
	}
	if resumeDate != nil {
		date := *resumeDate
		e.pause.ResumeDate = &date
	}
	e.record(models.ActionPauseQueue, "", e.swap(next))
	return true
}

// ResumeQueue returns every PAUSED step to QUEUED. The READY or IN_SESSION
// status a step held before the pause is not restored.
func (e *Engine) ResumeQueue() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pause == nil {
		return false
	}
	e.resumeLocked(models.ActionResumeQueue)
	return true
}

// JoinQueue checks the patient in. A paused visit is resumed in place; an
// inactive visit starts over with every step PENDING.
func (e *Engine) JoinQueue() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pause != nil {
		e.active = true
		e.resumeLocked(models.ActionJoinQueue)
		return true
	}
	if e.active {
		return false
	}
	e.active = true
	e.record(models.ActionJoinQueue, "", e.swap(resetSteps(e.steps)))
	return true
}

// LeaveQueue abandons the visit: active and pause state are cleared and every
// step goes back to PENDING.
func (e *Engine) LeaveQueue() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	wasActive := e.active || e.pause != nil
	e.active = false
	e.pause = nil
	transitions := e.swap(resetSteps(e.steps))
	if !wasActive && len(transitions) == 0 {
		return false
	}
	e.record(models.ActionLeaveQueue, "", transitions)
	return true
}

func (e *Engine) resumeLocked(action string) {
	next := transform(e.steps, func(_ int, step models.QueueStep) models.Status {
		if ValidTransition(models.ActionResumeQueue, step.Status) {
			return models.StatusQueued
		}
		return step.Status
	})
	e.pause = nil
	e.record(action, "", e.swap(next))
}
