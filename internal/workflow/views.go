package workflow

import (
	"fmt"
	"math"

	"github.com/normanwashere/patient-portal-prototype-sub005/internal/models"
)

const (
	IdleQueueNumber        = "---"
	PlaceholderPeopleAhead = 4
	PlaceholderServing     = "A-001"
	WaitNow                = "Now"
)

var activityRank = map[models.Status]int{
	models.StatusQueued:    1,
	models.StatusReady:     2,
	models.StatusInSession: 3,
}

// CurrentStepIndex picks the step the patient should be looking at.
func CurrentStepIndex(steps []models.QueueStep) int {
	best, bestRank := -1, 0
	for i, step := range steps {
		if rank := activityRank[step.Status]; rank > bestRank {
			best, bestRank = i, rank
		}
	}
	if best >= 0 {
		return best
	}
	if len(steps) == 0 || allWithStatus(steps, models.StatusPending) {
		return 0
	}
	last := len(steps) - 1
	if allWithStatus(steps, models.StatusCompleted) {
		return last
	}
	lastCompleted := -1
	for i, step := range steps {
		if step.Status == models.StatusCompleted {
			lastCompleted = i
		}
	}
	if lastCompleted+1 > last {
		return last
	}
	return lastCompleted + 1
}

func VisitProgress(steps []models.QueueStep) int {
	if len(steps) == 0 {
		return 0
	}
	completed := len(filterSteps(steps, models.StatusCompleted))
	return int(math.Round(100 * float64(completed) / float64(len(steps))))
}

func IsVisitComplete(steps []models.QueueStep) bool {
	return len(steps) > 0 && allWithStatus(steps, models.StatusCompleted)
}

func ActiveSteps(steps []models.QueueStep) []models.QueueStep {
	out := []models.QueueStep{}
	for _, step := range steps {
		if step.Status.IsActive() {
			out = append(out, step)
		}
	}
	return out
}

func PendingSteps(steps []models.QueueStep) []models.QueueStep {
	return filterSteps(steps, models.StatusPending)
}

func CompletedSteps(steps []models.QueueStep) []models.QueueStep {
	return filterSteps(steps, models.StatusCompleted)
}

func PausedSteps(steps []models.QueueStep) []models.QueueStep {
	return filterSteps(steps, models.StatusPaused)
}

// QueueInfoFor builds the "your place in line" bundle for the current step.
func QueueInfoFor(steps []models.QueueStep) models.QueueInfo {
	idle := models.QueueInfo{
		QueueNumber:   IdleQueueNumber,
		EstimatedWait: formatWait(0),
	}
	if len(steps) == 0 {
		return idle
	}
	current := steps[CurrentStepIndex(steps)]
	switch current.Status {
	case models.StatusReady, models.StatusInSession:
		return models.QueueInfo{
			QueueNumber:    current.Ticket,
			EstimatedWait:  WaitNow,
			CurrentServing: current.Ticket,
		}
	case models.StatusQueued:
		return models.QueueInfo{
			QueueNumber:          current.Ticket,
			PeopleAhead:          PlaceholderPeopleAhead,
			EstimatedWaitMinutes: current.WaitMinutes,
			EstimatedWait:        formatWait(current.WaitMinutes),
			CurrentServing:       PlaceholderServing,
		}
	}
	return idle
}

// BuildView computes every derived read model for a visit snapshot.
func BuildView(visit models.Visit) models.VisitView {
	steps := visit.Steps
	return models.VisitView{
		Visit:            visit,
		CurrentStepIndex: CurrentStepIndex(steps),
		Progress:         VisitProgress(steps),
		Complete:         IsVisitComplete(steps),
		ActiveSteps:      ActiveSteps(steps),
		PendingSteps:     PendingSteps(steps),
		CompletedSteps:   CompletedSteps(steps),
		PausedSteps:      PausedSteps(steps),
		QueueInfo:        QueueInfoFor(steps),
	}
}

func (e *Engine) CurrentStepIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return CurrentStepIndex(e.steps)
}

func (e *Engine) CurrentStep() (models.QueueStep, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.steps) == 0 {
		return models.QueueStep{}, false
	}
	idx := CurrentStepIndex(e.steps)
	return cloneSteps(e.steps[idx : idx+1])[0], true
}

func (e *Engine) VisitProgress() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return VisitProgress(e.steps)
}

func (e *Engine) IsVisitComplete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return IsVisitComplete(e.steps)
}

func (e *Engine) ActiveSteps() []models.QueueStep {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneSteps(ActiveSteps(e.steps))
}

func (e *Engine) PendingSteps() []models.QueueStep {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneSteps(PendingSteps(e.steps))
}

func (e *Engine) CompletedSteps() []models.QueueStep {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneSteps(CompletedSteps(e.steps))
}

func (e *Engine) PausedSteps() []models.QueueStep {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneSteps(PausedSteps(e.steps))
}

func (e *Engine) QueueInfo() models.QueueInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return QueueInfoFor(e.steps)
}

func (e *Engine) View() models.VisitView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return BuildView(e.snapshotLocked())
}

func filterSteps(steps []models.QueueStep, status models.Status) []models.QueueStep {
	out := []models.QueueStep{}
	for _, step := range steps {
		if step.Status == status {
			out = append(out, step)
		}
	}
	return out
}

func allWithStatus(steps []models.QueueStep, status models.Status) bool {
	for _, step := range steps {
		if step.Status != status {
			return false
		}
	}
	return true
}

func formatWait(minutes int) string {
	return fmt.Sprintf("%d min", minutes)
}
