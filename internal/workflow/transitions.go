package workflow

import "github.com/normanwashere/patient-portal-prototype-sub005/internal/models"

var transitionMap = map[string][]models.Status{
	models.ActionQueueStep:    {models.StatusPending},
	models.ActionStartStep:    {models.StatusQueued},
	models.ActionCheckIn:      {models.StatusReady},
	models.ActionCompleteStep: {models.StatusInSession},
	models.ActionPauseQueue:   {models.StatusQueued, models.StatusReady, models.StatusInSession},
	models.ActionResumeQueue:  {models.StatusPaused},
}

var transitionTarget = map[string]models.Status{
	models.ActionQueueStep:    models.StatusQueued,
	models.ActionStartStep:    models.StatusReady,
	models.ActionCheckIn:      models.StatusInSession,
	models.ActionCompleteStep: models.StatusCompleted,
	models.ActionPauseQueue:   models.StatusPaused,
	models.ActionResumeQueue:  models.StatusQueued,
}

// ValidTransition reports whether a step in fromStatus may take the given action.
func ValidTransition(action string, fromStatus models.Status) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}

func TargetStatus(action string) (models.Status, bool) {
	status, ok := transitionTarget[action]
	return status, ok
}
