package models

import "time"

type Mode string

const (
	ModeLinear      Mode = "LINEAR"
	ModeMultiStream Mode = "MULTI_STREAM"
)

func (m Mode) Valid() bool {
	return m == ModeLinear || m == ModeMultiStream
}

type PauseInfo struct {
	Reason     string     `json:"reason"`
	Notes      string     `json:"notes,omitempty"`
	ResumeDate *time.Time `json:"resume_date,omitempty"`
	PausedAt   time.Time  `json:"paused_at"`
}

type Visit struct {
	VisitID   string      `json:"visit_id"`
	RequestID string      `json:"request_id,omitempty"`
	Mode      Mode        `json:"mode"`
	Active    bool        `json:"active"`
	Paused    bool        `json:"paused"`
	Pause     *PauseInfo  `json:"pause,omitempty"`
	Steps     []QueueStep `json:"steps"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type QueueInfo struct {
	QueueNumber          string `json:"queue_number"`
	PeopleAhead          int    `json:"people_ahead"`
	EstimatedWaitMinutes int    `json:"estimated_wait_minutes"`
	EstimatedWait        string `json:"estimated_wait"`
	CurrentServing       string `json:"current_serving,omitempty"`
}

// VisitView is a visit plus every derived read model, computed at read time.
type VisitView struct {
	Visit
	CurrentStepIndex int         `json:"current_step_index"`
	Progress         int         `json:"progress"`
	Complete         bool        `json:"complete"`
	ActiveSteps      []QueueStep `json:"active_steps"`
	PendingSteps     []QueueStep `json:"pending_steps"`
	CompletedSteps   []QueueStep `json:"completed_steps"`
	PausedSteps      []QueueStep `json:"paused_steps"`
	QueueInfo        QueueInfo   `json:"queue_info"`
}
