package models

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusQueued    Status = "QUEUED"
	StatusReady     Status = "READY"
	StatusInSession Status = "IN_SESSION"
	StatusCompleted Status = "COMPLETED"
	StatusPaused    Status = "PAUSED"
)

// IsActive reports whether a step is occupying a station queue.
func (s Status) IsActive() bool {
	return s == StatusQueued || s == StatusReady || s == StatusInSession
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusQueued, StatusReady, StatusInSession, StatusCompleted, StatusPaused:
		return true
	}
	return false
}

type StepType string

const (
	StepTriage   StepType = "TRIAGE"
	StepConsult  StepType = "CONSULT"
	StepLab      StepType = "LAB"
	StepImaging  StepType = "IMAGING"
	StepPharmacy StepType = "PHARMACY"
	StepBilling  StepType = "BILLING"
)

func (t StepType) Valid() bool {
	switch t {
	case StepTriage, StepConsult, StepLab, StepImaging, StepPharmacy, StepBilling:
		return true
	}
	return false
}

// QueueStep is one clinical station instance for the current visit.
type QueueStep struct {
	ID           string   `json:"id" yaml:"id"`
	Label        string   `json:"label" yaml:"label"`
	Location     string   `json:"location" yaml:"location,omitempty"`
	Floor        string   `json:"floor" yaml:"floor,omitempty"`
	Wing         string   `json:"wing" yaml:"wing,omitempty"`
	Type         StepType `json:"type" yaml:"type"`
	Status       Status   `json:"status" yaml:"-"`
	WaitMinutes  int      `json:"wait_minutes" yaml:"wait_minutes"`
	Ticket       string   `json:"ticket" yaml:"ticket"`
	Dependencies []string `json:"dependencies" yaml:"dependencies,omitempty"`
}

type StepTransition struct {
	StepID string `json:"step_id"`
	From   Status `json:"from"`
	To     Status `json:"to"`
}
