package models

import (
	"encoding/json"
	"time"
)

const (
	ActionJoinQueue    = "join_queue"
	ActionLeaveQueue   = "leave_queue"
	ActionToggleMode   = "toggle_mode"
	ActionAdvance      = "advance"
	ActionQueueStep    = "queue_step"
	ActionStartStep    = "start_step"
	ActionCheckIn      = "check_in"
	ActionCompleteStep = "complete_step"
	ActionQueueAll     = "queue_all"
	ActionPauseQueue   = "pause_queue"
	ActionResumeQueue  = "resume_queue"
)

type VisitEvent struct {
	EventID   string          `json:"event_id"`
	VisitID   string          `json:"visit_id"`
	Seq       int             `json:"seq"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}
