package entity

import "time"

// Transition is the audit trail of one reviewer decision
type Transition struct {
	ID            int64     `json:"id"`
	ApplicationID int64     `json:"application_id"`
	FromStage     string    `json:"from_stage"`
	ToStage       string    `json:"to_stage"`
	Decision      string    `json:"decision"`
	ActorUserID   string    `json:"actor_user_id"`
	Comment       string    `json:"comment,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// StalledItem is a process state that has not moved within the escalation threshold
type StalledItem struct {
	ApplicationID int64         `json:"application_id"`
	OwnerUserID   string        `json:"owner_user_id"`
	Title         string        `json:"title"`
	Stage         string        `json:"stage"`
	Role          string        `json:"role"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Idle          time.Duration `json:"idle"`
}
