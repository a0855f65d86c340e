package event

// Type identifies the type of domain event
type Type string

const (
	TypeSubmitted         Type = "workflow.submitted"
	TypeAdvanced          Type = "workflow.advanced"
	TypeRejected          Type = "workflow.rejected"
	TypeRevisionRequested Type = "workflow.revision_requested"
	TypeResubmitted       Type = "workflow.resubmitted"
	TypeStalled           Type = "workflow.stalled"
)

// Payload keys shared by producers and handlers
const (
	KeyOwnerUserID = "owner_user_id"
	KeyActorUserID = "actor_user_id"
	KeyFromStage   = "from_stage"
	KeyToStage     = "to_stage"
	KeyStage       = "stage"
	KeyTitle       = "title"
	KeyComment     = "comment"
	KeyIdleHours   = "idle_hours"
)

// AllTypes lists every workflow event type
func AllTypes() []Type {
	return []Type{
		TypeSubmitted,
		TypeAdvanced,
		TypeRejected,
		TypeRevisionRequested,
		TypeResubmitted,
		TypeStalled,
	}
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeSubmitted,
		TypeAdvanced,
		TypeRejected,
		TypeRevisionRequested,
		TypeResubmitted,
		TypeStalled:
		return true
	default:
		return false
	}
}
