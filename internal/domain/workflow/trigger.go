package workflow

import "fmt"

// Trigger represents a reviewer decision that can cause a stage transition
type Trigger string

const (
	TriggerApprove         Trigger = "approve"
	TriggerReject          Trigger = "reject"
	TriggerRequestRevision Trigger = "request_revision"
)

var decisionOrder = []Trigger{TriggerApprove, TriggerReject, TriggerRequestRevision}

var decisionAliases = map[string]Trigger{
	"approve":          TriggerApprove,
	"approved":         TriggerApprove,
	"reject":           TriggerReject,
	"rejected":         TriggerReject,
	"request_revision": TriggerRequestRevision,
	"revision":         TriggerRequestRevision,
	"revise":           TriggerRequestRevision,
}

// ParseDecision maps a raw decision label onto a trigger
func ParseDecision(raw string) (Trigger, error) {
	if t, ok := decisionAliases[Normalize(raw)]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown decision %q", ErrInvalidDecision, raw)
}

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// IsValid returns true if the trigger is a known decision
func (t Trigger) IsValid() bool {
	switch t {
	case TriggerApprove, TriggerReject, TriggerRequestRevision:
		return true
	default:
		return false
	}
}
