package event

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestType_IsValid(t *testing.T) {
	for _, typ := range AllTypes() {
		if !typ.IsValid() {
			t.Errorf("Type(%q).IsValid() = false, want true", typ)
		}
	}

	tests := []struct {
		name      string
		eventType Type
	}{
		{"unknown type", Type("unknown.type")},
		{"empty string", Type("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.eventType.IsValid() {
				t.Errorf("Type(%q).IsValid() = true, want false", tt.eventType)
			}
		})
	}
}

func TestType_String(t *testing.T) {
	if got := TypeStalled.String(); got != "workflow.stalled" {
		t.Errorf("Type.String() = %v, want %v", got, "workflow.stalled")
	}
}

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{
		KeyFromStage: "faculty",
		KeyToStage:   "committee",
	}

	evt := NewEvent(TypeAdvanced, 123, payload)

	if evt == nil {
		t.Fatal("NewEvent() returned nil")
	}
	if _, err := uuid.Parse(evt.ID); err != nil {
		t.Errorf("Event ID %q is not a UUID: %v", evt.ID, err)
	}
	if evt.Type != TypeAdvanced {
		t.Errorf("Event Type = %v, want %v", evt.Type, TypeAdvanced)
	}
	if evt.ApplicationID != 123 {
		t.Errorf("Event ApplicationID = %v, want %v", evt.ApplicationID, 123)
	}
	if evt.GetPayloadString(KeyToStage) != "committee" {
		t.Errorf("Event Payload[to_stage] = %v, want committee", evt.Payload[KeyToStage])
	}
	if evt.CorrelationID != evt.ID {
		t.Error("root event should correlate to itself")
	}
	if time.Since(evt.Timestamp) > time.Second {
		t.Error("Event Timestamp should be recent")
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	root := NewEvent(TypeSubmitted, 7, nil)
	evt := NewEventWithCorrelation(TypeStalled, 7, nil, root.ID)

	if evt.CorrelationID != root.ID {
		t.Errorf("Event CorrelationID = %v, want %v", evt.CorrelationID, root.ID)
	}
	if evt.ID == root.ID {
		t.Error("correlated event should have its own ID")
	}
}

func TestEvent_PayloadAccessors(t *testing.T) {
	evt := NewEvent(TypeStalled, 1, map[string]interface{}{
		"str":     "faculty",
		"int64":   int64(100),
		"int":     50,
		"float64": 75.5,
	})

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"string", evt.GetPayloadString("str"), "faculty"},
		{"non-string", evt.GetPayloadString("int"), ""},
		{"missing string", evt.GetPayloadString("nope"), ""},
		{"int64 as float", evt.GetPayloadFloat("int64"), 100.0},
		{"missing float", evt.GetPayloadFloat("str"), 0.0},
		{"float", evt.GetPayloadFloat("float64"), 75.5},
		{"int as float", evt.GetPayloadFloat("int"), 50.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}
