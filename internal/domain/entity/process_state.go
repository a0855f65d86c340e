package entity

import (
	"time"

	"github.com/garyjia/ethics-review/internal/domain/workflow"
)

// ProcessState is the position of one application in its frozen template
type ProcessState struct {
	ApplicationID int64           `json:"application_id"`
	TemplateID    int64           `json:"template_id"`
	CurrentStage  workflow.Stage  `json:"current_stage"`
	NextStage     *workflow.Stage `json:"next_stage"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewProcessState positions an application at the template's first stage
func NewProcessState(applicationID int64, tpl *WorkflowTemplate, now time.Time) *ProcessState {
	first := tpl.Stages.First()
	ps := &ProcessState{
		ApplicationID: applicationID,
		TemplateID:    tpl.ID,
		CurrentStage:  first,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	ps.SetStage(tpl.Stages, first)
	return ps
}

// SetStage moves the state to the given stage and derives the next one
func (p *ProcessState) SetStage(stages workflow.Stages, stage workflow.Stage) {
	p.CurrentStage = stage
	if next, ok := stages.After(stage); ok {
		p.NextStage = &next
	} else {
		p.NextStage = nil
	}
}

// IsDone returns true once the final approval has been recorded
func (p *ProcessState) IsDone() bool {
	return p.CurrentStage.IsDone()
}

// Next returns the next stage label, empty when there is none
func (p *ProcessState) Next() string {
	if p.NextStage == nil {
		return ""
	}
	return p.NextStage.String()
}

// Clone returns a copy that shares no pointers with the receiver
func (p *ProcessState) Clone() *ProcessState {
	c := *p
	if p.NextStage != nil {
		n := *p.NextStage
		c.NextStage = &n
	}
	return &c
}
