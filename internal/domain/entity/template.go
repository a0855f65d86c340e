package entity

import (
	"time"

	"github.com/garyjia/ethics-review/internal/domain/workflow"
)

// WorkflowTemplate is an ordered list of review stages. At most one template
// is current; a template referenced by a process state is never modified.
type WorkflowTemplate struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Stages    workflow.Stages `json:"stages"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// IsCurrent returns true if the template is used for new submissions
func (t *WorkflowTemplate) IsCurrent() bool {
	return t.Status == TemplateStatusCurrent
}
