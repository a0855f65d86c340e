package port

import (
	"context"

	"github.com/garyjia/ethics-review/internal/domain/entity"
)

// ApplicationStore is the narrow view of applications the workflow needs.
// GetApplication returns nil, nil when the application does not exist.
type ApplicationStore interface {
	GetApplication(ctx context.Context, id int64) (*entity.Application, error)
	SetStatus(ctx context.Context, id int64, status string) error
	SetArchived(ctx context.Context, id int64, archived bool) error
}

// UserDirectory resolves roles and addressing for users.
// GetRole returns an empty role for unknown users.
type UserDirectory interface {
	GetRole(ctx context.Context, userID string) (string, error)
	ListUsersWithRole(ctx context.Context, role string) ([]*entity.User, error)
	GetContact(ctx context.Context, userID string) (*entity.Recipient, error)
}

// DeliveryChannel sends a notification to one recipient
type DeliveryChannel interface {
	Name() string
	Send(ctx context.Context, to entity.Recipient, subject, body string) error
}

// Metrics records workflow counters
type Metrics interface {
	TransitionRecorded(ctx context.Context, decision, stage string)
	NotificationDelivered(ctx context.Context, channel string, ok bool)
	StalledDetected(ctx context.Context, count int)
}
