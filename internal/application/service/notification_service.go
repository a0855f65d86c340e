package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/ethics-review/internal/application/dispatcher"
	"github.com/garyjia/ethics-review/internal/application/port"
	"github.com/garyjia/ethics-review/internal/domain/entity"
	"github.com/garyjia/ethics-review/internal/domain/event"
	"github.com/garyjia/ethics-review/internal/domain/workflow"
)

// NotificationService turns workflow events into per-user notifications
type NotificationService interface {
	// Handle persists one notification per recipient of the event and
	// schedules delivery for after the surrounding transaction commits
	Handle(ctx context.Context, evt *event.Event) error

	// Register subscribes Handle to every workflow event type
	Register(d dispatcher.Dispatcher)

	// ListForUser returns the user's notifications, newest first
	ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*entity.NotificationEvent, error)

	// MarkRead flags one of the user's notifications as read
	MarkRead(ctx context.Context, userID string, id int64) error
}

type notificationServiceImpl struct {
	notificationRepo port.NotificationRepository
	users            port.UserDirectory
	roles            *workflow.RoleMap
	channel          port.DeliveryChannel
	txManager        port.TransactionManager
	metrics          port.Metrics
	logger           Logger

	oversightRole string
	timeout       time.Duration
	now           func() time.Time
}

// NotificationOption configures the notification service
type NotificationOption func(*notificationServiceImpl)

// WithOversightRole adds users of the role to every stall notification
func WithOversightRole(role string) NotificationOption {
	return func(s *notificationServiceImpl) {
		s.oversightRole = workflow.NewRole(role).String()
	}
}

// WithDeliveryTimeout bounds each external send
func WithDeliveryTimeout(d time.Duration) NotificationOption {
	return func(s *notificationServiceImpl) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithNotificationMetrics sets the metrics recorder
func WithNotificationMetrics(m port.Metrics) NotificationOption {
	return func(s *notificationServiceImpl) {
		s.metrics = m
	}
}

// WithNotificationClock overrides the time source
func WithNotificationClock(now func() time.Time) NotificationOption {
	return func(s *notificationServiceImpl) {
		s.now = now
	}
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	notificationRepo port.NotificationRepository,
	users port.UserDirectory,
	roles *workflow.RoleMap,
	channel port.DeliveryChannel,
	txManager port.TransactionManager,
	logger Logger,
	opts ...NotificationOption,
) NotificationService {
	if logger == nil {
		logger = nopLogger{}
	}
	s := &notificationServiceImpl{
		notificationRepo: notificationRepo,
		users:            users,
		roles:            roles,
		channel:          channel,
		txManager:        txManager,
		logger:           logger,
		timeout:          10 * time.Second,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register subscribes the service to every workflow event type
func (s *notificationServiceImpl) Register(d dispatcher.Dispatcher) {
	d.SubscribeAll(event.AllTypes(), "notification", s.Handle)
}

// pending is one notification waiting to be persisted
type pending struct {
	userID string
	kind   string
}

// Handle persists the event's notifications and defers their delivery
func (s *notificationServiceImpl) Handle(ctx context.Context, evt *event.Event) error {
	targets, err := s.recipients(ctx, evt)
	if err != nil {
		return err
	}

	var created []*entity.NotificationEvent
	for _, target := range targets {
		subject, body := compose(evt, target.kind)
		appID := evt.ApplicationID
		n := &entity.NotificationEvent{
			UserID:        target.userID,
			ApplicationID: &appID,
			EventType:     target.kind,
			Subject:       subject,
			Message:       body,
			CreatedAt:     s.now(),
		}
		if err := s.notificationRepo.Create(ctx, n); err != nil {
			return fmt.Errorf("create notification for %s: %w", target.userID, err)
		}
		created = append(created, n)
	}

	if len(created) == 0 {
		return nil
	}

	s.txManager.AfterCommit(ctx, func() {
		s.deliver(context.WithoutCancel(ctx), created)
	})
	return nil
}

// recipients resolves who hears about an event. The first entry for a user wins.
func (s *notificationServiceImpl) recipients(ctx context.Context, evt *event.Event) ([]pending, error) {
	var out []pending
	seen := make(map[string]bool)
	add := func(userID, kind string) {
		if userID == "" || seen[userID] {
			return
		}
		seen[userID] = true
		out = append(out, pending{userID: userID, kind: kind})
	}
	addRole := func(role, kind string) error {
		if role == "" {
			return nil
		}
		users, err := s.users.ListUsersWithRole(ctx, role)
		if err != nil {
			return fmt.Errorf("list users with role %s: %w", role, err)
		}
		for _, u := range users {
			add(u.ID, kind)
		}
		return nil
	}
	stageRole := func(stage string) string {
		st := workflow.Stage(stage)
		if st == "" || st.IsDone() {
			return ""
		}
		if r, ok := s.roles.RoleFor(st); ok {
			return r.String()
		}
		return s.roles.Override().String()
	}

	owner := evt.GetPayloadString(event.KeyOwnerUserID)
	toStage := evt.GetPayloadString(event.KeyToStage)

	switch evt.Type {
	case event.TypeSubmitted:
		add(owner, entity.NotificationSubmitted)
		if err := addRole(stageRole(toStage), entity.NotificationAwaitingReview); err != nil {
			return nil, err
		}
	case event.TypeAdvanced:
		add(owner, entity.NotificationAdvanced)
		if err := addRole(stageRole(toStage), entity.NotificationAwaitingReview); err != nil {
			return nil, err
		}
	case event.TypeRejected:
		add(owner, entity.NotificationRejected)
	case event.TypeRevisionRequested:
		add(owner, entity.NotificationRevisionRequested)
	case event.TypeResubmitted:
		add(owner, entity.NotificationResubmitted)
		if err := addRole(stageRole(toStage), entity.NotificationAwaitingReview); err != nil {
			return nil, err
		}
	case event.TypeStalled:
		if err := addRole(stageRole(evt.GetPayloadString(event.KeyStage)), entity.NotificationStalled); err != nil {
			return nil, err
		}
		if err := addRole(s.oversightRole, entity.NotificationStalled); err != nil {
			return nil, err
		}
	default:
		s.logger.Info("Ignoring unknown event type", "event_type", evt.Type, "event_id", evt.ID)
	}

	return out, nil
}

// deliver sends each notification, marking it delivered on success.
// Failures are logged and counted, never returned.
func (s *notificationServiceImpl) deliver(ctx context.Context, notifications []*entity.NotificationEvent) {
	for _, n := range notifications {
		err := s.send(ctx, n)
		if s.metrics != nil {
			s.metrics.NotificationDelivered(ctx, s.channel.Name(), err == nil)
		}
		if err != nil {
			s.logger.Error("Notification delivery failed",
				"notification_id", n.ID,
				"user_id", n.UserID,
				"channel", s.channel.Name(),
				"error", err,
			)
			continue
		}

		at := s.now()
		if err := s.notificationRepo.MarkDelivered(ctx, n.ID, at); err != nil {
			s.logger.Error("Failed to mark notification delivered", "notification_id", n.ID, "error", err)
			continue
		}
		n.Delivered = true
		n.DeliveredAt = &at
	}
}

func (s *notificationServiceImpl) send(ctx context.Context, n *entity.NotificationEvent) error {
	to := entity.Recipient{UserID: n.UserID}
	contact, err := s.users.GetContact(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("%w: resolve contact: %v", workflow.ErrDeliveryFailure, err)
	}
	if contact != nil {
		to = *contact
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.channel.Send(sendCtx, to, n.Subject, n.Message); err != nil {
		return fmt.Errorf("%w: %s: %v", workflow.ErrDeliveryFailure, s.channel.Name(), err)
	}
	return nil
}

// ListForUser returns a user's notifications
func (s *notificationServiceImpl) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*entity.NotificationEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	list, err := s.notificationRepo.ListByUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return list, nil
}

// MarkRead flags a notification as read. Another user's notification is NotFound.
func (s *notificationServiceImpl) MarkRead(ctx context.Context, userID string, id int64) error {
	ok, err := s.notificationRepo.MarkRead(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if !ok {
		return fmt.Errorf("notification %d: %w", id, workflow.ErrNotFound)
	}
	return nil
}

// compose renders the subject and body for one recipient kind
func compose(evt *event.Event, kind string) (string, string) {
	title := evt.GetPayloadString(event.KeyTitle)
	if title == "" {
		title = fmt.Sprintf("application #%d", evt.ApplicationID)
	}
	from := evt.GetPayloadString(event.KeyFromStage)
	to := evt.GetPayloadString(event.KeyToStage)
	stage := evt.GetPayloadString(event.KeyStage)
	comment := evt.GetPayloadString(event.KeyComment)

	var subject, body string
	switch kind {
	case entity.NotificationSubmitted:
		subject = "Application submitted for ethics review"
		body = fmt.Sprintf("%q entered review at the %s stage.", title, to)
	case entity.NotificationAwaitingReview:
		subject = "Application awaiting your review"
		body = fmt.Sprintf("%q is waiting for a decision at the %s stage.", title, to)
	case entity.NotificationAdvanced:
		if workflow.Stage(to).IsDone() {
			subject = "Application approved"
			body = fmt.Sprintf("%q passed its final review at the %s stage and has been approved.", title, from)
		} else {
			subject = "Application advanced"
			body = fmt.Sprintf("%q was approved at the %s stage and moved to %s.", title, from, to)
		}
	case entity.NotificationRejected:
		subject = "Application rejected"
		body = fmt.Sprintf("%q was rejected at the %s stage.", title, from)
	case entity.NotificationRevisionRequested:
		subject = "Revision requested"
		body = fmt.Sprintf("The %s stage asked for changes to %q. Resubmit once it is updated.", from, title)
	case entity.NotificationResubmitted:
		subject = "Application resubmitted"
		body = fmt.Sprintf("%q was resubmitted to the %s stage.", title, to)
	case entity.NotificationStalled:
		subject = "Application stalled"
		body = fmt.Sprintf("%q has been waiting at the %s stage for %.0f hours.",
			title, stage, evt.GetPayloadFloat(event.KeyIdleHours))
	default:
		subject = "Ethics review update"
		body = title
	}

	if comment != "" {
		body += "\n\nComment: " + comment
	}
	return subject, body
}
