// Package logchannel delivers notifications by writing them to the log.
// It is the default channel for development and single-node installs.
package logchannel

import (
	"context"

	"go.uber.org/zap"

	"github.com/garyjia/ethics-review/internal/application/port"
	"github.com/garyjia/ethics-review/internal/domain/entity"
)

// Channel writes each notification as a structured log entry
type Channel struct {
	logger *zap.Logger
}

// New creates a log delivery channel
func New(logger *zap.Logger) *Channel {
	return &Channel{logger: logger.Named("delivery")}
}

// Name implements port.DeliveryChannel
func (c *Channel) Name() string {
	return "log"
}

// Send implements port.DeliveryChannel
func (c *Channel) Send(ctx context.Context, to entity.Recipient, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.logger.Info("Notification",
		zap.String("user_id", to.UserID),
		zap.String("email", to.Email),
		zap.String("subject", subject),
		zap.String("body", body))
	return nil
}

var _ port.DeliveryChannel = (*Channel)(nil)
