package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/ethics-review/internal/application/port"
	"github.com/garyjia/ethics-review/internal/domain/entity"
)

// Receive ID types and message types of the IM message API
const (
	receiveIDTypeUserID = "user_id"
	receiveIDTypeEmail  = "email"
	msgTypeText         = "text"
)

// ErrNoAddress is returned when a recipient has neither a Lark user ID nor an email
var ErrNoAddress = errors.New("recipient has no lark address")

// Messenger delivers notifications as Lark IM text messages
type Messenger struct {
	client *Client
	logger *zap.Logger
}

// NewMessenger creates a new Lark delivery channel
func NewMessenger(client *Client, logger *zap.Logger) *Messenger {
	return &Messenger{
		client: client,
		logger: logger,
	}
}

// Name implements port.DeliveryChannel
func (m *Messenger) Name() string {
	return "lark"
}

// Send implements port.DeliveryChannel. Users are addressed by Lark user ID
// when known, by email otherwise.
func (m *Messenger) Send(ctx context.Context, to entity.Recipient, subject, body string) error {
	receiveIDType, receiveID := receiveAddress(to)
	if receiveID == "" {
		return fmt.Errorf("%w: %s", ErrNoAddress, to.UserID)
	}

	content, err := textContent(subject, body)
	if err != nil {
		return err
	}

	messageID, err := m.SendMessage(ctx, receiveIDType, receiveID, msgTypeText, content)
	if err != nil {
		return err
	}

	m.logger.Debug("Notification delivered via Lark",
		zap.String("user_id", to.UserID),
		zap.String("message_id", messageID))
	return nil
}

// SendMessage sends a message to a user or group
func (m *Messenger) SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error) {
	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := m.client.client.Im.Message.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("receive_id", receiveID),
			zap.Error(err))
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", receiveID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return "", fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	return messageID, nil
}

func receiveAddress(to entity.Recipient) (string, string) {
	switch {
	case to.LarkUserID != "":
		return receiveIDTypeUserID, to.LarkUserID
	case to.Email != "":
		return receiveIDTypeEmail, to.Email
	default:
		return "", ""
	}
}

// textContent builds the JSON content of a text message
func textContent(subject, body string) (string, error) {
	text := body
	if subject != "" {
		text = subject + "\n\n" + body
	}
	raw, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("failed to marshal message content: %w", err)
	}
	return string(raw), nil
}

var _ port.DeliveryChannel = (*Messenger)(nil)
