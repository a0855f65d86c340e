package entity

import "time"

// NotificationEvent is one persisted notification for one recipient
type NotificationEvent struct {
	ID            int64      `json:"id"`
	UserID        string     `json:"user_id"`
	ApplicationID *int64     `json:"application_id,omitempty"`
	EventType     string     `json:"event_type"`
	Subject       string     `json:"subject"`
	Message       string     `json:"message"`
	Delivered     bool       `json:"delivered"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	Read          bool       `json:"read"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Recipient is the addressing information a delivery channel needs
type Recipient struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	LarkUserID string `json:"lark_user_id"`
}
