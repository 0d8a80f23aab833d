package types

import "time"

// DeliveryTarget is a push-capable device endpoint. Invalid tokens are
// deactivated, never deleted.
type DeliveryTarget struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Token      string    `json:"token"`
	DeviceType string    `json:"device_type"`
	Active     bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type NotificationStatus string

const (
	NotificationDelivered NotificationStatus = "delivered"
	NotificationFailed    NotificationStatus = "failed"
	NotificationNoTargets NotificationStatus = "no_targets"
)

// NotificationLog is the per-user audit row of one push dispatch.
type NotificationLog struct {
	ID             int64              `json:"id"`
	UserID         string             `json:"user_id"`
	Channel        string             `json:"channel"`
	EventType      EventType          `json:"event_type"`
	RequestID      string             `json:"access_request_id,omitempty"`
	Payload        string             `json:"payload"`
	Status         NotificationStatus `json:"status"`
	DeviceCount    int                `json:"device_count"`
	DeliveredCount int                `json:"delivered_count"`
	CreatedAt      time.Time          `json:"created_at"`
	DeliveredAt    *time.Time         `json:"delivered_at,omitempty"`
}
