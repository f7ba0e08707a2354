// Package queue defines message payloads exchanged over the message broker.
package queue

// EventType names the kind of notification carried by an event.
type EventType string

const (
	EventInvite           EventType = "invite"
	EventPaymentReminder  EventType = "payment_reminder"
	EventPaymentConfirmed EventType = "payment_confirmed"
)

// NotificationQueue is the durable queue the email consumer listens on.
const NotificationQueue = "squares.notifications"

// NotificationEvent is published whenever the engine decides a player
// should hear from us.  It carries the recipient and everything the
// templates need so the consumer never queries the primary database.
type NotificationEvent struct {
	Type           EventType `json:"type"`
	GameID         string    `json:"game_id"`
	GameName       string    `json:"game_name"`
	RecipientID    uint64    `json:"recipient_id,omitempty"`
	RecipientEmail string    `json:"recipient_email"`
	RecipientName  string    `json:"recipient_name,omitempty"`
	ManagerName    string    `json:"manager_name,omitempty"`
	SquareCount    int       `json:"square_count,omitempty"`
	HoursRemaining int       `json:"hours_remaining,omitempty"`
	Link           string    `json:"link"`
	CreatedAt      string    `json:"created_at"`
}
