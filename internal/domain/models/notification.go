package models

import "time"

// Notification delivery status (outbox pattern). Rows are written in the
// same transaction as the lifecycle transition that produced them and
// dispatched asynchronously.
const (
	NotificationPending   = "pending"
	NotificationProcessed = "processed"
	NotificationFailed    = "failed"
)

// NotificationIntent is what the engines emit: who to tell and what to say.
// Delivery (push/email) is a collaborator concern.
type NotificationIntent struct {
	RecipientID string `json:"recipient_id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
}

// Notification is a persisted intent plus dispatch bookkeeping.
type Notification struct {
	ID            string     `json:"id"`
	RecipientID   string     `json:"recipient_id"`
	Title         string     `json:"title"`
	Body          string     `json:"body"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	IsRead        bool       `json:"is_read"`
	CreatedTime   time.Time  `json:"created_time"`
	ProcessedTime *time.Time `json:"processed_time,omitempty"`
}
