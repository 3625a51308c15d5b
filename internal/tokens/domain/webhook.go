package domain

import "time"

// WebhookEvent is a notification whose in-line delivery attempts ran out.
// The redelivery sweep owns it from then on.
type WebhookEvent struct {
	ID            string
	EventType     string
	TargetURL     string
	Payload       []byte // canonical JSON, signed again on every attempt
	Delivered     bool
	Attempts      int
	LastAttemptAt *time.Time
	CreatedAt     time.Time
}
