package notifier

import (
	"time"

	"github.com/google/uuid"
)

// Status is a notification lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"    // Accepted, not yet enqueued.
	StatusQueued     Status = "queued"     // Waiting in the dispatch queue.
	StatusProcessing Status = "processing" // A worker is attempting delivery.
	StatusSent       Status = "sent"       // Delivered. Terminal.
	StatusRetrying   Status = "retrying"   // Failed, another attempt is scheduled.
	StatusFailed     Status = "failed"     // All attempts exhausted.
)

// transitions lists the legal moves of the lifecycle. failed -> retrying is
// the manual-retry escape hatch; sent has no exits.
//
// The queue delivers at-least-once, so a worker can pick up a notification
// that never made it past pending (the job was claimed before the queued
// mark landed) or one still marked processing (the previous worker's lock
// expired mid-attempt). Both must be claimable again, so pending and
// processing are legal sources for processing.
var transitions = map[Status][]Status{
	StatusPending:    {StatusQueued, StatusProcessing},
	StatusQueued:     {StatusProcessing},
	StatusProcessing: {StatusProcessing, StatusSent, StatusRetrying, StatusFailed},
	StatusRetrying:   {StatusProcessing},
	StatusFailed:     {StatusRetrying},
	StatusSent:       {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the lifecycle allows moving from s to target.
func (s Status) CanTransition(target Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// TransitionSources returns the statuses from which target is reachable.
// Storage implementations use it to guard status updates in one statement.
func TransitionSources(target Status) []Status {
	var sources []Status
	for from, targets := range transitions {
		for _, to := range targets {
			if to == target {
				sources = append(sources, from)
			}
		}
	}
	return sources
}

// Notification is one accepted notification request.
type Notification struct {
	ID             uuid.UUID         `json:"id"`
	UserID         uuid.UUID         `json:"user_id"`
	TemplateID     string            `json:"template_id"`
	Channel        string            `json:"channel"`
	Recipient      string            `json:"recipient"`
	Data           map[string]string `json:"data,omitempty"`
	Status         Status            `json:"status"`
	IdempotencyKey string            `json:"idempotency_key"`
	RetryCount     int               `json:"retry_count"`
	ErrorMessage   string            `json:"error_message,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	SentAt         *time.Time        `json:"sent_at,omitempty"`
}

// LogStatus is the outcome of one delivery attempt.
type LogStatus string

const (
	LogStatusSent   LogStatus = "sent"
	LogStatusFailed LogStatus = "failed"
)

// DeliveryLog is one row of the append-only delivery audit trail. Attempt
// numbers for a notification start at 1 and have no gaps.
type DeliveryLog struct {
	ID               uuid.UUID `json:"id"`
	NotificationID   uuid.UUID `json:"notification_id"`
	Attempt          int       `json:"attempt"`
	Status           LogStatus `json:"status"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	ProviderResponse string    `json:"provider_response,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
