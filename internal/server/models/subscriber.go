package models

import (
	"time"

	"github.com/google/uuid"
)

// Subscriber status values. A subscriber starts as pending and becomes
// confirmed only after following the emailed confirmation link.
const (
	StatusPendingConfirmation = "pending_confirmation"
	StatusConfirmed           = "confirmed"
)

type Subscriber struct {
	ID           uuid.UUID
	Email        string
	Name         string
	Status       string
	SubscribedAt time.Time
}
