package store

import "time"

// DeadLetterStatus names the lifecycle of one dead-letter entry.
type DeadLetterStatus string

const (
	StatusPending    DeadLetterStatus = "pending"
	StatusDelivering DeadLetterStatus = "delivering"
	StatusDelivered  DeadLetterStatus = "delivered"
	StatusFailed     DeadLetterStatus = "failed"
)

// DeadLetter is an undeliverable posted event parked for later retry,
// spec SPEC_FULL.md §10's dead-letter office: "persists ... undeliverable
// posted events (idempotency key, payload, attempts, last error,
// status)".
type DeadLetter struct {
	ID              int64
	IdempotencyKey  string
	ActorIndex      uint32
	ActorGeneration uint32
	EventMask       uint32
	PayloadJSON     string
	CreatedAt       time.Time
	ExpiresAt       time.Time
	Attempts        int
	LastError       string
	Status          DeadLetterStatus
}

// DeadLetterStats aggregates dead-letter counts by status.
type DeadLetterStats struct {
	Pending    int64
	Delivering int64
	Delivered  int64
	Failed     int64
}

// AuditRecord is one entry in the actor-registration audit trail.
type AuditRecord struct {
	ID              int64
	AuditID         string
	ActorIndex      uint32
	ActorGeneration uint32
	ReactorID       int
	Event           string
	RecordedAt      time.Time
}
