package models

import "time"

// ScanKind labels what a recording attempt was for.
type ScanKind string

const (
	ScanKindDaily   ScanKind = "daily"
	ScanKindPickup  ScanKind = "pickup"
	ScanKindDropoff ScanKind = "dropoff"
)

// ScanEvent is the append-only audit record of a recording attempt. One event
// is written per attempt, before any ledger write, and is never updated.
type ScanEvent struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	ClassID     *string   `db:"class_id" json:"class_id,omitempty"`
	ScannerID   string    `db:"scanner_id" json:"scanner_id"`
	ScannerRole UserRole  `db:"scanner_role" json:"scanner_role"`
	Kind        ScanKind  `db:"kind" json:"kind"`
	OccurredAt  time.Time `db:"occurred_at" json:"occurred_at"`
	RawPayload  []byte    `db:"raw_payload" json:"raw_payload,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ScanEventFilter scopes audit trail listings.
type ScanEventFilter struct {
	StudentID string
	ScannerID string
	Kind      ScanKind
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}
