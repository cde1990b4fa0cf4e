package dto

import (
	"time"

	"github.com/vidyalaya-dev/vidyalaya-api/internal/models"
)

// RecordInput is one (student, status) pair in a marking payload.
type RecordInput struct {
	StudentID string                  `json:"student_id" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required"`
}

// MarkClassRequest submits a full day's roster statuses for a class.
// Marking is create-once; corrections go through UpdateLedgerRequest.
type MarkClassRequest struct {
	ClassID string        `json:"class_id" validate:"required"`
	Day     string        `json:"day" validate:"required"` // YYYY-MM-DD
	Records []RecordInput `json:"records" validate:"required,dive"`
}

// UpdateLedgerRequest fully replaces a ledger's record list.
type UpdateLedgerRequest struct {
	Records []RecordInput `json:"records" validate:"required,dive"`
}

// ScanRequest carries the raw scanned credential text.
type ScanRequest struct {
	Raw string `json:"raw" validate:"required"`
	// Kind optionally overrides the scanner-role default event kind.
	Kind models.ScanKind `json:"kind,omitempty"`
	// Session selects the transport ledger session; defaults to morning.
	Session models.TransportSession `json:"session,omitempty"`
}

// ScanStudent summarises the resolved student for scanner UI confirmation.
type ScanStudent struct {
	ID         string  `json:"id"`
	FullName   string  `json:"full_name"`
	RollNumber *string `json:"roll_number,omitempty"`
	ClassID    *string `json:"class_id,omitempty"`
	ClassName  *string `json:"class_name,omitempty"`
}

// ScanResponse reports the recorded event and the ledger outcome. LedgerError
// is set when the audit event was stored but the downstream ledger write
// failed; the scan is still considered recorded.
type ScanResponse struct {
	EventID     string               `json:"event_id"`
	Student     ScanStudent          `json:"student"`
	Ledger      *models.LedgerUpsert `json:"ledger,omitempty"`
	LedgerError string               `json:"ledger_error,omitempty"`
}

// LedgerFilter scopes class ledger listings.
type LedgerFilter struct {
	ClassID string
	From    *time.Time
	To      *time.Time
}

// ReportRow is one student's aggregate in a class attendance report.
type ReportRow struct {
	StudentID   string  `json:"student_id"`
	StudentName string  `json:"student_name"`
	RollNumber  string  `json:"roll_number"`
	TotalDays   int     `json:"total_days"`
	PresentDays int     `json:"present_days"`
	Percentage  float64 `json:"percentage"`
}

// ClassReport aggregates attendance percentages over a date range.
type ClassReport struct {
	ClassID   string      `json:"class_id"`
	ClassName string      `json:"class_name"`
	From      time.Time   `json:"from"`
	To        time.Time   `json:"to"`
	Rows      []ReportRow `json:"rows"`
}

// UpdatePositionRequest updates a bus's last-known position.
type UpdatePositionRequest struct {
	Lat float64 `json:"lat" validate:"required"`
	Lng float64 `json:"lng" validate:"required"`
}

// CreateBusRequest defines payload for registering a bus.
type CreateBusRequest struct {
	Number          string  `json:"number" validate:"required"`
	RouteID         *string `json:"route_id,omitempty"`
	Capacity        int     `json:"capacity"`
	DriverUserID    *string `json:"driver_user_id,omitempty"`
	AttendantUserID *string `json:"attendant_user_id,omitempty"`
}

// UpdateBusRequest defines payload for editing a bus.
type UpdateBusRequest struct {
	Number          *string `json:"number,omitempty"`
	RouteID         *string `json:"route_id,omitempty"`
	Capacity        *int    `json:"capacity,omitempty"`
	DriverUserID    *string `json:"driver_user_id,omitempty"`
	AttendantUserID *string `json:"attendant_user_id,omitempty"`
}
