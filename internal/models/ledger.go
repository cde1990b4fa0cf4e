package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AttendanceStatus is the recorded state for a student on a ledger day.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
)

// Valid reports whether the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	return s == StatusPresent || s == StatusAbsent
}

// AttendanceEntry is one (student, status) pair inside a ledger.
type AttendanceEntry struct {
	StudentID string           `json:"student_id"`
	Status    AttendanceStatus `json:"status"`
}

// AttendanceRecords is the jsonb-backed record list of a ledger document.
type AttendanceRecords []AttendanceEntry

// Value implements driver.Valuer for jsonb storage.
func (r AttendanceRecords) Value() (driver.Value, error) {
	if r == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r)
}

// Scan implements sql.Scanner for jsonb retrieval.
func (r *AttendanceRecords) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*r = nil
		return nil
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return fmt.Errorf("unsupported records type %T", src)
	}
}

// StatusOf returns the recorded status for the student, if any.
func (r AttendanceRecords) StatusOf(studentID string) (AttendanceStatus, bool) {
	for _, entry := range r {
		if entry.StudentID == studentID {
			return entry.Status, true
		}
	}
	return "", false
}

// ClassAttendanceLedger holds one calendar day of statuses for a class.
// At most one ledger exists per (class, day).
type ClassAttendanceLedger struct {
	ID        string            `db:"id" json:"id"`
	ClassID   string            `db:"class_id" json:"class_id"`
	Day       time.Time         `db:"day" json:"day"`
	Records   AttendanceRecords `db:"records" json:"records"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt time.Time         `db:"updated_at" json:"updated_at"`
}

// TransportAttendanceLedger holds one session of one calendar day for a bus.
// At most one ledger exists per (bus, day, session).
type TransportAttendanceLedger struct {
	ID        string            `db:"id" json:"id"`
	BusID     string            `db:"bus_id" json:"bus_id"`
	Day       time.Time         `db:"day" json:"day"`
	Session   TransportSession  `db:"session" json:"session"`
	Records   AttendanceRecords `db:"records" json:"records"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt time.Time         `db:"updated_at" json:"updated_at"`
}

// LedgerUpsert reports the outcome of an idempotent single-entry upsert.
type LedgerUpsert struct {
	LedgerID string            `json:"ledger_id"`
	Day      time.Time         `json:"day"`
	Status   AttendanceStatus  `json:"status"`
	Previous *AttendanceStatus `json:"previous_status,omitempty"`
}

// DayKey truncates an instant to UTC midnight. Every ledger lookup and write
// must key on this so two scans on the same calendar day hit the same
// document regardless of the caller's time zone.
func DayKey(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
