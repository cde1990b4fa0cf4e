package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vidyalaya-dev/vidyalaya-api/internal/models"
)

// TransportLedgerRepository persists per-(bus, day, session) attendance
// ledgers with the same single-statement atomicity contract as the class
// ledger repository.
type TransportLedgerRepository struct {
	db *sqlx.DB
}

// NewTransportLedgerRepository constructs a TransportLedgerRepository.
func NewTransportLedgerRepository(db *sqlx.DB) *TransportLedgerRepository {
	return &TransportLedgerRepository{db: db}
}

const transportLedgerColumns = "id, bus_id, day, session, records, created_at, updated_at"

// FindByKey loads the ledger for a (bus, day, session) key if one exists.
func (r *TransportLedgerRepository) FindByKey(ctx context.Context, busID string, day time.Time, session models.TransportSession) (*models.TransportAttendanceLedger, error) {
	query := fmt.Sprintf("SELECT %s FROM transport_attendance_ledgers WHERE bus_id = $1 AND day = $2 AND session = $3", transportLedgerColumns)
	var ledger models.TransportAttendanceLedger
	if err := r.db.GetContext(ctx, &ledger, query, busID, day, session); err != nil {
		return nil, err
	}
	return &ledger, nil
}

// ListByBus returns a bus's ledgers, newest day first.
func (r *TransportLedgerRepository) ListByBus(ctx context.Context, busID string, from, to *time.Time) ([]models.TransportAttendanceLedger, error) {
	query := fmt.Sprintf("SELECT %s FROM transport_attendance_ledgers WHERE bus_id = $1", transportLedgerColumns)
	args := []interface{}{busID}
	if from != nil {
		query += fmt.Sprintf(" AND day >= $%d", len(args)+1)
		args = append(args, *from)
	}
	if to != nil {
		query += fmt.Sprintf(" AND day <= $%d", len(args)+1)
		args = append(args, *to)
	}
	query += " ORDER BY day DESC, session"
	var ledgers []models.TransportAttendanceLedger
	if err := r.db.SelectContext(ctx, &ledgers, query, args...); err != nil {
		return nil, fmt.Errorf("list transport ledgers: %w", err)
	}
	return ledgers, nil
}

// UpsertEntry records one student's status for a (bus, day, session) key in a
// single atomic statement, returning the entry's prior status.
func (r *TransportLedgerRepository) UpsertEntry(ctx context.Context, busID string, day time.Time, session models.TransportSession, studentID string, status models.AttendanceStatus) (*models.LedgerUpsert, error) {
	now := time.Now().UTC()
	query := `WITH prior AS (
    SELECT elem->>'status' AS status
    FROM transport_attendance_ledgers tl, jsonb_array_elements(tl.records) elem
    WHERE tl.bus_id = $2 AND tl.day = $3 AND tl.session = $4 AND elem->>'student_id' = $5
)
INSERT INTO transport_attendance_ledgers AS l (id, bus_id, day, session, records, created_at, updated_at)
VALUES ($1, $2, $3, $4, jsonb_build_array(jsonb_build_object('student_id', $5::text, 'status', $6::text)), $7, $7)
ON CONFLICT (bus_id, day, session) DO UPDATE SET
    records = CASE
        WHEN EXISTS (
            SELECT 1 FROM jsonb_array_elements(l.records) e WHERE e->>'student_id' = $5
        ) THEN (
            SELECT jsonb_agg(CASE WHEN e->>'student_id' = $5 THEN jsonb_set(e, '{status}', to_jsonb($6::text)) ELSE e END)
            FROM jsonb_array_elements(l.records) e
        )
        ELSE l.records || jsonb_build_object('student_id', $5::text, 'status', $6::text)
    END,
    updated_at = $7
RETURNING l.id, (SELECT status FROM prior) AS previous_status`
	var row ledgerUpsertRow
	if err := r.db.GetContext(ctx, &row, query, uuid.NewString(), busID, day, session, studentID, status, now); err != nil {
		return nil, fmt.Errorf("upsert transport ledger entry: %w", err)
	}
	result := &models.LedgerUpsert{LedgerID: row.ID, Day: day, Status: status}
	if row.Previous != nil {
		prev := models.AttendanceStatus(*row.Previous)
		result.Previous = &prev
	}
	return result, nil
}
