package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vidyalaya-dev/vidyalaya-api/internal/models"
)

// ErrDuplicateLedger signals a create-once write against an existing ledger key.
var ErrDuplicateLedger = errors.New("ledger already exists for key")

// ClassLedgerRepository persists per-(class, day) attendance ledgers. The
// store offers no multi-document transactions, so every mutation here is a
// single atomic statement against one row; concurrent scans for the same key
// can never lose an update through read-then-write interleaving.
type ClassLedgerRepository struct {
	db *sqlx.DB
}

// NewClassLedgerRepository constructs a ClassLedgerRepository.
func NewClassLedgerRepository(db *sqlx.DB) *ClassLedgerRepository {
	return &ClassLedgerRepository{db: db}
}

const classLedgerColumns = "id, class_id, day, records, created_at, updated_at"

// FindByID loads one ledger.
func (r *ClassLedgerRepository) FindByID(ctx context.Context, id string) (*models.ClassAttendanceLedger, error) {
	query := fmt.Sprintf("SELECT %s FROM class_attendance_ledgers WHERE id = $1", classLedgerColumns)
	var ledger models.ClassAttendanceLedger
	if err := r.db.GetContext(ctx, &ledger, query, id); err != nil {
		return nil, err
	}
	return &ledger, nil
}

// FindByKey loads the ledger for a (class, day) key if one exists.
func (r *ClassLedgerRepository) FindByKey(ctx context.Context, classID string, day time.Time) (*models.ClassAttendanceLedger, error) {
	query := fmt.Sprintf("SELECT %s FROM class_attendance_ledgers WHERE class_id = $1 AND day = $2", classLedgerColumns)
	var ledger models.ClassAttendanceLedger
	if err := r.db.GetContext(ctx, &ledger, query, classID, day); err != nil {
		return nil, err
	}
	return &ledger, nil
}

// List returns ledgers for a class, newest day first, optionally date-bounded.
func (r *ClassLedgerRepository) List(ctx context.Context, classID string, from, to *time.Time) ([]models.ClassAttendanceLedger, error) {
	conditions := []string{"class_id = $1"}
	args := []interface{}{classID}
	if from != nil {
		conditions = append(conditions, fmt.Sprintf("day >= $%d", len(args)+1))
		args = append(args, *from)
	}
	if to != nil {
		conditions = append(conditions, fmt.Sprintf("day <= $%d", len(args)+1))
		args = append(args, *to)
	}
	query := fmt.Sprintf("SELECT %s FROM class_attendance_ledgers WHERE %s ORDER BY day DESC",
		classLedgerColumns, strings.Join(conditions, " AND "))
	var ledgers []models.ClassAttendanceLedger
	if err := r.db.SelectContext(ctx, &ledgers, query, args...); err != nil {
		return nil, fmt.Errorf("list class ledgers: %w", err)
	}
	return ledgers, nil
}

// Create inserts a full-roster ledger for a key that must not exist yet.
// Returns ErrDuplicateLedger when the (class, day) key is already taken.
func (r *ClassLedgerRepository) Create(ctx context.Context, ledger *models.ClassAttendanceLedger) error {
	now := time.Now().UTC()
	if ledger.ID == "" {
		ledger.ID = uuid.NewString()
	}
	ledger.CreatedAt = now
	ledger.UpdatedAt = now
	query := `INSERT INTO class_attendance_ledgers (id, class_id, day, records, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (class_id, day) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, ledger.ID, ledger.ClassID, ledger.Day, ledger.Records, ledger.CreatedAt, ledger.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create class ledger: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrDuplicateLedger
	}
	return nil
}

// ReplaceRecords swaps the whole record list, the explicit correction path.
func (r *ClassLedgerRepository) ReplaceRecords(ctx context.Context, id string, records models.AttendanceRecords) error {
	query := `UPDATE class_attendance_ledgers SET records = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, records, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("replace class ledger records: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type ledgerUpsertRow struct {
	ID       string  `db:"id"`
	Previous *string `db:"previous_status"`
}

// UpsertEntry records one student's status for a (class, day) key in a single
// atomic statement: the ledger is created if absent, an existing entry for
// the student is overwritten, a missing entry is appended, and the entry's
// prior status is returned from the same statement's snapshot.
func (r *ClassLedgerRepository) UpsertEntry(ctx context.Context, classID string, day time.Time, studentID string, status models.AttendanceStatus) (*models.LedgerUpsert, error) {
	now := time.Now().UTC()
	query := `WITH prior AS (
    SELECT elem->>'status' AS status
    FROM class_attendance_ledgers cl, jsonb_array_elements(cl.records) elem
    WHERE cl.class_id = $2 AND cl.day = $3 AND elem->>'student_id' = $4
)
INSERT INTO class_attendance_ledgers AS l (id, class_id, day, records, created_at, updated_at)
VALUES ($1, $2, $3, jsonb_build_array(jsonb_build_object('student_id', $4::text, 'status', $5::text)), $6, $6)
ON CONFLICT (class_id, day) DO UPDATE SET
    records = CASE
        WHEN EXISTS (
            SELECT 1 FROM jsonb_array_elements(l.records) e WHERE e->>'student_id' = $4
        ) THEN (
            SELECT jsonb_agg(CASE WHEN e->>'student_id' = $4 THEN jsonb_set(e, '{status}', to_jsonb($5::text)) ELSE e END)
            FROM jsonb_array_elements(l.records) e
        )
        ELSE l.records || jsonb_build_object('student_id', $4::text, 'status', $5::text)
    END,
    updated_at = $6
RETURNING l.id, (SELECT status FROM prior) AS previous_status`
	var row ledgerUpsertRow
	if err := r.db.GetContext(ctx, &row, query, uuid.NewString(), classID, day, studentID, status, now); err != nil {
		return nil, fmt.Errorf("upsert class ledger entry: %w", err)
	}
	result := &models.LedgerUpsert{LedgerID: row.ID, Day: day, Status: status}
	if row.Previous != nil {
		prev := models.AttendanceStatus(*row.Previous)
		result.Previous = &prev
	}
	return result, nil
}
