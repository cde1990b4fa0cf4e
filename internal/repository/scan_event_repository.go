package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vidyalaya-dev/vidyalaya-api/internal/models"
)

// ScanEventRepository persists the append-only audit trail of recording
// attempts. There is no update or delete path on purpose.
type ScanEventRepository struct {
	db *sqlx.DB
}

// NewScanEventRepository constructs a ScanEventRepository.
func NewScanEventRepository(db *sqlx.DB) *ScanEventRepository {
	return &ScanEventRepository{db: db}
}

// Append writes one audit event.
func (r *ScanEventRepository) Append(ctx context.Context, event *models.ScanEvent) error {
	now := time.Now().UTC()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now
	}
	event.CreatedAt = now
	query := `INSERT INTO scan_events (id, student_id, class_id, scanner_id, scanner_role, kind, occurred_at, raw_payload, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(ctx, query, event.ID, event.StudentID, event.ClassID, event.ScannerID, event.ScannerRole, event.Kind, event.OccurredAt, event.RawPayload, event.CreatedAt); err != nil {
		return fmt.Errorf("append scan event: %w", err)
	}
	return nil
}

// List returns audit events matching the filter, newest first.
func (r *ScanEventRepository) List(ctx context.Context, filter models.ScanEventFilter) ([]models.ScanEvent, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ScannerID != "" {
		conditions = append(conditions, fmt.Sprintf("scanner_id = $%d", len(args)+1))
		args = append(args, filter.ScannerID)
	}
	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, filter.Kind)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("occurred_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("occurred_at <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	where := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, student_id, class_id, scanner_id, scanner_role, kind, occurred_at, raw_payload, created_at
        FROM scan_events WHERE %s ORDER BY occurred_at DESC LIMIT %d OFFSET %d`, where, size, offset)
	var events []models.ScanEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list scan events: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM scan_events WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count scan events: %w", err)
	}
	return events, total, nil
}
