package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vidyalaya-dev/vidyalaya-api/internal/models"
)

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `s.id, s.first_name, s.last_name, s.roll_number, s.user_id, s.class_id,
        s.scan_token, s.scan_token_issued_at, s.scan_token_expires_at, s.created_at, s.updated_at`

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := "FROM students s LEFT JOIN classes c ON c.id = s.class_id"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("s.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.first_name) LIKE $%d OR LOWER(s.last_name) LIKE $%d OR LOWER(COALESCE(s.roll_number, '')) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"first_name":  "s.first_name",
		"last_name":   "s.last_name",
		"roll_number": "s.roll_number",
		"created_at":  "s.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "s.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s, c.name AS class_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, studentColumns, base, column, order, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID loads a student with its resolved class name.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s, c.name AS class_name
        FROM students s LEFT JOIN classes c ON c.id = s.class_id WHERE s.id = $1`, studentColumns)
	var student models.StudentDetail
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByUserID resolves the student linked to an auth user.
func (r *StudentRepository) FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s, c.name AS class_name
        FROM students s LEFT JOIN classes c ON c.id = s.class_id WHERE s.user_id = $1`, studentColumns)
	var student models.StudentDetail
	if err := r.db.GetContext(ctx, &student, query, userID); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindExistingIDs returns which of the supplied ids resolve to students.
func (r *StudentRepository) FindExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []string
	query := "SELECT id FROM students WHERE id = ANY($1)"
	if err := r.db.SelectContext(ctx, &found, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("resolve student ids: %w", err)
	}
	return found, nil
}

// ListAll returns every student, for bulk credential issuance.
func (r *StudentRepository) ListAll(ctx context.Context) ([]models.StudentDetail, error) {
	query := fmt.Sprintf(`SELECT %s, c.name AS class_name
        FROM students s LEFT JOIN classes c ON c.id = s.class_id ORDER BY s.created_at`, studentColumns)
	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list all students: %w", err)
	}
	return students, nil
}

// Create inserts a student row.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	now := time.Now().UTC()
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	student.CreatedAt = now
	student.UpdatedAt = now
	query := `INSERT INTO students (id, first_name, last_name, roll_number, user_id, class_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query, student.ID, student.FirstName, student.LastName, student.RollNumber, student.UserID, student.ClassID, student.CreatedAt, student.UpdatedAt); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update edits student identity fields; class membership is not touched here.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	query := `UPDATE students SET first_name = $2, last_name = $3, roll_number = $4, user_id = $5, updated_at = $6 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, student.ID, student.FirstName, student.LastName, student.RollNumber, student.UserID, student.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetClass points the student's class back-reference at the given class,
// or clears it when classID is nil. Single-row write; the roster side is
// maintained separately by the caller.
func (r *StudentRepository) SetClass(ctx context.Context, id string, classID *string) error {
	query := `UPDATE students SET class_id = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, classID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set student class: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetClassBulk points many students at the given class in one statement.
func (r *StudentRepository) SetClassBulk(ctx context.Context, ids []string, classID *string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE students SET class_id = $2, updated_at = $3 WHERE id = ANY($1)`
	if _, err := r.db.ExecContext(ctx, query, pq.Array(ids), classID, time.Now().UTC()); err != nil {
		return fmt.Errorf("bulk set student class: %w", err)
	}
	return nil
}

// UpdateScanToken replaces the student's scan credential. Any previous token
// becomes invalid because validation compares against this single stored value.
func (r *StudentRepository) UpdateScanToken(ctx context.Context, id, token string, issuedAt, expiresAt time.Time) error {
	query := `UPDATE students SET scan_token = $2, scan_token_issued_at = $3, scan_token_expires_at = $4, updated_at = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, token, issuedAt, expiresAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update scan token: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a student row.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM students WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
