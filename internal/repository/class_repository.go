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

// ClassRepository manages persistence for classes and their rosters. Every
// roster mutation is a single-row statement so concurrent writers can never
// half-apply an array edit.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

const classColumns = "id, name, grade, section, promotion_rank, homeroom_teacher_id, roster, created_at, updated_at"

// List returns classes matching filter criteria.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	base := "FROM classes WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Grade != "" {
		conditions = append(conditions, fmt.Sprintf("grade = $%d", len(args)+1))
		args = append(args, filter.Grade)
	}
	if filter.Section != "" {
		conditions = append(conditions, fmt.Sprintf("section = $%d", len(args)+1))
		args = append(args, filter.Section)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d)", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	allowedSorts := map[string]bool{
		"name":           true,
		"grade":          true,
		"section":        true,
		"promotion_rank": true,
		"created_at":     true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
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
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", classColumns, base, sortBy, order, size, offset)
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// FindByID loads one class.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	query := fmt.Sprintf("SELECT %s FROM classes WHERE id = $1", classColumns)
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindByName resolves a class by its unique name.
func (r *ClassRepository) FindByName(ctx context.Context, name string) (*models.Class, error) {
	query := fmt.Sprintf("SELECT %s FROM classes WHERE name = $1", classColumns)
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, name); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindBySectionRank resolves the promotion target for a section.
func (r *ClassRepository) FindBySectionRank(ctx context.Context, section string, rank int) (*models.Class, error) {
	query := fmt.Sprintf("SELECT %s FROM classes WHERE section = $1 AND promotion_rank = $2", classColumns)
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, section, rank); err != nil {
		return nil, err
	}
	return &class, nil
}

// ListPromotable returns all classes carrying a promotion rank and section,
// highest rank first. The descending order is what prevents a roster from
// being advanced twice within one promotion pass.
func (r *ClassRepository) ListPromotable(ctx context.Context) ([]models.Class, error) {
	query := fmt.Sprintf(`SELECT %s FROM classes
        WHERE promotion_rank IS NOT NULL AND section <> ''
        ORDER BY promotion_rank DESC`, classColumns)
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query); err != nil {
		return nil, fmt.Errorf("list promotable classes: %w", err)
	}
	return classes, nil
}

// Create inserts a class row with an empty roster.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	now := time.Now().UTC()
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	if class.Roster == nil {
		class.Roster = pq.StringArray{}
	}
	class.CreatedAt = now
	class.UpdatedAt = now
	query := `INSERT INTO classes (id, name, grade, section, promotion_rank, homeroom_teacher_id, roster, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(ctx, query, class.ID, class.Name, class.Grade, class.Section, class.PromotionRank, class.HomeroomTeacherID, class.Roster, class.CreatedAt, class.UpdatedAt); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update edits class metadata; the roster is managed by the dedicated ops below.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	query := `UPDATE classes SET name = $2, grade = $3, section = $4, promotion_rank = $5, homeroom_teacher_id = $6, updated_at = $7 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, class.ID, class.Name, class.Grade, class.Section, class.PromotionRank, class.HomeroomTeacherID, class.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// PullFromRoster removes a student id from the class roster. Idempotent.
func (r *ClassRepository) PullFromRoster(ctx context.Context, classID, studentID string) error {
	query := `UPDATE classes SET roster = array_remove(roster, $2), updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, classID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("pull from roster: %w", err)
	}
	return nil
}

// PushToRoster appends a student id to the class roster unless already present.
func (r *ClassRepository) PushToRoster(ctx context.Context, classID, studentID string) error {
	query := `UPDATE classes SET roster = array_append(roster, $2), updated_at = $3
        WHERE id = $1 AND NOT ($2 = ANY(roster))`
	if _, err := r.db.ExecContext(ctx, query, classID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("push to roster: %w", err)
	}
	return nil
}

// AppendRoster concatenates member ids onto the roster in one statement,
// used by the promotion batch when a whole roster moves up.
func (r *ClassRepository) AppendRoster(ctx context.Context, classID string, studentIDs []string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	query := `UPDATE classes SET roster = roster || $2::text[], updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, classID, pq.Array(studentIDs), time.Now().UTC()); err != nil {
		return fmt.Errorf("append roster: %w", err)
	}
	return nil
}

// ClearRoster empties the class roster.
func (r *ClassRepository) ClearRoster(ctx context.Context, classID string) error {
	query := `UPDATE classes SET roster = '{}', updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, classID, time.Now().UTC()); err != nil {
		return fmt.Errorf("clear roster: %w", err)
	}
	return nil
}

// Delete removes a class row.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM classes WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
