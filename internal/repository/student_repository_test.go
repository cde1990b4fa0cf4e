package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyalaya-dev/vidyalaya-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func studentRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "first_name", "last_name", "roll_number", "user_id", "class_id", "scan_token", "scan_token_issued_at", "scan_token_expires_at", "created_at", "updated_at", "class_name"}).
		AddRow("s1", "Asha", "Rao", "17", nil, "c1", nil, nil, nil, now, now, "5A")
}

func TestStudentRepositoryListFiltersByClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT s.id, .* FROM students s LEFT JOIN classes c ON c.id = s.class_id WHERE 1=1 AND s.class_id = \\$1 ORDER BY s.created_at DESC LIMIT 50 OFFSET 0").
		WithArgs("c1").
		WillReturnRows(studentRows())
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM students s").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{ClassID: "c1"})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "5A", *students[0].ClassName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT s.id, .* WHERE s.id = \\$1").
		WithArgs("s1").
		WillReturnRows(studentRows())

	student, err := repo.FindByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "Asha", student.FirstName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositorySetClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("UPDATE students SET class_id = \\$2, updated_at = \\$3 WHERE id = \\$1").
		WithArgs("s1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	classID := "c2"
	require.NoError(t, repo.SetClass(context.Background(), "s1", &classID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositorySetClassMissingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("UPDATE students SET class_id").
		WithArgs("ghost", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetClass(context.Background(), "ghost", nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestStudentRepositoryUpdateScanToken(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("UPDATE students SET scan_token = \\$2, scan_token_issued_at = \\$3, scan_token_expires_at = \\$4").
		WithArgs("s1", "token", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	issued := time.Now()
	require.NoError(t, repo.UpdateScanToken(context.Background(), "s1", "token", issued, issued.Add(time.Hour)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindExistingIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT id FROM students WHERE id = ANY\\(\\$1\\)").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s1"))

	found, err := repo.FindExistingIDs(context.Background(), []string{"s1", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, found)
}
