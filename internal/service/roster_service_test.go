package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyalaya-dev/vidyalaya-api/internal/models"
	appErrors "github.com/vidyalaya-dev/vidyalaya-api/pkg/errors"
)

type mockRosterStudents struct {
	students map[string]models.Student
	ops      *[]string
}

func (m *mockRosterStudents) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok {
		return &models.StudentDetail{Student: s}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRosterStudents) FindExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	found := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := m.students[id]; ok {
			found = append(found, id)
		}
	}
	return found, nil
}

func (m *mockRosterStudents) SetClass(ctx context.Context, id string, classID *string) error {
	s, ok := m.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.ClassID = classID
	m.students[id] = s
	label := "nil"
	if classID != nil {
		label = *classID
	}
	*m.ops = append(*m.ops, fmt.Sprintf("set-class %s %s", id, label))
	return nil
}

type mockRosterClasses struct {
	classes map[string]models.Class
	ops     *[]string
}

func (m *mockRosterClasses) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		copy := c
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRosterClasses) PullFromRoster(ctx context.Context, classID, studentID string) error {
	c, ok := m.classes[classID]
	if !ok {
		return sql.ErrNoRows
	}
	next := c.Roster[:0:0]
	for _, id := range c.Roster {
		if id != studentID {
			next = append(next, id)
		}
	}
	c.Roster = next
	m.classes[classID] = c
	*m.ops = append(*m.ops, fmt.Sprintf("pull %s %s", classID, studentID))
	return nil
}

func (m *mockRosterClasses) PushToRoster(ctx context.Context, classID, studentID string) error {
	c, ok := m.classes[classID]
	if !ok {
		return sql.ErrNoRows
	}
	if !c.HasMember(studentID) {
		c.Roster = append(c.Roster, studentID)
	}
	m.classes[classID] = c
	*m.ops = append(*m.ops, fmt.Sprintf("push %s %s", classID, studentID))
	return nil
}

func strPtr(s string) *string { return &s }

func newRosterFixture() (*RosterService, *mockRosterStudents, *mockRosterClasses, *[]string) {
	ops := &[]string{}
	students := &mockRosterStudents{
		students: map[string]models.Student{
			"s1": {ID: "s1", FirstName: "Asha", ClassID: strPtr("c1")},
			"s2": {ID: "s2", FirstName: "Ravi", ClassID: strPtr("c1")},
			"s3": {ID: "s3", FirstName: "Meera"},
		},
		ops: ops,
	}
	classes := &mockRosterClasses{
		classes: map[string]models.Class{
			"c1": {ID: "c1", Name: "5A", Roster: []string{"s1", "s2"}},
			"c2": {ID: "c2", Name: "6A", Roster: []string{}},
		},
		ops: ops,
	}
	return NewRosterService(students, classes, nil), students, classes, ops
}

func TestAssignStudentToClassMovesBetweenClasses(t *testing.T) {
	svc, students, classes, ops := newRosterFixture()

	err := svc.AssignStudentToClass(context.Background(), "s1", "c2")
	require.NoError(t, err)

	assert.Equal(t, []string{"pull c1 s1", "push c2 s1", "set-class s1 c2"}, *ops)
	assert.Equal(t, "c2", *students.students["s1"].ClassID)
	assert.False(t, mustClass(t, classes, "c1").HasMember("s1"))
	assert.True(t, mustClass(t, classes, "c2").HasMember("s1"))
}

func TestAssignStudentToClassSameClassIsNoOp(t *testing.T) {
	svc, _, _, ops := newRosterFixture()

	err := svc.AssignStudentToClass(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.Empty(t, *ops)
}

func TestAssignStudentToClassUnknownStudent(t *testing.T) {
	svc, _, _, _ := newRosterFixture()

	err := svc.AssignStudentToClass(context.Background(), "ghost", "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAssignStudentToClassUnknownClass(t *testing.T) {
	svc, _, _, ops := newRosterFixture()

	err := svc.AssignStudentToClass(context.Background(), "s1", "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, *ops)
}

func TestRemoveStudentFromClass(t *testing.T) {
	svc, students, classes, ops := newRosterFixture()

	err := svc.RemoveStudentFromClass(context.Background(), "s2")
	require.NoError(t, err)
	assert.Equal(t, []string{"pull c1 s2", "set-class s2 nil"}, *ops)
	assert.Nil(t, students.students["s2"].ClassID)
	assert.False(t, mustClass(t, classes, "c1").HasMember("s2"))
}

func TestRemoveStudentFromClassWithoutClassIsNoOp(t *testing.T) {
	svc, _, _, ops := newRosterFixture()

	err := svc.RemoveStudentFromClass(context.Background(), "s3")
	require.NoError(t, err)
	assert.Empty(t, *ops)
}

func TestSetClassRosterRejectsUnknownStudents(t *testing.T) {
	svc, _, _, ops := newRosterFixture()

	_, err := svc.SetClassRoster(context.Background(), "c1", []string{"s1", "ghost"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidReference.Code, appErrors.FromError(err).Code)
	assert.Empty(t, *ops, "no mutation may happen when validation fails")
}

func TestSetClassRosterAppliesDiff(t *testing.T) {
	svc, students, classes, ops := newRosterFixture()

	class, err := svc.SetClassRoster(context.Background(), "c1", []string{"s2", "s3"})
	require.NoError(t, err)

	// s1 leaves, s3 joins, s2 is untouched.
	assert.Equal(t, []string{"pull c1 s1", "set-class s1 nil", "push c1 s3", "set-class s3 c1"}, *ops)
	assert.ElementsMatch(t, []string{"s2", "s3"}, []string(class.Roster))
	assert.Nil(t, students.students["s1"].ClassID)
	assert.Equal(t, "c1", *students.students["s3"].ClassID)
	_ = classes
}

func TestSetClassRosterMoveBetweenClasses(t *testing.T) {
	svc, students, classes, _ := newRosterFixture()

	// Pulling s1 into c2's roster must detach it from c1 first.
	_, err := svc.SetClassRoster(context.Background(), "c2", []string{"s1"})
	require.NoError(t, err)

	assert.False(t, mustClass(t, classes, "c1").HasMember("s1"))
	assert.True(t, mustClass(t, classes, "c2").HasMember("s1"))
	assert.Equal(t, "c2", *students.students["s1"].ClassID)
}

func mustClass(t *testing.T, m *mockRosterClasses, id string) *models.Class {
	t.Helper()
	class, err := m.FindByID(context.Background(), id)
	require.NoError(t, err)
	return class
}
