package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyalaya-dev/vidyalaya-api/internal/models"
)

type mockPromotionClasses struct {
	classes  []models.Class
	appendTo map[string][]string
	cleared  []string
	failFor  string
}

func intPtr(v int) *int { return &v }

func (m *mockPromotionClasses) ListPromotable(ctx context.Context) ([]models.Class, error) {
	return m.classes, nil
}

func (m *mockPromotionClasses) FindBySectionRank(ctx context.Context, section string, rank int) (*models.Class, error) {
	for i := range m.classes {
		c := m.classes[i]
		if c.Section == section && c.PromotionRank != nil && *c.PromotionRank == rank {
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockPromotionClasses) AppendRoster(ctx context.Context, classID string, studentIDs []string) error {
	if classID == m.failFor {
		return errors.New("append failed")
	}
	if m.appendTo == nil {
		m.appendTo = make(map[string][]string)
	}
	m.appendTo[classID] = append(m.appendTo[classID], studentIDs...)
	return nil
}

func (m *mockPromotionClasses) ClearRoster(ctx context.Context, classID string) error {
	m.cleared = append(m.cleared, classID)
	return nil
}

type mockPromotionStudents struct {
	moves []struct {
		IDs     []string
		ClassID *string
	}
}

func (m *mockPromotionStudents) SetClassBulk(ctx context.Context, ids []string, classID *string) error {
	m.moves = append(m.moves, struct {
		IDs     []string
		ClassID *string
	}{IDs: ids, ClassID: classID})
	return nil
}

func TestPromoteAllMovesRostersUpward(t *testing.T) {
	classes := &mockPromotionClasses{classes: []models.Class{
		// ListPromotable returns rank-descending order.
		{ID: "c6", Name: "6A", Section: "A", PromotionRank: intPtr(6), Roster: []string{"x"}},
		{ID: "c5", Name: "5A", Section: "A", PromotionRank: intPtr(5), Roster: []string{"a", "b"}},
	}}
	students := &mockPromotionStudents{}
	svc := NewPromotionService(classes, students, 12, nil)

	logs, err := svc.PromoteAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"skipped 6A: no class found for section A rank 7",
		"promoted 2 students from 5A to 6A",
	}, logs)
	assert.Equal(t, []string{"a", "b"}, classes.appendTo["c6"])
	assert.Equal(t, []string{"c5"}, classes.cleared)
	require.Len(t, students.moves, 1)
	assert.Equal(t, "c6", *students.moves[0].ClassID)
}

func TestPromoteAllGraduatesTerminalRank(t *testing.T) {
	classes := &mockPromotionClasses{classes: []models.Class{
		{ID: "c12", Name: "12A", Section: "A", PromotionRank: intPtr(12), Roster: []string{"a", "b", "c"}},
	}}
	students := &mockPromotionStudents{}
	svc := NewPromotionService(classes, students, 12, nil)

	logs, err := svc.PromoteAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"graduated 3 students from 12A"}, logs)
	assert.Equal(t, []string{"c12"}, classes.cleared)
	require.Len(t, students.moves, 1)
	assert.Nil(t, students.moves[0].ClassID, "graduates keep no class reference")
}

func TestPromoteAllSkipsEmptyRosters(t *testing.T) {
	classes := &mockPromotionClasses{classes: []models.Class{
		{ID: "c6", Name: "6A", Section: "A", PromotionRank: intPtr(6), Roster: []string{}},
		{ID: "c5", Name: "5A", Section: "A", PromotionRank: intPtr(5), Roster: []string{}},
	}}
	svc := NewPromotionService(classes, &mockPromotionStudents{}, 12, nil)

	logs, err := svc.PromoteAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, logs)
	assert.Empty(t, classes.cleared)
}

func TestPromoteAllRecordsPerClassFailures(t *testing.T) {
	classes := &mockPromotionClasses{
		classes: []models.Class{
			{ID: "c6", Name: "6B", Section: "B", PromotionRank: intPtr(6), Roster: []string{"x"}},
			{ID: "c5", Name: "5B", Section: "B", PromotionRank: intPtr(5), Roster: []string{"a"}},
		},
		failFor: "c6",
	}
	students := &mockPromotionStudents{}
	svc := NewPromotionService(classes, students, 12, nil)

	logs, err := svc.PromoteAll(context.Background())
	require.NoError(t, err, "one failing class must not abort the batch")
	require.Len(t, logs, 2)
	assert.Contains(t, logs[0], "skipped 6B")
	assert.Contains(t, logs[1], "failed to promote 5B")
}
