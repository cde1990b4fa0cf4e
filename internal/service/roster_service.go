package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vidyalaya-dev/vidyalaya-api/internal/models"
	appErrors "github.com/vidyalaya-dev/vidyalaya-api/pkg/errors"
)

// RosterStudentRepository abstracts student persistence for roster operations.
type RosterStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	FindExistingIDs(ctx context.Context, ids []string) ([]string, error)
	SetClass(ctx context.Context, id string, classID *string) error
}

// RosterClassRepository abstracts class persistence for roster operations.
type RosterClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	PullFromRoster(ctx context.Context, classID, studentID string) error
	PushToRoster(ctx context.Context, classID, studentID string) error
}

// RosterService keeps class rosters and student back-pointers consistent.
// The class roster array is the authoritative side; the student class_id
// column is a derived back-pointer updated last.
type RosterService struct {
	students RosterStudentRepository
	classes  RosterClassRepository
	logger   *zap.Logger
}

// NewRosterService constructs a roster service.
func NewRosterService(students RosterStudentRepository, classes RosterClassRepository, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{students: students, classes: classes, logger: logger}
}

// AssignStudentToClass moves a student into the target class, removing them
// from their current class first. Assigning a student to the class they are
// already in is a no-op.
func (s *RosterService) AssignStudentToClass(ctx context.Context, studentID, classID string) error {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	if student.ClassID != nil && *student.ClassID == class.ID {
		return nil
	}

	if student.ClassID != nil {
		if err := s.classes.PullFromRoster(ctx, *student.ClassID, student.ID); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove student from previous class")
		}
	}

	if err := s.classes.PushToRoster(ctx, class.ID, student.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add student to class roster")
	}

	if err := s.students.SetClass(ctx, student.ID, &class.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student class reference")
	}

	s.logger.Info("student assigned to class",
		zap.String("student_id", student.ID),
		zap.String("class_id", class.ID))
	return nil
}

// RemoveStudentFromClass detaches a student from their current class. Removing
// a student that has no class is a no-op.
func (s *RosterService) RemoveStudentFromClass(ctx context.Context, studentID string) error {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if student.ClassID == nil {
		return nil
	}

	if err := s.classes.PullFromRoster(ctx, *student.ClassID, student.ID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove student from class roster")
	}

	if err := s.students.SetClass(ctx, student.ID, nil); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear student class reference")
	}

	s.logger.Info("student removed from class",
		zap.String("student_id", student.ID),
		zap.String("class_id", *student.ClassID))
	return nil
}

// SetClassRoster replaces the membership of a class with the given student
// set. Every referenced student must exist before any mutation is applied;
// the replacement is then computed as a diff against the current roster so
// students absent from both sets are never touched.
func (s *RosterService) SetClassRoster(ctx context.Context, classID string, studentIDs []string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	desired := make([]string, 0, len(studentIDs))
	seen := make(map[string]struct{}, len(studentIDs))
	for _, id := range studentIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		desired = append(desired, id)
	}

	if len(desired) > 0 {
		existing, err := s.students.FindExistingIDs(ctx, desired)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify roster members")
		}
		if len(existing) != len(desired) {
			known := make(map[string]struct{}, len(existing))
			for _, id := range existing {
				known[id] = struct{}{}
			}
			for _, id := range desired {
				if _, ok := known[id]; !ok {
					return nil, appErrors.Clone(appErrors.ErrInvalidReference, fmt.Sprintf("unknown student id %s", id))
				}
			}
		}
	}

	for _, current := range class.Roster {
		if _, keep := seen[current]; !keep {
			if err := s.RemoveStudentFromClass(ctx, current); err != nil {
				return nil, err
			}
		}
	}

	for _, id := range desired {
		if err := s.AssignStudentToClass(ctx, id, class.ID); err != nil {
			return nil, err
		}
	}

	updated, err := s.classes.FindByID(ctx, class.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload class")
	}

	s.logger.Info("class roster replaced",
		zap.String("class_id", class.ID),
		zap.Int("members", len(updated.Roster)))
	return updated, nil
}
