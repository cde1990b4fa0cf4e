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

// PromotionClassRepository abstracts class persistence for year-end promotion.
type PromotionClassRepository interface {
	ListPromotable(ctx context.Context) ([]models.Class, error)
	FindBySectionRank(ctx context.Context, section string, rank int) (*models.Class, error)
	AppendRoster(ctx context.Context, classID string, studentIDs []string) error
	ClearRoster(ctx context.Context, classID string) error
}

// PromotionStudentRepository abstracts student persistence for promotion.
type PromotionStudentRepository interface {
	SetClassBulk(ctx context.Context, ids []string, classID *string) error
}

// PromotionService migrates whole rosters one rank upward at year end.
type PromotionService struct {
	classes      PromotionClassRepository
	students     PromotionStudentRepository
	terminalRank int
	logger       *zap.Logger
}

// NewPromotionService constructs a promotion service. terminalRank is the
// highest rank in the school; its classes graduate instead of promoting.
func NewPromotionService(classes PromotionClassRepository, students PromotionStudentRepository, terminalRank int, logger *zap.Logger) *PromotionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromotionService{classes: classes, students: students, terminalRank: terminalRank, logger: logger}
}

// PromoteAll runs a single promotion pass over every rankable class, from the
// highest rank down so a freshly landed roster is never promoted twice in the
// same run. A failure for one class is recorded in the returned log and does
// not stop the remaining classes.
func (s *PromotionService) PromoteAll(ctx context.Context) ([]string, error) {
	classes, err := s.classes.ListPromotable(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list promotable classes")
	}

	logs := make([]string, 0, len(classes))
	for _, class := range classes {
		entry, err := s.promoteClass(ctx, class)
		if err != nil {
			s.logger.Error("promotion failed for class",
				zap.String("class_id", class.ID),
				zap.String("class_name", class.Name),
				zap.Error(err))
			logs = append(logs, fmt.Sprintf("failed to promote %s: %v", class.Name, err))
			continue
		}
		if entry != "" {
			logs = append(logs, entry)
		}
	}

	s.logger.Info("promotion pass completed", zap.Int("classes", len(classes)), zap.Int("log_entries", len(logs)))
	return logs, nil
}

func (s *PromotionService) promoteClass(ctx context.Context, class models.Class) (string, error) {
	if class.PromotionRank == nil {
		return "", nil
	}
	rank := *class.PromotionRank

	target, err := s.classes.FindBySectionRank(ctx, class.Section, rank+1)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	if target != nil {
		if len(class.Roster) == 0 {
			return "", nil
		}
		members := append([]string(nil), class.Roster...)
		if err := s.students.SetClassBulk(ctx, members, &target.ID); err != nil {
			return "", err
		}
		if err := s.classes.AppendRoster(ctx, target.ID, members); err != nil {
			return "", err
		}
		if err := s.classes.ClearRoster(ctx, class.ID); err != nil {
			return "", err
		}
		return fmt.Sprintf("promoted %d students from %s to %s", len(members), class.Name, target.Name), nil
	}

	if rank >= s.terminalRank {
		if len(class.Roster) == 0 {
			return "", nil
		}
		members := append([]string(nil), class.Roster...)
		if err := s.students.SetClassBulk(ctx, members, nil); err != nil {
			return "", err
		}
		if err := s.classes.ClearRoster(ctx, class.ID); err != nil {
			return "", err
		}
		return fmt.Sprintf("graduated %d students from %s", len(members), class.Name), nil
	}

	if len(class.Roster) == 0 {
		return "", nil
	}
	return fmt.Sprintf("skipped %s: no class found for section %s rank %d", class.Name, class.Section, rank+1), nil
}
