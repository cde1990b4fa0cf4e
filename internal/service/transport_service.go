package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vidyalaya-dev/vidyalaya-api/internal/dto"
	"github.com/vidyalaya-dev/vidyalaya-api/internal/models"
	appErrors "github.com/vidyalaya-dev/vidyalaya-api/pkg/errors"
)

type busRepository interface {
	List(ctx context.Context) ([]models.Bus, error)
	FindByID(ctx context.Context, id string) (*models.Bus, error)
	FindByCrewUserID(ctx context.Context, userID string) (*models.Bus, error)
	Create(ctx context.Context, bus *models.Bus) error
	Update(ctx context.Context, bus *models.Bus) error
	UpdatePosition(ctx context.Context, id string, lat, lng float64, seenAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// TransportService manages the bus fleet and live positions.
type TransportService struct {
	repo      busRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewTransportService constructs the transport service.
func NewTransportService(repo busRepository, validate *validator.Validate, logger *zap.Logger) *TransportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransportService{repo: repo, validator: validate, logger: logger, now: time.Now}
}

// List returns the full fleet.
func (s *TransportService) List(ctx context.Context) ([]models.Bus, error) {
	buses, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list buses")
	}
	return buses, nil
}

// Get returns one bus.
func (s *TransportService) Get(ctx context.Context, id string) (*models.Bus, error) {
	bus, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "bus not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bus")
	}
	return bus, nil
}

// GetForCrew returns the bus assigned to the given crew account.
func (s *TransportService) GetForCrew(ctx context.Context, userID string) (*models.Bus, error) {
	bus, err := s.repo.FindByCrewUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no bus assigned to this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bus")
	}
	return bus, nil
}

// Create registers a bus.
func (s *TransportService) Create(ctx context.Context, req dto.CreateBusRequest) (*models.Bus, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bus payload")
	}
	bus := &models.Bus{
		ID:              uuid.NewString(),
		Number:          req.Number,
		RouteID:         req.RouteID,
		Capacity:        req.Capacity,
		DriverUserID:    req.DriverUserID,
		AttendantUserID: req.AttendantUserID,
	}
	if err := s.repo.Create(ctx, bus); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create bus")
	}
	s.logger.Info("bus created", zap.String("bus_id", bus.ID), zap.String("number", bus.Number))
	return bus, nil
}

// Update edits bus metadata and crew assignments.
func (s *TransportService) Update(ctx context.Context, id string, req dto.UpdateBusRequest) (*models.Bus, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bus payload")
	}
	bus, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Number != nil {
		bus.Number = *req.Number
	}
	if req.RouteID != nil {
		bus.RouteID = req.RouteID
	}
	if req.Capacity != nil {
		bus.Capacity = *req.Capacity
	}
	if req.DriverUserID != nil {
		bus.DriverUserID = req.DriverUserID
	}
	if req.AttendantUserID != nil {
		bus.AttendantUserID = req.AttendantUserID
	}
	if err := s.repo.Update(ctx, bus); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "bus not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update bus")
	}
	return s.Get(ctx, id)
}

// UpdatePosition records a bus's last-known position. Crew members may only
// report for the bus they are assigned to.
func (s *TransportService) UpdatePosition(ctx context.Context, busID string, req dto.UpdatePositionRequest, actor *models.JWTClaims) (*models.Bus, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid position payload")
	}
	bus, err := s.Get(ctx, busID)
	if err != nil {
		return nil, err
	}
	if actor != nil && actor.Role.TransportRole() {
		assigned := (bus.DriverUserID != nil && *bus.DriverUserID == actor.UserID) ||
			(bus.AttendantUserID != nil && *bus.AttendantUserID == actor.UserID)
		if !assigned {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "crew may only report positions for their own bus")
		}
	}
	if err := s.repo.UpdatePosition(ctx, bus.ID, req.Lat, req.Lng, s.now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update position")
	}
	return s.Get(ctx, busID)
}

// Delete removes a bus.
func (s *TransportService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "bus not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete bus")
	}
	s.logger.Info("bus deleted", zap.String("bus_id", id))
	return nil
}
