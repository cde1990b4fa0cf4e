package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vidyalaya-dev/vidyalaya-api/internal/models"
)

// BusRepository manages persistence for transport vehicles.
type BusRepository struct {
	db *sqlx.DB
}

// NewBusRepository constructs a BusRepository.
func NewBusRepository(db *sqlx.DB) *BusRepository {
	return &BusRepository{db: db}
}

const busColumns = `id, number, route_id, capacity, driver_user_id, attendant_user_id,
        last_lat, last_lng, last_seen_at, created_at, updated_at`

// List returns all buses ordered by number.
func (r *BusRepository) List(ctx context.Context) ([]models.Bus, error) {
	query := fmt.Sprintf("SELECT %s FROM buses ORDER BY number", busColumns)
	var buses []models.Bus
	if err := r.db.SelectContext(ctx, &buses, query); err != nil {
		return nil, fmt.Errorf("list buses: %w", err)
	}
	return buses, nil
}

// FindByID loads one bus.
func (r *BusRepository) FindByID(ctx context.Context, id string) (*models.Bus, error) {
	query := fmt.Sprintf("SELECT %s FROM buses WHERE id = $1", busColumns)
	var bus models.Bus
	if err := r.db.GetContext(ctx, &bus, query, id); err != nil {
		return nil, err
	}
	return &bus, nil
}

// FindByCrewUserID resolves the bus a driver or attendant works on. This is
// how a transport-role scan is routed to its ledger.
func (r *BusRepository) FindByCrewUserID(ctx context.Context, userID string) (*models.Bus, error) {
	query := fmt.Sprintf("SELECT %s FROM buses WHERE driver_user_id = $1 OR attendant_user_id = $1", busColumns)
	var bus models.Bus
	if err := r.db.GetContext(ctx, &bus, query, userID); err != nil {
		return nil, err
	}
	return &bus, nil
}

// Create inserts a bus row.
func (r *BusRepository) Create(ctx context.Context, bus *models.Bus) error {
	now := time.Now().UTC()
	if bus.ID == "" {
		bus.ID = uuid.NewString()
	}
	if bus.Capacity <= 0 {
		bus.Capacity = 20
	}
	bus.CreatedAt = now
	bus.UpdatedAt = now
	query := `INSERT INTO buses (id, number, route_id, capacity, driver_user_id, attendant_user_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query, bus.ID, bus.Number, bus.RouteID, bus.Capacity, bus.DriverUserID, bus.AttendantUserID, bus.CreatedAt, bus.UpdatedAt); err != nil {
		return fmt.Errorf("create bus: %w", err)
	}
	return nil
}

// Update edits bus assignment fields.
func (r *BusRepository) Update(ctx context.Context, bus *models.Bus) error {
	bus.UpdatedAt = time.Now().UTC()
	query := `UPDATE buses SET number = $2, route_id = $3, capacity = $4, driver_user_id = $5, attendant_user_id = $6, updated_at = $7 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, bus.ID, bus.Number, bus.RouteID, bus.Capacity, bus.DriverUserID, bus.AttendantUserID, bus.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update bus: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdatePosition stores the bus's last-known position.
func (r *BusRepository) UpdatePosition(ctx context.Context, id string, lat, lng float64, seenAt time.Time) error {
	query := `UPDATE buses SET last_lat = $2, last_lng = $3, last_seen_at = $4, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, lat, lng, seenAt)
	if err != nil {
		return fmt.Errorf("update bus position: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a bus row.
func (r *BusRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM buses WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete bus: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
