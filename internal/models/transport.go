package models

import "time"

// TransportSession names the sub-period of a day a transport ledger covers.
type TransportSession string

const (
	SessionMorning TransportSession = "morning"
	SessionEvening TransportSession = "evening"
)

// Valid reports whether the session is a supported value.
func (s TransportSession) Valid() bool {
	return s == SessionMorning || s == SessionEvening
}

// Bus represents a transport vehicle with its assigned crew. The last-known
// position fields are the only live-location state the system keeps.
type Bus struct {
	ID              string     `db:"id" json:"id"`
	Number          string     `db:"number" json:"number"`
	RouteID         *string    `db:"route_id" json:"route_id,omitempty"`
	Capacity        int        `db:"capacity" json:"capacity"`
	DriverUserID    *string    `db:"driver_user_id" json:"driver_user_id,omitempty"`
	AttendantUserID *string    `db:"attendant_user_id" json:"attendant_user_id,omitempty"`
	LastLat         *float64   `db:"last_lat" json:"last_lat,omitempty"`
	LastLng         *float64   `db:"last_lng" json:"last_lng,omitempty"`
	LastSeenAt      *time.Time `db:"last_seen_at" json:"last_seen_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}
