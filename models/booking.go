package models

import (
	"time"
)

type Passenger struct {
	Name   string `json:"name"`
	Gender string `json:"gender"` // male, female
	Type   string `json:"type"`   // Adult, Child
}

// AuthToken is an opaque credential with its validity window. Owned by the
// auth service; never persisted to disk.
type AuthToken struct {
	Token     string
	ExpiresAt time.Time
}

// ValidFor reports whether the token is still usable margin ahead of now.
func (t AuthToken) ValidFor(margin time.Duration, now time.Time) bool {
	return t.Token != "" && now.Add(margin).Before(t.ExpiresAt)
}

// ConfirmRequest carries everything the confirm call binds together. The
// passenger slice order is the seat binding order.
type ConfirmRequest struct {
	LockID          string      `json:"lock_id"`
	TripID          string      `json:"trip_id"`
	BoardingPointID int         `json:"boarding_point_id"`
	FromCity        string      `json:"from_city"`
	ToCity          string      `json:"to_city"`
	JourneyDate     string      `json:"date_of_journey"`
	SeatClass       string      `json:"seat_class"`
	Passengers      []Passenger `json:"passengers"`
}

// Confirmation is the terminal record of a successful purchase.
type Confirmation struct {
	ConfirmationID string      `json:"confirmation_id"`
	Trip           Trip        `json:"trip"`
	Seats          []Seat      `json:"seats"`
	Passengers     []Passenger `json:"passengers"`
	ConfirmedAt    time.Time   `json:"confirmed_at"`
}
