package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Seat struct {
	ID        string          `json:"seat_id"` // block-prefixed, e.g. "KHA-12"
	Class     string          `json:"class"`
	Available bool            `json:"available"`
	Price     decimal.Decimal `json:"price"`
}

// Block returns the row/block label derived from the seat id prefix,
// everything up to the last separator ("KHA-12" -> "KHA").
func (s Seat) Block() string {
	if i := strings.LastIndexAny(s.ID, "-/"); i > 0 {
		return s.ID[:i]
	}
	return s.ID
}

// Number returns the numeric suffix of the seat id, or -1 when the id
// carries no number. Used to test run contiguity within a block.
func (s Seat) Number() int {
	i := len(s.ID)
	for i > 0 && s.ID[i-1] >= '0' && s.ID[i-1] <= '9' {
		i--
	}
	if i == len(s.ID) {
		return -1
	}
	n := 0
	for _, c := range s.ID[i:] {
		n = n*10 + int(c-'0')
	}
	return n
}

// SeatLayout is the availability snapshot for one (trip, class) pair.
// Availability reflects the remote state at fetch time only; seats may be
// taken by other clients before a lock lands.
type SeatLayout struct {
	TripID    string    `json:"trip_id"`
	Class     string    `json:"class"`
	Seats     []Seat    `json:"seats"`
	FetchedAt time.Time `json:"fetched_at"`
}

// AvailableInClass returns the seats of the given class still marked
// available in this snapshot.
func (l SeatLayout) AvailableInClass(class string) []Seat {
	var out []Seat
	for _, s := range l.Seats {
		if s.Available && s.Class == class {
			out = append(out, s)
		}
	}
	return out
}

// SeatLock is a time-limited hold placed by the remote service. ExpiresAt
// comes from the lock response when the service reports one, otherwise from
// the configured fallback TTL.
type SeatLock struct {
	LockID    string    `json:"lock_id"`
	SeatIDs   []string  `json:"seat_ids"`
	ExpiresAt time.Time `json:"expires_at"`
}
