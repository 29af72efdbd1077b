package services

import (
	"context"

	"railbooker/models"
)

// Gateway is the contract the engine holds against the remote e-ticket
// service. The HTTP implementation lives in internal/railapi; tests swap in
// fakes.
type Gateway interface {
	Login(ctx context.Context, mobile, password string) (models.AuthToken, error)
	SearchTrips(ctx context.Context, from, to, date, token string) ([]models.Trip, error)
	SeatLayout(ctx context.Context, tripID, class, token string) (models.SeatLayout, error)
	LockSeats(ctx context.Context, tripID string, seatIDs []string, token string) (models.SeatLock, error)
	Confirm(ctx context.Context, req models.ConfirmRequest, token string) (string, error)
}
