// Package railapi implements the typed gateway to the railway e-ticket
// service. Wire formats live here; callers only see domain models and the
// error taxonomy.
package railapi

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"railbooker/internal/errs"
	"railbooker/models"
)

type loginResponse struct {
	Data struct {
		Token     string `json:"token"`
		ExpiresIn int64  `json:"expires_in"` // seconds; 0 when the service omits it
	} `json:"data"`
}

// Login exchanges credentials for a bearer token. A rejected credential pair
// surfaces as AuthenticationError; expiry is zero when the service does not
// report one (the auth service then derives it from the token itself).
func (c *Client) Login(ctx context.Context, mobile, password string) (models.AuthToken, error) {
	body := map[string]string{
		"mobile_number": mobile,
		"password":      password,
	}

	var resp loginResponse
	if err := c.do(ctx, "login", http.MethodPost, "auth/sign-in", nil, body, &resp); err != nil {
		return models.AuthToken{}, err
	}
	if resp.Data.Token == "" {
		return models.AuthToken{}, &errs.AuthenticationError{Detail: "login response carried no token"}
	}

	token := models.AuthToken{Token: resp.Data.Token}
	if resp.Data.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(resp.Data.ExpiresIn) * time.Second)
	}
	return token, nil
}

type searchResponse struct {
	Data struct {
		Trains []struct {
			TripID            string                 `json:"trip_id"`
			RouteID           string                 `json:"route_id"`
			TripNumber        string                 `json:"trip_number"`
			DepartureDateTime string                 `json:"departure_date_time"`
			ArrivalDateTime   string                 `json:"arrival_date_time"`
			SeatTypes         []models.SeatClassInfo `json:"seat_types"`
			BoardingPoints    []models.BoardingPoint `json:"boarding_points"`
		} `json:"trains"`
	} `json:"data"`
}

// SearchTrips lists trains between two cities on a date. The result is a
// snapshot; seat counts inside it may already be stale.
func (c *Client) SearchTrips(ctx context.Context, from, to, date, token string) ([]models.Trip, error) {
	params := url.Values{}
	params.Set("from_city", from)
	params.Set("to_city", to)
	params.Set("date_of_journey", date)

	var resp searchResponse
	if err := c.do(withToken(ctx, token), "search_trips", http.MethodGet, "bookings/search-trips-v2", params, nil, &resp); err != nil {
		return nil, err
	}

	trips := make([]models.Trip, 0, len(resp.Data.Trains))
	for _, tr := range resp.Data.Trains {
		trips = append(trips, models.Trip{
			TripID:         tr.TripID,
			RouteID:        tr.RouteID,
			TrainName:      tr.TripNumber,
			FromCity:       from,
			ToCity:         to,
			DepartureTime:  tr.DepartureDateTime,
			ArrivalTime:    tr.ArrivalDateTime,
			SeatClasses:    tr.SeatTypes,
			BoardingPoints: tr.BoardingPoints,
		})
	}
	return trips, nil
}

type layoutResponse struct {
	Data struct {
		Seats []struct {
			SeatNumber   string          `json:"seat_number"`
			Class        string          `json:"class"`
			Availability int             `json:"seat_availability"` // 1 = available
			Fare         decimal.Decimal `json:"fare"`
		} `json:"seats"`
	} `json:"data"`
}

// SeatLayout fetches the availability snapshot for one (trip, class) pair.
func (c *Client) SeatLayout(ctx context.Context, tripID, class, token string) (models.SeatLayout, error) {
	params := url.Values{}
	params.Set("trip_id", tripID)
	params.Set("seat_class", class)

	var resp layoutResponse
	if err := c.do(withToken(ctx, token), "seat_layout", http.MethodGet, "bookings/seat-layout", params, nil, &resp); err != nil {
		return models.SeatLayout{}, err
	}

	layout := models.SeatLayout{
		TripID:    tripID,
		Class:     class,
		FetchedAt: time.Now(),
	}
	for _, s := range resp.Data.Seats {
		layout.Seats = append(layout.Seats, models.Seat{
			ID:        s.SeatNumber,
			Class:     s.Class,
			Available: s.Availability == 1,
			Price:     s.Fare,
		})
	}
	return layout, nil
}

type lockResponse struct {
	Data struct {
		LockID    string `json:"lock_id"`
		ExpiresAt string `json:"expires_at"` // RFC 3339; may be empty
	} `json:"data"`
}

// LockSeats places a time-limited hold on the given seats. Raced seats come
// back as SeatConflictError; ExpiresAt is zero when the service does not
// report a lock deadline.
func (c *Client) LockSeats(ctx context.Context, tripID string, seatIDs []string, token string) (models.SeatLock, error) {
	body := map[string]any{
		"trip_id":  tripID,
		"seat_ids": seatIDs,
	}

	var resp lockResponse
	if err := c.do(withToken(ctx, token), "lock_seats", http.MethodPatch, "bookings/reserve-seat", nil, body, &resp); err != nil {
		return models.SeatLock{}, err
	}

	lock := models.SeatLock{LockID: resp.Data.LockID, SeatIDs: seatIDs}
	if resp.Data.ExpiresAt != "" {
		if t, err := time.Parse(time.RFC3339, resp.Data.ExpiresAt); err == nil {
			lock.ExpiresAt = t
		}
	}
	return lock, nil
}

type confirmResponse struct {
	Data struct {
		ConfirmationID string `json:"confirmation_id"`
	} `json:"data"`
}

// Confirm finalizes the purchase for a held lock. Passenger order matters:
// the service binds passenger i to the i-th locked seat.
func (c *Client) Confirm(ctx context.Context, req models.ConfirmRequest, token string) (string, error) {
	names := make([]string, len(req.Passengers))
	genders := make([]string, len(req.Passengers))
	types := make([]string, len(req.Passengers))
	for i, p := range req.Passengers {
		names[i] = p.Name
		genders[i] = p.Gender
		types[i] = p.Type
	}

	body := map[string]any{
		"lock_id":           req.LockID,
		"trip_id":           req.TripID,
		"boarding_point_id": req.BoardingPointID,
		"from_city":         req.FromCity,
		"to_city":           req.ToCity,
		"date_of_journey":   req.JourneyDate,
		"seat_class":        req.SeatClass,
		"pname":             names,
		"gender":            genders,
		"passengerType":     types,
	}

	var resp confirmResponse
	if err := c.do(withToken(ctx, token), "confirm", http.MethodPatch, "bookings/confirm", nil, body, &resp); err != nil {
		return "", err
	}
	if resp.Data.ConfirmationID == "" {
		return "", &errs.ConfirmationError{LockID: req.LockID, Detail: "confirm response carried no confirmation id"}
	}
	return resp.Data.ConfirmationID, nil
}
