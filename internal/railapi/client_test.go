package railapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"railbooker/internal/errs"
	"railbooker/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, e *echo.Echo) *Client {
	t.Helper()
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}, testLogger())
}

func apiErrorBody(messages ...string) map[string]any {
	return map[string]any{"error": map[string]any{"messages": messages}}
}

func TestClient_LoginSuccess(t *testing.T) {
	e := echo.New()
	e.POST("/auth/sign-in", func(c echo.Context) error {
		var body map[string]string
		require.NoError(t, c.Bind(&body))
		assert.Equal(t, "01700000000", body["mobile_number"])
		assert.Equal(t, "secret", body["password"])
		return c.JSON(http.StatusOK, map[string]any{
			"data": map[string]any{"token": "tok-abc", "expires_in": 1800},
		})
	})

	client := newTestClient(t, e)
	token, err := client.Login(context.Background(), "01700000000", "secret")

	require.NoError(t, err)
	assert.Equal(t, "tok-abc", token.Token)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), token.ExpiresAt, 5*time.Second)
}

func TestClient_LoginRejected(t *testing.T) {
	e := echo.New()
	e.POST("/auth/sign-in", func(c echo.Context) error {
		return c.JSON(http.StatusUnauthorized, apiErrorBody("Invalid mobile number or password"))
	})

	client := newTestClient(t, e)
	_, err := client.Login(context.Background(), "01700000000", "wrong")

	var authErr *errs.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Detail, "Invalid mobile number")
}

func TestClient_SearchTripsParsesTrains(t *testing.T) {
	e := echo.New()
	e.GET("/bookings/search-trips-v2", func(c echo.Context) error {
		assert.Equal(t, "Dhaka", c.QueryParam("from_city"))
		assert.Equal(t, "Rajshahi", c.QueryParam("to_city"))
		assert.Equal(t, "28-Mar-2025", c.QueryParam("date_of_journey"))
		assert.Equal(t, "Bearer tok", c.Request().Header.Get("Authorization"))
		return c.JSON(http.StatusOK, map[string]any{
			"data": map[string]any{
				"trains": []map[string]any{{
					"trip_id":             "T-791",
					"route_id":            "R-14",
					"trip_number":         "BANALATA EXPRESS (791)",
					"departure_date_time": "28-Mar-2025 07:00 am",
					"arrival_date_time":   "28-Mar-2025 11:30 am",
					"seat_types": []map[string]any{
						{"type": "SNIGDHA", "fare": 505, "vat_amount": 75.75},
					},
					"boarding_points": []map[string]any{
						{"trip_point_id": 11, "location_name": "Dhaka", "location_time": "07:00 am", "location_date": "28-Mar-2025"},
					},
				}},
			},
		})
	})

	client := newTestClient(t, e)
	trips, err := client.SearchTrips(context.Background(), "Dhaka", "Rajshahi", "28-Mar-2025", "tok")

	require.NoError(t, err)
	require.Len(t, trips, 1)
	assert.Equal(t, "T-791", trips[0].TripID)
	assert.Equal(t, "BANALATA EXPRESS (791)", trips[0].TrainName)
	assert.True(t, trips[0].HasClass("SNIGDHA"))
	require.Len(t, trips[0].BoardingPoints, 1)
	assert.Equal(t, 11, trips[0].BoardingPoints[0].ID)
}

func TestClient_RateLimited(t *testing.T) {
	e := echo.New()
	e.GET("/bookings/search-trips-v2", func(c echo.Context) error {
		c.Response().Header().Set("Retry-After", "7")
		return c.JSON(http.StatusTooManyRequests, apiErrorBody("Too many requests"))
	})

	client := newTestClient(t, e)
	_, err := client.SearchTrips(context.Background(), "Dhaka", "Rajshahi", "28-Mar-2025", "tok")

	var rateErr *errs.RateLimitedError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 7*time.Second, rateErr.RetryAfter)
}

func TestClient_RateLimitedHTTPDate(t *testing.T) {
	at := time.Now().Add(10 * time.Second)
	e := echo.New()
	e.GET("/bookings/search-trips-v2", func(c echo.Context) error {
		c.Response().Header().Set("Retry-After", at.UTC().Format(http.TimeFormat))
		return c.JSON(http.StatusTooManyRequests, apiErrorBody("Too many requests"))
	})

	client := newTestClient(t, e)
	_, err := client.SearchTrips(context.Background(), "Dhaka", "Rajshahi", "28-Mar-2025", "tok")

	var rateErr *errs.RateLimitedError
	require.ErrorAs(t, err, &rateErr)
	// http.TimeFormat has second granularity, so allow a little slack.
	assert.Greater(t, rateErr.RetryAfter, 7*time.Second)
	assert.LessOrEqual(t, rateErr.RetryAfter, 10*time.Second)
}

func TestClient_RateLimitedStaleHTTPDate(t *testing.T) {
	e := echo.New()
	e.GET("/bookings/search-trips-v2", func(c echo.Context) error {
		c.Response().Header().Set("Retry-After", time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat))
		return c.JSON(http.StatusTooManyRequests, apiErrorBody("Too many requests"))
	})

	client := newTestClient(t, e)
	_, err := client.SearchTrips(context.Background(), "Dhaka", "Rajshahi", "28-Mar-2025", "tok")

	var rateErr *errs.RateLimitedError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, time.Duration(0), rateErr.RetryAfter)
}

func TestClient_LockSeatsConflictStatuses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   map[string]any
	}{
		{name: "conflict status", status: http.StatusConflict, body: apiErrorBody("seat taken")},
		{name: "reserved as validation error", status: http.StatusUnprocessableEntity, body: apiErrorBody("Seat already reserved by another user")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			e.PATCH("/bookings/reserve-seat", func(c echo.Context) error {
				return c.JSON(tc.status, tc.body)
			})

			client := newTestClient(t, e)
			_, err := client.LockSeats(context.Background(), "T-791", []string{"KHA-1"}, "tok")

			var conflict *errs.SeatConflictError
			assert.ErrorAs(t, err, &conflict)
		})
	}
}

func TestClient_LockSeatsReturnsExpiry(t *testing.T) {
	expires := time.Now().Add(5 * time.Minute).UTC().Truncate(time.Second)
	e := echo.New()
	e.PATCH("/bookings/reserve-seat", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"data": map[string]any{
				"lock_id":    "LCK-9",
				"expires_at": expires.Format(time.RFC3339),
			},
		})
	})

	client := newTestClient(t, e)
	lock, err := client.LockSeats(context.Background(), "T-791", []string{"KHA-1", "KHA-2"}, "tok")

	require.NoError(t, err)
	assert.Equal(t, "LCK-9", lock.LockID)
	assert.Equal(t, []string{"KHA-1", "KHA-2"}, lock.SeatIDs)
	assert.True(t, lock.ExpiresAt.Equal(expires))
}

func TestClient_ConfirmBindsPassengerOrder(t *testing.T) {
	var got map[string]any
	e := echo.New()
	e.PATCH("/bookings/confirm", func(c echo.Context) error {
		require.NoError(t, c.Bind(&got))
		return c.JSON(http.StatusOK, map[string]any{
			"data": map[string]any{"confirmation_id": "CNF-77"},
		})
	})

	client := newTestClient(t, e)
	id, err := client.Confirm(context.Background(), models.ConfirmRequest{
		LockID: "LCK-9",
		TripID: "T-791",
		Passengers: []models.Passenger{
			{Name: "ABDUS SALAM", Gender: "male", Type: "Adult"},
			{Name: "RAHIMA BEGUM", Gender: "female", Type: "Adult"},
		},
	}, "tok")

	require.NoError(t, err)
	assert.Equal(t, "CNF-77", id)
	assert.Equal(t, []any{"ABDUS SALAM", "RAHIMA BEGUM"}, got["pname"])
	assert.Equal(t, []any{"male", "female"}, got["gender"])
}

func TestClient_ServerErrorIsNetworkError(t *testing.T) {
	e := echo.New()
	e.GET("/bookings/seat-layout", func(c echo.Context) error {
		return c.JSON(http.StatusInternalServerError, apiErrorBody("boom"))
	})

	client := newTestClient(t, e)
	_, err := client.SeatLayout(context.Background(), "T-791", "SNIGDHA", "tok")

	var netErr *errs.NetworkError
	assert.ErrorAs(t, err, &netErr)
}

func TestClient_TransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(echo.New())
	srv.Close() // connection refused from here on

	client := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: time.Second}, testLogger())
	_, err := client.Login(context.Background(), "m", "p")

	var netErr *errs.NetworkError
	assert.ErrorAs(t, err, &netErr)
}
