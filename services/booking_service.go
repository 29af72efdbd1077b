package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"railbooker/config"
	"railbooker/internal/errs"
	"railbooker/models"
	"railbooker/monitoring"
	"railbooker/utils"
)

type Stage string

const (
	StageInit            Stage = "INIT"
	StageAuthenticated   Stage = "AUTHENTICATED"
	StageTripsDiscovered Stage = "TRIPS_DISCOVERED"
	StageSeatsDiscovered Stage = "SEATS_DISCOVERED"
	StageSeatsSelected   Stage = "SEATS_SELECTED"
	StageSeatsLocked     Stage = "SEATS_LOCKED"
	StageConfirmed       Stage = "CONFIRMED"
	StageFailed          Stage = "FAILED"
)

// Attempt is the runtime record of one pass through the state machine.
// Created at Run start, mutated per stage, terminal at CONFIRMED or FAILED.
type Attempt struct {
	Stage       Stage
	FailedStage Stage
	Retries     map[Stage]int
	LastErr     error
	StartedAt   time.Time
}

// RunOptions are the per-run overrides from the command surface. Empty
// strings fall back to the configuration; TripIndex must be at least 1.
type RunOptions struct {
	TripIndex   int  // 1-based trip pick from the search result
	Refresh     bool // bypass all cache reads for this run
	FromCity    string
	ToCity      string
	JourneyDate string
}

type Result struct {
	Attempt      *Attempt
	Confirmation *models.Confirmation
}

// BookingService drives one booking attempt through authenticate → discover
// trips → discover seats → select → lock → confirm. Stages run sequentially;
// each consults the shared retry policy on transient failure.
type BookingService struct {
	cfg    *config.Config
	gw     Gateway
	auth   *AuthService
	cache  *CacheService
	seats  *SeatService
	policy utils.RetryPolicy
	sleep  func(time.Duration)
	now    func() time.Time
	log    *slog.Logger
}

func NewBookingService(cfg *config.Config, gw Gateway, auth *AuthService, cache *CacheService, seats *SeatService, log *slog.Logger) *BookingService {
	return &BookingService{
		cfg:   cfg,
		gw:    gw,
		auth:  auth,
		cache: cache,
		seats: seats,
		policy: utils.RetryPolicy{
			BaseDelay:       cfg.RetryBaseDelay,
			MaxDelay:        cfg.RetryMaxDelay,
			MaxAttempts:     cfg.RetryMaxAttempt,
			RateLimitFactor: 4,
		},
		sleep: time.Sleep,
		now:   time.Now,
		log:   log,
	}
}

// Run executes one complete booking attempt. The returned Result always
// carries the Attempt so callers can report the failing stage and retry
// counts; Confirmation is set only when the terminal state is CONFIRMED.
func (b *BookingService) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	attempt := &Attempt{
		Stage:     StageInit,
		Retries:   make(map[Stage]int),
		StartedAt: b.now(),
	}
	res := &Result{Attempt: attempt}

	from := coalesce(opts.FromCity, b.cfg.FromCity)
	to := coalesce(opts.ToCity, b.cfg.ToCity)
	class := b.cfg.SeatClass
	count := len(b.cfg.PassengerNames)
	tripIndex := opts.TripIndex
	if tripIndex < 1 {
		return res, b.fail(attempt, StageInit, &errs.ConfigurationError{
			Reason: fmt.Sprintf("trip index must be at least 1, got %d", tripIndex),
		})
	}

	date, err := utils.NormalizeJourneyDate(coalesce(opts.JourneyDate, b.cfg.JourneyDate), b.now())
	if err != nil {
		return res, b.fail(attempt, StageInit, &errs.ConfigurationError{Reason: err.Error()})
	}

	b.log.Info("booking attempt started",
		"from", from, "to", to, "date", date, "class", class,
		"passengers", count, "trip_index", tripIndex, "refresh", opts.Refresh)

	// INIT -> AUTHENTICATED
	if err := b.runStage(ctx, attempt, StageAuthenticated, func(ctx context.Context) error {
		_, err := b.auth.Token(ctx, false)
		return err
	}); err != nil {
		return res, b.fail(attempt, StageAuthenticated, err)
	}

	// -> TRIPS_DISCOVERED
	var trip models.Trip
	if err := b.runStage(ctx, attempt, StageTripsDiscovered, func(ctx context.Context) error {
		trips, err := b.fetchTrips(ctx, from, to, date, opts.Refresh)
		if err != nil {
			return err
		}
		if tripIndex > len(trips) {
			return &errs.TripNotFoundError{Index: tripIndex, Found: len(trips)}
		}
		trip = trips[tripIndex-1]
		return nil
	}); err != nil {
		return res, b.fail(attempt, StageTripsDiscovered, err)
	}
	b.log.Info("trip selected", "train", trip.TrainName, "trip_id", trip.TripID, "departure", trip.DepartureTime)

	// -> SEATS_DISCOVERED
	var layout models.SeatLayout
	if err := b.runStage(ctx, attempt, StageSeatsDiscovered, func(ctx context.Context) error {
		if !trip.HasClass(class) {
			return &errs.InsufficientSeatsError{Class: class, Want: count, Have: 0}
		}
		l, err := b.fetchLayout(ctx, trip.TripID, class, opts.Refresh)
		if err != nil {
			return err
		}
		layout = l
		return nil
	}); err != nil {
		return res, b.fail(attempt, StageSeatsDiscovered, err)
	}

	// -> SEATS_SELECTED
	var selection []models.Seat
	if err := b.runStage(ctx, attempt, StageSeatsSelected, func(context.Context) error {
		s, err := b.seats.SelectSeats(layout, class, count)
		if err != nil {
			return err
		}
		selection = s
		return nil
	}); err != nil {
		return res, b.fail(attempt, StageSeatsSelected, err)
	}
	b.log.Info("seats selected", "seats", seatIDs(selection))

	// -> SEATS_LOCKED. Lock conflicts mean the layout snapshot went stale
	// under us: refetch bypassing the cache, reselect, and try again within
	// the bounded conflict budget.
	var lock models.SeatLock
	for conflicts := 0; ; {
		err := b.runStage(ctx, attempt, StageSeatsLocked, func(ctx context.Context) error {
			token, err := b.auth.Token(ctx, false)
			if err != nil {
				return err
			}
			l, err := b.gw.LockSeats(ctx, trip.TripID, seatIDs(selection), token.Token)
			if err != nil {
				return err
			}
			lock = l
			return nil
		})
		if err == nil {
			break
		}

		var conflict *errs.SeatConflictError
		if !errors.As(err, &conflict) {
			return res, b.fail(attempt, StageSeatsLocked, err)
		}
		conflicts++
		attempt.Retries[StageSeatsLocked]++
		if conflicts >= b.cfg.LockMaxAttempt {
			return res, b.fail(attempt, StageSeatsLocked, err)
		}

		b.log.Warn("seat conflict, refetching layout", "conflicts", conflicts, "error", err)
		if err := b.withRetry(ctx, attempt, StageSeatsLocked, func(ctx context.Context) error {
			l, err := b.fetchLayout(ctx, trip.TripID, class, true)
			if err != nil {
				return err
			}
			layout = l
			return nil
		}); err != nil {
			return res, b.fail(attempt, StageSeatsLocked, err)
		}
		s, err := b.seats.SelectSeats(layout, class, count)
		if err != nil {
			return res, b.fail(attempt, StageSeatsLocked, err)
		}
		selection = s
		b.log.Info("reselected seats after conflict", "seats", seatIDs(selection))
	}
	if lock.ExpiresAt.IsZero() {
		lock.ExpiresAt = b.now().Add(b.cfg.LockTTL)
	}
	b.log.Info("seats locked", "lock_id", lock.LockID, "expires_at", lock.ExpiresAt)

	// -> CONFIRMED. Never retried past this point: a half-confirmed purchase
	// silently retried could double-book.
	confirmation, err := b.confirm(ctx, trip, selection, lock, from, to, date, class)
	if err != nil {
		monitoring.TrackStage(string(StageConfirmed), "failed")
		return res, b.fail(attempt, StageConfirmed, err)
	}

	attempt.Stage = StageConfirmed
	monitoring.TrackStage(string(StageConfirmed), "success")
	res.Confirmation = confirmation
	b.log.Info("booking confirmed", "confirmation_id", confirmation.ConfirmationID)
	return res, nil
}

func (b *BookingService) confirm(ctx context.Context, trip models.Trip, selection []models.Seat, lock models.SeatLock, from, to, date, class string) (*models.Confirmation, error) {
	if b.now().After(lock.ExpiresAt) {
		return nil, &errs.ConfirmationError{LockID: lock.LockID, Detail: "seat lock expired before confirm"}
	}

	token, err := b.auth.Token(ctx, false)
	if err != nil {
		return nil, &errs.ConfirmationError{LockID: lock.LockID, Detail: err.Error()}
	}

	passengers := make([]models.Passenger, len(b.cfg.PassengerNames))
	for i := range b.cfg.PassengerNames {
		passengers[i] = models.Passenger{
			Name:   b.cfg.PassengerNames[i],
			Gender: b.cfg.PassengerGenders[i],
			Type:   b.cfg.PassengerTypes[i],
		}
	}

	req := models.ConfirmRequest{
		LockID:      lock.LockID,
		TripID:      trip.TripID,
		FromCity:    from,
		ToCity:      to,
		JourneyDate: date,
		SeatClass:   class,
		Passengers:  passengers,
	}
	if bp, ok := trip.FindBoardingPoint(from); ok {
		req.BoardingPointID = bp.ID
	}

	confirmationID, err := b.gw.Confirm(ctx, req, token.Token)
	if err != nil {
		var confirmErr *errs.ConfirmationError
		if errors.As(err, &confirmErr) {
			return nil, err
		}
		// Reclassify so nothing downstream ever retries it, and keep the
		// remote detail for manual reconciliation.
		return nil, &errs.ConfirmationError{LockID: lock.LockID, Detail: err.Error()}
	}

	return &models.Confirmation{
		ConfirmationID: confirmationID,
		Trip:           trip,
		Seats:          selection,
		Passengers:     passengers,
		ConfirmedAt:    b.now(),
	}, nil
}

func (b *BookingService) fetchTrips(ctx context.Context, from, to, date string, force bool) ([]models.Trip, error) {
	raw, err := b.cache.GetOrFetch(ctx, SearchKey(from, to, date), b.cfg.SearchTTL, force, func(ctx context.Context) ([]byte, error) {
		token, err := b.auth.Token(ctx, false)
		if err != nil {
			return nil, err
		}
		trips, err := b.gw.SearchTrips(ctx, from, to, date, token.Token)
		if err != nil {
			return nil, err
		}
		return json.Marshal(trips)
	})
	if err != nil {
		return nil, err
	}

	var trips []models.Trip
	if err := json.Unmarshal(raw, &trips); err != nil {
		return nil, fmt.Errorf("decode cached trips: %w", err)
	}
	return trips, nil
}

func (b *BookingService) fetchLayout(ctx context.Context, tripID, class string, force bool) (models.SeatLayout, error) {
	raw, err := b.cache.GetOrFetch(ctx, LayoutKey(tripID, class), b.cfg.LayoutTTL, force, func(ctx context.Context) ([]byte, error) {
		token, err := b.auth.Token(ctx, false)
		if err != nil {
			return nil, err
		}
		layout, err := b.gw.SeatLayout(ctx, tripID, class, token.Token)
		if err != nil {
			return nil, err
		}
		return json.Marshal(layout)
	})
	if err != nil {
		return models.SeatLayout{}, err
	}

	var layout models.SeatLayout
	if err := json.Unmarshal(raw, &layout); err != nil {
		return models.SeatLayout{}, fmt.Errorf("decode cached layout: %w", err)
	}
	return layout, nil
}

// runStage drives fn through the retry policy and advances the attempt on
// success. It does not mark FAILED; the caller owns the terminal decision.
func (b *BookingService) runStage(ctx context.Context, attempt *Attempt, stage Stage, fn func(context.Context) error) error {
	if err := b.withRetry(ctx, attempt, stage, fn); err != nil {
		monitoring.TrackStage(string(stage), "failed")
		return err
	}
	attempt.Stage = stage
	monitoring.TrackStage(string(stage), "success")
	return nil
}

func (b *BookingService) withRetry(ctx context.Context, attempt *Attempt, stage Stage, fn func(context.Context) error) error {
	for n := 1; ; n++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		retry, delay := b.policy.Decide(err, n)
		if !retry {
			return err
		}
		attempt.Retries[stage]++
		monitoring.TrackStage(string(stage), "retry")
		b.log.Warn("transient failure, backing off",
			"stage", stage, "attempt", n, "delay", delay, "error", err)
		b.sleep(delay)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (b *BookingService) fail(attempt *Attempt, stage Stage, err error) error {
	attempt.Stage = StageFailed
	attempt.FailedStage = stage
	attempt.LastErr = err
	b.log.Error("booking attempt failed", "stage", stage, "error", err)
	return err
}

func seatIDs(seats []models.Seat) []string {
	ids := make([]string, len(seats))
	for i, s := range seats {
		ids[i] = s.ID
	}
	return ids
}

func coalesce(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}
