package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"railbooker/config"
	"railbooker/internal/errs"
	"railbooker/internal/railapi"
	"railbooker/monitoring"
	"railbooker/services"
	"railbooker/utils"
)

// Exit codes: 0 on CONFIRMED, 1 on FAILED, 2 on configuration errors.
const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func Execute() int {
	fs := pflag.NewFlagSet("railbooker", pflag.ContinueOnError)
	var (
		trip        = fs.IntP("trip", "t", 1, "trip number to book (1-based)")
		refresh     = fs.BoolP("refresh", "r", false, "bypass cache and fetch fresh data")
		fromCity    = fs.StringP("from-city", "f", "", "source city (overrides config)")
		toCity      = fs.StringP("to-city", "T", "", "destination city (overrides config)")
		journeyDate = fs.StringP("journey-date", "d", "", "journey date, DD-MMM-YYYY or auto+N (overrides config)")
		seatClass   = fs.String("class", "", "seat class (overrides config)")
		configPath  = fs.StringP("config", "c", "", "path to YAML config file")
		verbose     = fs.BoolP("verbose", "v", false, "debug logging")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		return exitConfig
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	defer monitoring.DumpMetrics(log)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("cannot load configuration", "error", err)
		return exitConfig
	}
	if *seatClass != "" {
		cfg.SeatClass = *seatClass
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		return exitConfig
	}

	var store services.CacheStore = services.NewMemoryStore()
	if cfg.RedisURL != "" {
		redisClient, err := utils.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Error("redis unavailable", "error", err)
			return exitFailed
		}
		defer redisClient.Close()
		store = services.NewRedisStore(redisClient)
	}

	gateway := railapi.NewClient(railapi.ClientConfig{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.RequestTimeout,
	}, log)

	auth := services.NewAuthService(gateway, cfg, log)
	cache := services.NewCacheService(store, log)
	seats := services.NewSeatService(log)
	engine := services.NewBookingService(cfg, gateway, auth, cache, seats, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	res, err := engine.Run(ctx, services.RunOptions{
		TripIndex:   *trip,
		Refresh:     *refresh,
		FromCity:    *fromCity,
		ToCity:      *toCity,
		JourneyDate: *journeyDate,
	})
	if err != nil {
		var cfgErr *errs.ConfigurationError
		if errors.As(err, &cfgErr) {
			return exitConfig
		}
		log.Error("booking failed",
			"stage", res.Attempt.FailedStage, "retries", res.Attempt.Retries, "error", err)
		return exitFailed
	}

	c := res.Confirmation
	log.Info("ticket purchased",
		"confirmation_id", c.ConfirmationID,
		"train", c.Trip.TrainName,
		"seats", len(c.Seats),
		"departure", c.Trip.DepartureTime)
	return exitOK
}
