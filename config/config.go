package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"railbooker/internal/errs"
)

type Config struct {
	// Remote service
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Credentials
	MobileNumber string `yaml:"mobile_number"`
	Password     string `yaml:"password"`

	// Journey
	FromCity    string `yaml:"from_city"`
	ToCity      string `yaml:"to_city"`
	JourneyDate string `yaml:"journey_date"` // DD-MMM-YYYY, "auto" or "auto+N"
	SeatClass   string `yaml:"seat_class"`

	// Passengers: equal-length arrays, index i describes passenger i
	PassengerNames   []string `yaml:"passenger_names"`
	PassengerGenders []string `yaml:"passenger_genders"`
	PassengerTypes   []string `yaml:"passenger_types"`

	// Auth
	TokenLifetime time.Duration `yaml:"token_lifetime"` // used when the token carries no exp claim
	TokenMargin   time.Duration `yaml:"token_margin"`

	// Cache
	RedisURL  string        `yaml:"redis_url"` // empty = in-memory cache
	SearchTTL time.Duration `yaml:"search_ttl"`
	LayoutTTL time.Duration `yaml:"layout_ttl"`

	// Retry
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay   time.Duration `yaml:"retry_max_delay"`
	RetryMaxAttempt int           `yaml:"retry_max_attempts"`
	LockMaxAttempt  int           `yaml:"lock_max_attempts"`

	// Lock expiry fallback when the lock response reports none
	LockTTL time.Duration `yaml:"lock_ttl"`
}

// Load reads the optional YAML config file, then lets environment variables
// override file values. path may be empty.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.BaseURL = getEnv("RAILBOOKER_BASE_URL", cfg.BaseURL)
	cfg.MobileNumber = getEnv("RAILBOOKER_MOBILE_NUMBER", cfg.MobileNumber)
	cfg.Password = getEnv("RAILBOOKER_PASSWORD", cfg.Password)
	cfg.FromCity = getEnv("RAILBOOKER_FROM_CITY", cfg.FromCity)
	cfg.ToCity = getEnv("RAILBOOKER_TO_CITY", cfg.ToCity)
	cfg.JourneyDate = getEnv("RAILBOOKER_JOURNEY_DATE", cfg.JourneyDate)
	cfg.SeatClass = getEnv("RAILBOOKER_SEAT_CLASS", cfg.SeatClass)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.RetryMaxAttempt = getEnvAsInt("RAILBOOKER_RETRY_MAX_ATTEMPTS", cfg.RetryMaxAttempt)
	cfg.LockMaxAttempt = getEnvAsInt("RAILBOOKER_LOCK_MAX_ATTEMPTS", cfg.LockMaxAttempt)
	cfg.RequestTimeout = getEnvAsDuration("RAILBOOKER_REQUEST_TIMEOUT", cfg.RequestTimeout)

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		BaseURL:         "https://railspaapi.shohoz.com/v1.0/web",
		RequestTimeout:  30 * time.Second,
		JourneyDate:     "auto",
		SeatClass:       "SNIGDHA",
		TokenLifetime:   30 * time.Minute,
		TokenMargin:     60 * time.Second,
		SearchTTL:       10 * time.Minute,
		LayoutTTL:       2 * time.Minute,
		RetryBaseDelay:  time.Second,
		RetryMaxDelay:   30 * time.Second,
		RetryMaxAttempt: 4,
		LockMaxAttempt:  3,
		LockTTL:         5 * time.Minute,
	}
}

// Validate fails fast on input the engine cannot act on. Seat-to-passenger
// binding needs a 1:1 index mapping, so the passenger arrays must agree.
func (c *Config) Validate() error {
	if c.MobileNumber == "" || c.Password == "" {
		return &errs.ConfigurationError{Reason: "mobile_number and password are required"}
	}
	if c.FromCity == "" || c.ToCity == "" {
		return &errs.ConfigurationError{Reason: "from_city and to_city are required"}
	}
	if len(c.PassengerNames) == 0 {
		return &errs.ConfigurationError{Reason: "at least one passenger is required"}
	}
	if len(c.PassengerGenders) != len(c.PassengerNames) || len(c.PassengerTypes) != len(c.PassengerNames) {
		return &errs.ConfigurationError{Reason: fmt.Sprintf(
			"passenger arrays disagree: %d names, %d genders, %d types",
			len(c.PassengerNames), len(c.PassengerGenders), len(c.PassengerTypes),
		)}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if duration, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return duration
	}
	return defaultValue
}
