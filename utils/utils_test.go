package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeJourneyDate(t *testing.T) {
	now := time.Date(2025, time.March, 25, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "explicit date passes through", input: "28-Mar-2025", want: "28-Mar-2025"},
		{name: "auto is today", input: "auto", want: "25-Mar-2025"},
		{name: "auto plus offset", input: "auto+7", want: "01-Apr-2025"},
		{name: "auto upper case", input: "AUTO", want: "25-Mar-2025"},
		{name: "bad offset", input: "auto+x", wantErr: true},
		{name: "wrong format", input: "2025-03-28", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeJourneyDate(tc.input, now)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCircuitBreaker_StaysClosedOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker("test")

	err := cb.Execute(func() error { return nil })

	assert.NoError(t, err)
	assert.Equal(t, BreakerClosed, cb.State())
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker("test")
	boom := errors.New("boom")

	for i := 0; i < 5; i++ {
		_ = cb.Execute(func() error { return boom })
	}

	assert.Equal(t, BreakerOpen, cb.State())
	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrBreakerOpen)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("test")
	boom := errors.New("boom")

	for i := 0; i < 4; i++ {
		_ = cb.Execute(func() error { return boom })
	}
	require.Equal(t, BreakerClosed, cb.State())

	_ = cb.Execute(func() error { return nil })
	for i := 0; i < 4; i++ {
		_ = cb.Execute(func() error { return boom })
	}

	assert.Equal(t, BreakerClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker("test")
	cb.cooldown = 10 * time.Millisecond
	boom := errors.New("boom")

	for i := 0; i < 5; i++ {
		_ = cb.Execute(func() error { return boom })
	}
	require.Equal(t, BreakerOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	err := cb.Execute(func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, BreakerClosed, cb.State())
}
