package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0.00"},
		{105, "$105.00"},
		{1234.5, "$1,234.50"},
		{1234567.891, "$1,234,567.89"},
		{-98765.4, "-$98,765.40"},
	}
	for _, tt := range tests {
		if got := FormatUSD(tt.in); got != tt.want {
			t.Errorf("FormatUSD(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestFormatRatio(t *testing.T) {
	if got := FormatRatio(0.05); got != "+5.00%" {
		t.Errorf("FormatRatio(0.05) = %s", got)
	}
	if got := FormatRatio(-0.012); got != "-1.20%" {
		t.Errorf("FormatRatio(-0.012) = %s", got)
	}
	if got := FormatRatio(0); got != "0.00%" {
		t.Errorf("FormatRatio(0) = %s", got)
	}
}

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_ReturnsLastError(t *testing.T) {
	calls := 0
	want := errors.New("still down")
	err := Retry(context.Background(), fastRetry(4), func() error {
		calls++
		return want
	})
	if !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestRetry_PermanentStops(t *testing.T) {
	calls := 0
	notFound := errors.New("symbol not found")
	_, err := RetryWithResult(context.Background(), fastRetry(5), func() (int, error) {
		calls++
		return 0, Permanent(notFound)
	})
	if !errors.Is(err, notFound) {
		t.Errorf("err = %v, want %v", err, notFound)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_RetryablePredicate(t *testing.T) {
	calls := 0
	cfg := fastRetry(5)
	cfg.Retryable = func(err error) bool { return err.Error() == "retry me" }
	_ = Retry(context.Background(), cfg, func() error {
		calls++
		return errors.New("fatal")
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Retry(ctx, fastRetry(3), func() error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestCalculateBackoff(t *testing.T) {
	if got := CalculateBackoff(0, 100*time.Millisecond, time.Second, 2); got != 100*time.Millisecond {
		t.Errorf("attempt 0 = %v", got)
	}
	if got := CalculateBackoff(2, 100*time.Millisecond, time.Second, 2); got != 400*time.Millisecond {
		t.Errorf("attempt 2 = %v", got)
	}
	if got := CalculateBackoff(10, 100*time.Millisecond, time.Second, 2); got != time.Second {
		t.Errorf("attempt 10 = %v, want capped", got)
	}
}
