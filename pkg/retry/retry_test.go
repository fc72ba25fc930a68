package retry

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"
)

func fastConfig(maxRetries int) *Config {
	return &Config{
		MaxRetries:   maxRetries,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestStartupConfig(t *testing.T) {
	cfg := StartupConfig()
	if cfg.MaxRetries != 5 {
		t.Errorf("expected MaxRetries=5, got %d", cfg.MaxRetries)
	}
	if cfg.InitialDelay != 500*time.Millisecond {
		t.Errorf("expected InitialDelay=500ms, got %v", cfg.InitialDelay)
	}
	if cfg.MaxDelay != 10*time.Second {
		t.Errorf("expected MaxDelay=10s, got %v", cfg.MaxDelay)
	}
	if cfg.Multiplier != 2.0 {
		t.Errorf("expected Multiplier=2.0, got %f", cfg.Multiplier)
	}
}

func TestDo_Success(t *testing.T) {
	callCount := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	callCount := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		callCount++
		if callCount < 3 {
			return errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error after retries, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestDo_MaxRetriesExhausted(t *testing.T) {
	expectedErr := errors.New("i/o timeout")
	callCount := 0
	err := Do(context.Background(), fastConfig(2), func() error {
		callCount++
		return expectedErr
	})

	if err != expectedErr {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
	// MaxRetries=2 means: initial attempt + 2 retries = 3 total calls
	if callCount != 3 {
		t.Errorf("expected 3 calls (1 initial + 2 retries), got %d", callCount)
	}
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	expectedErr := errors.New("password authentication failed for user \"ekaya\"")
	callCount := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		callCount++
		return expectedErr
	})

	if err != expectedErr {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{
		MaxRetries:   5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	callCount := 0
	start := time.Now()
	err := Do(ctx, cfg, func() error {
		callCount++
		return syscall.ECONNREFUSED
	})
	elapsed := time.Since(start)

	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
	if elapsed > 200*time.Millisecond {
		t.Errorf("expected quick cancellation, took %v", elapsed)
	}
}

func TestDoWithResult_ReturnsValue(t *testing.T) {
	callCount := 0
	result, err := DoWithResult(context.Background(), fastConfig(3), func() (string, error) {
		callCount++
		if callCount == 1 {
			return "", fmt.Errorf("failed to ping database: %w", syscall.ECONNREFUSED)
		}
		return "pool", nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != "pool" {
		t.Errorf("expected result 'pool', got %q", result)
	}
	if callCount != 2 {
		t.Errorf("expected 2 calls, got %d", callCount)
	}
}

func TestDoWithResult_OnRetry(t *testing.T) {
	var attempts []int
	cfg := fastConfig(2)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	}

	_, err := DoWithResult(context.Background(), cfg, func() (int, error) {
		return 0, errors.New("connection reset by peer")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("expected retries [1 2], got %v", attempts)
	}
}

func TestDo_MaxDelayRespected(t *testing.T) {
	cfg := &Config{
		MaxRetries:   3,
		InitialDelay: 20 * time.Millisecond,
		MaxDelay:     25 * time.Millisecond,
		Multiplier:   10.0,
	}

	var delays []time.Duration
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	}

	_ = Do(context.Background(), cfg, func() error {
		return errors.New("timeout")
	})

	if len(delays) != 3 {
		t.Fatalf("expected 3 waits, got %d", len(delays))
	}
	for i, d := range delays[1:] {
		if d > cfg.MaxDelay {
			t.Errorf("wait %d = %v exceeds max delay %v", i+1, d, cfg.MaxDelay)
		}
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"connection refused errno", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"connection refused text", errors.New("dial tcp: connection refused"), true},
		{"postgres starting up", errors.New("FATAL: the database system is starting up (SQLSTATE 57P03)"), true},
		{"i/o timeout", errors.New("read tcp: i/o timeout"), true},
		{"too many connections", errors.New("sorry, too many connections for role"), true},
		{"auth failure", errors.New("login failed for user 'sa'"), false},
		{"sql error", errors.New("Invalid object name 'Invoices'."), false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", fmt.Errorf("ping: %w", context.DeadlineExceeded), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.expected {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}
