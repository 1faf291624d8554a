package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// TestSentinelErrors verifies all sentinel errors are properly defined.
func TestSentinelErrors(t *testing.T) {
	sentinels := []struct {
		name string
		err  error
	}{
		{"ErrConfiguration", ErrConfiguration},
		{"ErrFactory", ErrFactory},
		{"ErrExhausted", ErrExhausted},
		{"ErrCancelled", ErrCancelled},
		{"ErrClosed", ErrClosed},
		{"ErrUnavailable", ErrUnavailable},
		{"ErrCircuitOpen", ErrCircuitOpen},
	}

	seen := make(map[string]string)
	for _, tc := range sentinels {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err == nil {
				t.Fatalf("%s should not be nil", tc.name)
			}
			msg := tc.err.Error()
			if msg == "" {
				t.Errorf("%s should have a non-empty message", tc.name)
			}
			if other, dup := seen[msg]; dup {
				t.Errorf("%s and %s share the message %q", tc.name, other, msg)
			}
			seen[msg] = tc.name
		})
	}
}

func TestUnknownDriverWrapsFactory(t *testing.T) {
	if !errors.Is(ErrUnknownDriver, ErrFactory) {
		t.Error("ErrUnknownDriver should wrap ErrFactory")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
		exit int
	}{
		{"nil", nil, ClassNone, ExitOK},
		{"configuration", fmt.Errorf("pool: %w", ErrConfiguration), ClassConfiguration, ExitConfiguration},
		{"factory", fmt.Errorf("pool: %w", ErrFactory), ClassFactory, ExitRuntime},
		{"unknown driver", ErrUnknownDriver, ClassFactory, ExitRuntime},
		{"exhausted", fmt.Errorf("pool: %w", ErrExhausted), ClassExhausted, ExitRuntime},
		{"cancelled", fmt.Errorf("pool: %w: %w", ErrCancelled, context.Canceled), ClassCancelled, ExitRuntime},
		{"closed", fmt.Errorf("pool: %w", ErrClosed), ClassClosed, ExitRuntime},
		{"unavailable", fmt.Errorf("probe: %w", ErrUnavailable), ClassUnavailable, ExitRuntime},
		{"circuit open before factory", fmt.Errorf("%w: %w", ErrFactory, ErrCircuitOpen), ClassCircuitOpen, ExitRuntime},
		{"unknown", errors.New("boom"), ClassInternal, ExitRuntime},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Errorf("Classify() = %q, want %q", got, tc.want)
			}
			if got := ExitCode(tc.err); got != tc.exit {
				t.Errorf("ExitCode() = %d, want %d", got, tc.exit)
			}
		})
	}
}

func TestPredicates(t *testing.T) {
	if !IsConfiguration(fmt.Errorf("x: %w", ErrConfiguration)) {
		t.Error("IsConfiguration")
	}
	if !IsFactory(ErrUnknownDriver) {
		t.Error("IsFactory")
	}
	if !IsExhausted(fmt.Errorf("x: %w", ErrExhausted)) {
		t.Error("IsExhausted")
	}
	if !IsCancelled(fmt.Errorf("x: %w", ErrCancelled)) {
		t.Error("IsCancelled")
	}
	if !IsClosed(fmt.Errorf("x: %w", ErrClosed)) {
		t.Error("IsClosed")
	}
	if IsExhausted(ErrClosed) {
		t.Error("IsExhausted should not match ErrClosed")
	}
}
