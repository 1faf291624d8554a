package validation

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestRequired(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid string", "db:sqlite3::memory:", false},
		{"empty string", "", true},
		{"whitespace only", "   ", true},
		{"tab only", "\t", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Required("pool.target", tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("Required() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrRequired) {
				t.Errorf("Required() error should wrap ErrRequired")
			}
		})
	}
}

func TestAtLeast(t *testing.T) {
	tests := []struct {
		value, floor int
		wantErr      bool
	}{
		{1, 1, false},
		{5, 1, false},
		{0, 1, true},
		{-1, 0, true},
		{0, 0, false},
	}

	for _, tt := range tests {
		err := AtLeast("pool.max_size", tt.value, tt.floor)
		if (err != nil) != tt.wantErr {
			t.Errorf("AtLeast(%d, %d) error = %v, wantErr %v", tt.value, tt.floor, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrOutOfRange) {
			t.Errorf("AtLeast() error should wrap ErrOutOfRange")
		}
	}

	if err := AtLeast("breaker.timeout", 500*time.Millisecond, time.Second); err == nil ||
		err.Error() != "breaker.timeout: must be at least 1s" {
		t.Errorf("duration floor error = %v", err)
	}
}

func TestNonNegative(t *testing.T) {
	if err := NonNegative("workload.iterations", -1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("NonNegative(-1) = %v", err)
	}
	if err := NonNegative("workload.hold", time.Duration(0)); err != nil {
		t.Errorf("zero duration should be valid: %v", err)
	}
	if err := NonNegative("workload.hold", time.Second); err != nil {
		t.Errorf("positive duration should be valid: %v", err)
	}
	if err := NonNegative("workload.hold", -time.Nanosecond); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
	if err := NonNegative("workload.rate", -0.5); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("negative float should fail, got %v", err)
	}
}

func TestFormat(t *testing.T) {
	if err := Format("pool.target", nil); err != nil {
		t.Errorf("Format(nil) = %v", err)
	}

	_, parseErr := strconv.Atoi("x")
	err := Format("pool.target", parseErr)
	if !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
	if !errors.Is(err, parseErr) {
		t.Errorf("expected the parse error to be preserved, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "pool.target: ") {
		t.Errorf("error should name the field, got %q", err.Error())
	}
}

func TestFieldError(t *testing.T) {
	e := Fail("field", "message", ErrRequired)
	if e.Error() != "field: message" {
		t.Errorf("Error() = %q", e.Error())
	}
	if !errors.Is(e, ErrRequired) {
		t.Error("FieldError should unwrap to its kind")
	}

	e = Fail("", "message", nil)
	if e.Error() != "message" {
		t.Errorf("Error() without field = %q", e.Error())
	}
}

func TestErrors(t *testing.T) {
	var errs Errors
	if errs.HasErrors() || errs.Err() != nil {
		t.Error("empty collection should report no errors")
	}

	errs.Add(nil)
	errs.Add(Required("pool.target", ""))
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if errs.Error() != "pool.target: is required" {
		t.Errorf("single Error() = %q", errs.Error())
	}

	errs.Add(AtLeast("pool.max_size", 0, 1))
	want := "2 validation errors: pool.target: is required; pool.max_size: must be at least 1"
	if msg := errs.Error(); msg != want {
		t.Errorf("multi Error() = %q, want %q", msg, want)
	}

	err := errs.Err()
	if !errors.Is(err, ErrRequired) || !errors.Is(err, ErrOutOfRange) {
		t.Errorf("collection should match every member, got %v", err)
	}
	var fe *FieldError
	if !errors.As(err, &fe) || fe.Field != "pool.target" {
		t.Errorf("errors.As should find the first *FieldError, got %+v", fe)
	}
}
