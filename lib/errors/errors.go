// Package errors defines the failure classes shared by handlepool's
// packages. Each package wraps one of these sentinels in its own errors,
// so callers can test the class with errors.Is without importing the
// package that failed.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel failure classes.
var (
	// ErrConfiguration marks invalid construction arguments or settings.
	ErrConfiguration = errors.New("configuration error")

	// ErrFactory marks a handle factory that could not produce a handle.
	ErrFactory = errors.New("factory error")

	// ErrExhausted marks a bounded resource with no capacity left.
	ErrExhausted = errors.New("exhausted")

	// ErrCancelled marks a blocked operation abandoned by its caller.
	ErrCancelled = errors.New("cancelled")

	// ErrClosed marks use of a resource after shutdown.
	ErrClosed = errors.New("closed")

	// ErrUnavailable marks a backend that answered but is not usable.
	ErrUnavailable = errors.New("service unavailable")

	// ErrCircuitOpen marks a call refused by an open circuit breaker.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// ErrUnknownDriver indicates no driver is registered for a subscheme.
var ErrUnknownDriver = fmt.Errorf("driver: unknown subscheme: %w", ErrFactory)

// Class names the failure class of an error for logs.
type Class string

const (
	ClassNone          Class = ""
	ClassConfiguration Class = "configuration"
	ClassCircuitOpen   Class = "circuit_open"
	ClassFactory       Class = "factory"
	ClassExhausted     Class = "exhausted"
	ClassCancelled     Class = "cancelled"
	ClassClosed        Class = "closed"
	ClassUnavailable   Class = "unavailable"
	ClassInternal      Class = "internal"
)

// Classify returns the most specific class found in err's chain. A
// circuit-open error also wraps ErrFactory and is reported as circuit_open.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrConfiguration):
		return ClassConfiguration
	case errors.Is(err, ErrCircuitOpen):
		return ClassCircuitOpen
	case errors.Is(err, ErrFactory):
		return ClassFactory
	case errors.Is(err, ErrExhausted):
		return ClassExhausted
	case errors.Is(err, ErrCancelled):
		return ClassCancelled
	case errors.Is(err, ErrClosed):
		return ClassClosed
	case errors.Is(err, ErrUnavailable):
		return ClassUnavailable
	default:
		return ClassInternal
	}
}

// Process exit codes.
const (
	ExitOK            = 0
	ExitRuntime       = 1
	ExitConfiguration = 2
)

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	switch Classify(err) {
	case ClassNone:
		return ExitOK
	case ClassConfiguration:
		return ExitConfiguration
	default:
		return ExitRuntime
	}
}

// IsConfiguration returns true if the error is a configuration error.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsFactory returns true if the error came from a handle factory.
func IsFactory(err error) bool {
	return errors.Is(err, ErrFactory)
}

// IsExhausted returns true if the error indicates exhausted capacity.
func IsExhausted(err error) bool {
	return errors.Is(err, ErrExhausted)
}

// IsCancelled returns true if the error indicates a cancelled wait.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsClosed returns true if the error indicates a resource is closed.
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}
