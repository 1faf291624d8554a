package resilience

import (
	"fmt"

	apperrors "github.com/go-i2p/handlepool/lib/errors"
	"github.com/go-i2p/handlepool/lib/metrics"
)

// ErrCircuitOpen is returned when a call is rejected because the circuit is open.
// It also matches lib/errors.ErrFactory so pools treat it as a creation failure.
var ErrCircuitOpen = fmt.Errorf("%w: %w", apperrors.ErrFactory, apperrors.ErrCircuitOpen)

var (
	// CircuitBreakerTrips counts the number of times circuits have opened.
	CircuitBreakerTrips = metrics.NewCounter(
		"handlepool_circuit_breaker_trips_total",
		"Total number of times circuit breakers have opened",
	)
	// CircuitBreakerRejections counts calls rejected by open circuits.
	CircuitBreakerRejections = metrics.NewCounter(
		"handlepool_circuit_breaker_rejections_total",
		"Total calls rejected by open circuit breakers",
	)
)
