package pool

import "github.com/go-i2p/handlepool/lib/metrics"

// Pool utilization metrics, shared by all pools in the process.
var (
	// PoolConnectionsTotal is the configured capacity.
	PoolConnectionsTotal = metrics.NewGauge(
		"handlepool_handles_max",
		"Maximum number of handles in the pool",
	)
	// PoolConnectionsOpen is the current number of live handles.
	PoolConnectionsOpen = metrics.NewGauge(
		"handlepool_handles_open",
		"Current number of live handles",
	)
	// PoolConnectionsIdle is the current number of idle handles.
	PoolConnectionsIdle = metrics.NewGauge(
		"handlepool_handles_idle",
		"Current number of idle handles in the pool",
	)
	// PoolConnectionsInUse is the number of handles currently lent out.
	PoolConnectionsInUse = metrics.NewGauge(
		"handlepool_handles_in_use",
		"Number of handles currently lent out",
	)
	// PoolAcquireTotal counts acquire calls.
	PoolAcquireTotal = metrics.NewCounter(
		"handlepool_acquire_total",
		"Total number of acquire calls",
	)
	// PoolAcquireSuccessTotal counts acquires that returned a handle.
	PoolAcquireSuccessTotal = metrics.NewCounter(
		"handlepool_acquire_success_total",
		"Total number of successful acquires",
	)
	// PoolAcquireFailedTotal counts acquires that returned an error.
	PoolAcquireFailedTotal = metrics.NewCounter(
		"handlepool_acquire_failed_total",
		"Total number of failed acquires",
	)
	// PoolReleaseTotal counts release calls.
	PoolReleaseTotal = metrics.NewCounter(
		"handlepool_release_total",
		"Total number of release calls",
	)
	// PoolStaleDroppedTotal counts dead handles discarded on acquire.
	PoolStaleDroppedTotal = metrics.NewCounter(
		"handlepool_stale_dropped_total",
		"Total number of stale handles discarded on acquire",
	)
	// PoolCreateFailedTotal counts failed factory calls.
	PoolCreateFailedTotal = metrics.NewCounter(
		"handlepool_create_failed_total",
		"Total number of failed handle creations",
	)
	// PoolAcquireLatency tracks time spent in Acquire.
	PoolAcquireLatency = metrics.NewHistogram(
		"handlepool_acquire_duration_seconds",
		"Time spent acquiring a handle from the pool",
		metrics.DefaultLatencyBuckets,
	)
	// PoolCreateLatency tracks time spent in the factory.
	PoolCreateLatency = metrics.NewHistogram(
		"handlepool_create_duration_seconds",
		"Time spent creating a handle",
		metrics.DefaultLatencyBuckets,
	)
)

// UpdateMetrics publishes the gauges from stats.
func UpdateMetrics(stats Stats) {
	PoolConnectionsTotal.Set(int64(stats.MaxSize))
	PoolConnectionsOpen.Set(int64(stats.NumOpen))
	PoolConnectionsIdle.Set(int64(stats.NumIdle))
	PoolConnectionsInUse.Set(int64(stats.NumInUse))
}
