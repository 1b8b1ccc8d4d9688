package cstore

import (
	"github.com/VictoriaMetrics/metrics"
)

// engineMetrics are registered in a set owned by one engine
type engineMetrics struct {
	set *metrics.Set

	hits           *metrics.Counter
	misses         *metrics.Counter
	loads          *metrics.Counter
	creates        *metrics.Counter
	loadFailures   *metrics.Counter
	evictions      *metrics.Counter
	evictedRetries *metrics.Counter

	syncs         *metrics.Counter
	syncFailures  *metrics.Counter
	sweeps        *metrics.Counter
	sweepFailures *metrics.Counter
	syncDuration  *metrics.Histogram
}

func newEngineMetrics(resident func() float64) *engineMetrics {
	set := metrics.NewSet()
	set.NewGauge("docdb_resident_collections", resident)

	return &engineMetrics{
		set:            set,
		hits:           set.NewCounter("docdb_cache_hits_total"),
		misses:         set.NewCounter("docdb_cache_misses_total"),
		loads:          set.NewCounter("docdb_collection_loads_total"),
		creates:        set.NewCounter("docdb_collection_creates_total"),
		loadFailures:   set.NewCounter("docdb_collection_load_failures_total"),
		evictions:      set.NewCounter("docdb_collection_evictions_total"),
		evictedRetries: set.NewCounter("docdb_evicted_slot_retries_total"),
		syncs:          set.NewCounter("docdb_sync_cycles_total"),
		syncFailures:   set.NewCounter("docdb_sync_failures_total"),
		sweeps:         set.NewCounter("docdb_sweep_cycles_total"),
		sweepFailures:  set.NewCounter("docdb_sweep_failures_total"),
		syncDuration:   set.NewHistogram("docdb_sync_duration_seconds"),
	}
}
