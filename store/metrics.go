// Copyright (C) 2024 The fswatchstore Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

package store

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// instrumentation mirrors the teacher's internal metrics decorator: a
// prometheus CounterVec/HistogramVec pair under a fixed namespace for
// external scraping, plus plain atomic counters so get_stats() can report
// read_ops/write_ops/cache_hit_rate/avg_query_time_ms in-process without
// depending on the prometheus registry's own read path.
type instrumentation struct {
	registry   *prometheus.Registry
	opsTotal   *prometheus.CounterVec
	opSeconds  *prometheus.HistogramVec

	readOps     uint64
	writeOps    uint64
	deleteOps   uint64
	cacheHits   uint64
	cacheMisses uint64
	queryNanos  uint64
	queryCount  uint64
}

// newInstrumentation registers its metrics against a private registry
// rather than prometheus.DefaultRegisterer, so that opening more than one
// Store in the same process (every package test does) never collides on
// a duplicate collector name. The registry is kept on the instrumentation
// value; no method exports it.
func newInstrumentation() *instrumentation {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &instrumentation{
		registry: reg,
		opsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fswatchstore",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Number of store operations by kind.",
		}, []string{"operation"}),
		opSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fswatchstore",
			Subsystem: "store",
			Name:      "operation_seconds",
			Help:      "Duration of store operations by kind.",
		}, []string{"operation"}),
	}
}

// account times one call to op and records it under both instrumentation
// paths; call it as `defer i.account("StoreEvent")()`.
func (i *instrumentation) account(op string) func() {
	t0 := time.Now()
	return func() {
		d := time.Since(t0)
		i.opsTotal.WithLabelValues(op).Inc()
		i.opSeconds.WithLabelValues(op).Observe(d.Seconds())
		atomic.AddUint64(&i.queryNanos, uint64(d.Nanoseconds()))
		atomic.AddUint64(&i.queryCount, 1)
	}
}

func (i *instrumentation) recordRead()   { atomic.AddUint64(&i.readOps, 1) }
func (i *instrumentation) recordWrite()  { atomic.AddUint64(&i.writeOps, 1) }
func (i *instrumentation) recordDelete() { atomic.AddUint64(&i.deleteOps, 1) }
func (i *instrumentation) recordHit()    { atomic.AddUint64(&i.cacheHits, 1) }
func (i *instrumentation) recordMiss()   { atomic.AddUint64(&i.cacheMisses, 1) }

func (i *instrumentation) cacheHitRate() float64 {
	hits := atomic.LoadUint64(&i.cacheHits)
	misses := atomic.LoadUint64(&i.cacheMisses)
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func (i *instrumentation) avgQueryMillis() float64 {
	count := atomic.LoadUint64(&i.queryCount)
	if count == 0 {
		return 0
	}
	nanos := atomic.LoadUint64(&i.queryNanos)
	return float64(nanos) / float64(count) / 1e6
}
