// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package loader

import "github.com/prometheus/client_golang/prometheus"

const (
	MetricRecordsBuilt    = "records_built_total"
	MetricBatchesFlushed  = "batches_flushed_total"
	MetricFlushDuration   = "flush_duration_seconds"
	MetricVerifiedRecords = "verified_records_total"
)

var CounterRecordsBuilt = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "mnistload",
		Name:      MetricRecordsBuilt,
		Help:      "Number of records built and put to the store.",
	},
)

var CounterBatchesFlushed = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "mnistload",
		Name:      MetricBatchesFlushed,
		Help:      "Number of batches flushed to the store.",
	},
)

var HistogramFlushDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "mnistload",
		Name:      MetricFlushDuration,
		Help:      "Time spent in Store.Flush.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
	},
)

var CounterVerifiedRecords = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "mnistload",
		Name:      MetricVerifiedRecords,
		Help:      "Number of stored records compared against the source, by outcome.",
	},
	[]string{
		"outcome",
	},
)

func init() {
	prometheus.MustRegister(CounterRecordsBuilt)
	prometheus.MustRegister(CounterBatchesFlushed)
	prometheus.MustRegister(HistogramFlushDuration)
	prometheus.MustRegister(CounterVerifiedRecords)
}
