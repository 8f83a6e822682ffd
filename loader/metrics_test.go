// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package loader_test

import (
	"context"
	"testing"

	"github.com/featurebasedb/mnistload/loader"
	"github.com/featurebasedb/mnistload/store/inmem"
	"github.com/go-test/deep"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	var m dto.Metric
	require.NoError(t, (<-ch).Write(&m))
	return m.GetCounter().GetValue()
}

func histogramCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, h.Write(&m))
	return m.GetHistogram().GetSampleCount()
}

func TestLoadMetrics(t *testing.T) {
	records := counterValue(t, loader.CounterRecordsBuilt)
	batches := counterValue(t, loader.CounterBatchesFlushed)
	flushes := histogramCount(t, loader.HistogramFlushDuration)
	verifiedOK := counterValue(t, loader.CounterVerifiedRecords.WithLabelValues("ok"))

	s := inmem.NewStore()
	l := newLoader(t, s, func(c *loader.Config) { c.BatchSize = 3 })
	images, labels := datasets(7, 7)
	_, err := l.Load(context.Background(), images, labels)
	require.NoError(t, err)
	_, err = l.Verify(context.Background(), images, labels, 2)
	require.NoError(t, err)

	got := []float64{
		counterValue(t, loader.CounterRecordsBuilt) - records,
		counterValue(t, loader.CounterBatchesFlushed) - batches,
		float64(histogramCount(t, loader.HistogramFlushDuration) - flushes),
		counterValue(t, loader.CounterVerifiedRecords.WithLabelValues("ok")) - verifiedOK,
	}
	if diff := deep.Equal(got, []float64{7, 3, 3, 2}); diff != nil {
		t.Fatal(diff)
	}
}
