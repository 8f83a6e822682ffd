// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package loader

import "sync/atomic"

// ProgressTracker tracks how many records have been flushed to the store.
// It is safe to Check from another goroutine while a load is running.
type ProgressTracker struct {
	flushed uint64
	batches uint64
}

func (t *ProgressTracker) proceed(records int) {
	atomic.AddUint64(&t.flushed, uint64(records))
	atomic.AddUint64(&t.batches, 1)
}

// Check returns the number of records flushed so far.
func (t *ProgressTracker) Check() uint64 {
	return atomic.LoadUint64(&t.flushed)
}

// Batches returns the number of batches flushed so far.
func (t *ProgressTracker) Batches() uint64 {
	return atomic.LoadUint64(&t.batches)
}
