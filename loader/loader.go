// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package loader drives the MNIST ingest: it checks the decoded datasets,
// builds one record per item and writes them to a Store in batches.
package loader

import (
	"bytes"
	"context"
	"time"

	"github.com/featurebasedb/mnistload/errors"
	"github.com/featurebasedb/mnistload/idx"
	"github.com/featurebasedb/mnistload/logger"
	"github.com/featurebasedb/mnistload/record"
	"golang.org/x/sync/errgroup"
)

// infoEvery is how many batches pass between progress lines at info level.
const infoEvery = 10

// Loader writes MNIST records to a Store.
type Loader struct {
	store    Store
	cfg      Config
	log      logger.Logger
	progress *ProgressTracker
	now      func() time.Time
}

// LoaderOption is a functional option for NewLoader.
type LoaderOption func(l *Loader) error

// OptLoaderLogger sets the logger. The default discards everything.
func OptLoaderLogger(log logger.Logger) LoaderOption {
	return func(l *Loader) error {
		l.log = log
		return nil
	}
}

// OptLoaderProgress sets the tracker which is advanced after every flush.
func OptLoaderProgress(t *ProgressTracker) LoaderOption {
	return func(l *Loader) error {
		l.progress = t
		return nil
	}
}

// NewLoader returns a Loader writing to store.
func NewLoader(store Store, cfg Config, opts ...LoaderOption) (*Loader, error) {
	if store == nil {
		return nil, errors.New(errors.ErrUncoded, "store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}
	l := &Loader{
		store:    store,
		cfg:      cfg,
		log:      logger.NopLogger,
		progress: &ProgressTracker{},
		now:      time.Now,
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, errors.Wrap(err, "applying option")
		}
	}
	return l, nil
}

// Progress returns the loader's progress tracker.
func (l *Loader) Progress() *ProgressTracker { return l.progress }

// Stats summarizes a load.
type Stats struct {
	Records  int
	Batches  int
	Duration time.Duration
}

// EnsureTable makes sure the configured table exists, creating it with the
// configured column family if allowed.
func (l *Loader) EnsureTable(ctx context.Context) error {
	exists, err := l.store.TableExists(ctx, l.cfg.Table)
	if err != nil {
		return ioFailure(err, "checking for table "+l.cfg.Table)
	}
	if exists {
		l.log.Infof("table '%s' already exists", l.cfg.Table)
		return nil
	}
	if !l.cfg.CreateTable {
		return errors.Newf(errors.ErrIOFailure, "table '%s' does not exist", l.cfg.Table)
	}
	l.log.Infof("table '%s' does not exist, creating it with column family '%s'", l.cfg.Table, l.cfg.Family)
	if err := l.store.CreateTable(ctx, l.cfg.Table, l.cfg.Family); err != nil {
		return ioFailure(err, "creating table "+l.cfg.Table)
	}
	return nil
}

// Load writes one record per item of images and labels. The counts are
// checked before anything is built or written. Records are put in index
// order and flushed every BatchSize records; the first error aborts the load
// and leaves whatever was already flushed in place.
func (l *Loader) Load(ctx context.Context, images, labels *idx.Dataset) (Stats, error) {
	var stats Stats
	if err := idx.CheckPair(images, labels); err != nil {
		return stats, err
	}
	if err := l.EnsureTable(ctx); err != nil {
		return stats, err
	}

	start := l.now()
	im, lb := images.Images, labels.Labels
	b := l.builder(im)
	n := im.Count
	window := make([]record.Record, l.cfg.BatchSize)

	l.log.Infof("loading %d records into '%s' in batches of %d", n, l.cfg.Table, l.cfg.BatchSize)
	for lo := 0; lo < n; lo += l.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return stats, errors.Wrapf(err, "stopped after %d records", stats.Records)
		}
		hi := lo + l.cfg.BatchSize
		if hi > n {
			hi = n
		}
		recs := window[:hi-lo]

		if err := l.build(ctx, b, im, lb, lo, recs); err != nil {
			return stats, err
		}
		for _, r := range recs {
			if err := l.store.BatchPut(ctx, l.cfg.Table, []byte(r.Key), r.Fields(l.cfg.Family)); err != nil {
				return stats, ioFailure(err, "putting row "+r.Key)
			}
		}
		CounterRecordsBuilt.Add(float64(len(recs)))

		flushStart := l.now()
		if err := l.store.Flush(ctx); err != nil {
			return stats, ioFailure(err, "flushing rows "+recs[0].Key+" to "+recs[len(recs)-1].Key)
		}
		HistogramFlushDuration.Observe(l.now().Sub(flushStart).Seconds())
		CounterBatchesFlushed.Inc()
		l.progress.proceed(len(recs))

		stats.Records += len(recs)
		stats.Batches++
		l.log.Debugf("flushed rows %s to %s", recs[0].Key, recs[len(recs)-1].Key)
		if stats.Batches%infoEvery == 0 {
			l.log.Infof("%d/%d records written", stats.Records, n)
		}
	}
	stats.Duration = l.now().Sub(start)
	l.log.Infof("%d records written to table '%s' in %d batches (%v)", stats.Records, l.cfg.Table, stats.Batches, stats.Duration)
	return stats, nil
}

func (l *Loader) builder(im *idx.Images) record.Builder {
	return record.Builder{
		Rows:      im.Rows,
		Cols:      im.Cols,
		KeyPrefix: l.cfg.KeyPrefix,
	}
}

// build fills recs with the records of items base..base+len(recs)-1, split
// into contiguous stripes across up to Concurrency goroutines.
func (l *Loader) build(ctx context.Context, b record.Builder, im *idx.Images, lb *idx.Labels, base int, recs []record.Record) error {
	workers := l.cfg.Concurrency
	if workers > len(recs) {
		workers = len(recs)
	}
	if workers <= 1 {
		for j := range recs {
			i := base + j
			recs[j] = b.Build(i, im.Image(i), lb.Labels[i])
		}
		return nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	stripe := (len(recs) + workers - 1) / workers
	for lo := 0; lo < len(recs); lo += stripe {
		lo, hi := lo, lo+stripe
		if hi > len(recs) {
			hi = len(recs)
		}
		eg.Go(func() error {
			for j := lo; j < hi; j++ {
				if j%256 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				i := base + j
				recs[j] = b.Build(i, im.Image(i), lb.Labels[i])
			}
			return nil
		})
	}
	return errors.Wrap(eg.Wait(), "building records")
}

// VerifyResult summarizes a Verify call. Stored is -1 when the store cannot
// count rows.
type VerifyResult struct {
	Expected int
	Stored   int
	Sampled  int
}

// Verify compares the store against the source datasets: the row count
// when the store is a Counter, then sample evenly spaced rows rebuilt from
// the source and compared byte for byte when the store is a Getter. Any
// difference is an ErrDatasetMismatch.
func (l *Loader) Verify(ctx context.Context, images, labels *idx.Dataset, sample int) (VerifyResult, error) {
	res := VerifyResult{Stored: -1}
	if err := idx.CheckPair(images, labels); err != nil {
		return res, err
	}
	im, lb := images.Images, labels.Labels
	res.Expected = im.Count

	if c, ok := l.store.(Counter); ok {
		n, err := c.CountRows(ctx, l.cfg.Table)
		if err != nil {
			return res, ioFailure(err, "counting rows of "+l.cfg.Table)
		}
		res.Stored = n
		if n != res.Expected {
			return res, errors.Newf(errors.ErrDatasetMismatch, "table '%s' holds %d rows, source has %d items", l.cfg.Table, n, res.Expected)
		}
	} else {
		l.log.Warnf("store cannot count rows; skipping count check")
	}

	g, ok := l.store.(Getter)
	if !ok {
		if sample > 0 {
			l.log.Warnf("store cannot read rows back; skipping sample check")
		}
		return res, nil
	}
	if sample > res.Expected {
		sample = res.Expected
	}
	b := l.builder(im)
	for k := 0; k < sample; k++ {
		i := k * res.Expected / sample
		want := b.Build(i, im.Image(i), lb.Labels[i])
		got, err := g.Get(ctx, l.cfg.Table, []byte(want.Key))
		if err != nil {
			return res, ioFailure(err, "reading row "+want.Key)
		}
		if got == nil {
			CounterVerifiedRecords.WithLabelValues("missing").Inc()
			return res, errors.Newf(errors.ErrDatasetMismatch, "row %s is missing", want.Key)
		}
		for col, exp := range want.Fields(l.cfg.Family) {
			if !bytes.Equal(got[col], exp) {
				CounterVerifiedRecords.WithLabelValues("different").Inc()
				return res, errors.Newf(errors.ErrDatasetMismatch, "row %s: column %s differs from source", want.Key, col)
			}
		}
		CounterVerifiedRecords.WithLabelValues("ok").Inc()
		res.Sampled++
	}
	l.log.Infof("verified %d sampled rows of '%s'", res.Sampled, l.cfg.Table)
	return res, nil
}

// ioFailure wraps a store error as an ErrIOFailure unless it already
// carries a code.
func ioFailure(err error, msg string) error {
	if errors.CodeOf(err) != "" {
		return errors.Wrap(err, msg)
	}
	return errors.WithCode(err, errors.ErrIOFailure, msg)
}
