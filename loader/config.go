// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package loader

import (
	"github.com/featurebasedb/mnistload/errors"
	"github.com/featurebasedb/mnistload/record"
)

// Loader defaults.
const (
	DefaultTable     = "mnist_dataset"
	DefaultBatchSize = 1000
)

// Config describes where and how records are written.
type Config struct {
	// Table and column family the records go to.
	Table  string `toml:"table"`
	Family string `toml:"family"`

	// KeyPrefix is prepended to the zero-padded item index.
	KeyPrefix string `toml:"key-prefix"`

	// BatchSize is the number of rows per Flush.
	BatchSize int `toml:"batch-size"`

	// Concurrency is the number of goroutines building the records of
	// one batch. Rows are still put in index order.
	Concurrency int `toml:"concurrency"`

	// CreateTable creates the table when it does not exist. Without it a
	// missing table is an error.
	CreateTable bool `toml:"create-table"`
}

// NewConfig returns a Config with default values.
func NewConfig() Config {
	return Config{
		Table:       DefaultTable,
		Family:      record.DefaultFamily,
		KeyPrefix:   record.DefaultKeyPrefix,
		BatchSize:   DefaultBatchSize,
		Concurrency: 1,
		CreateTable: true,
	}
}

// Validate checks the config for values the loader cannot work with.
func (c Config) Validate() error {
	switch {
	case c.Table == "":
		return errors.New(errors.ErrUncoded, "table name required")
	case c.Family == "":
		return errors.New(errors.ErrUncoded, "column family required")
	case c.BatchSize < 1:
		return errors.Newf(errors.ErrUncoded, "batch size must be positive, got %d", c.BatchSize)
	case c.Concurrency < 1:
		return errors.Newf(errors.ErrUncoded, "concurrency must be positive, got %d", c.Concurrency)
	}
	return nil
}
