// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/featurebasedb/mnistload/ctl"
	"github.com/featurebasedb/mnistload/logger"
	"github.com/jaffee/commandeer/pflag"
)

func main() {
	c := newConsumer()
	if err := pflag.LoadEnv(c, "MNIST_", nil); err != nil {
		log.Fatal(err)
	}
	if c.DryRun {
		log.Printf("%+v\n", c)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := c.Run(ctx)
	stop()
	if err != nil {
		logger.NewStandardLogger(os.Stderr).Errorf("Error running command: %v", err)
		os.Exit(1)
	}
}

// consumer loads the MNIST dataset with settings taken from flags or
// MNIST_ environment variables, for running as a container job.
type consumer struct {
	DryRun bool `short:"" help:"Dry run - just flag parsing."`

	Images   string `short:"" help:"Gzip IDX images file, a local path or s3://bucket/key."`
	Labels   string `short:"" help:"Gzip IDX labels file, a local path or s3://bucket/key."`
	S3Region string `flag:"s3-region" short:"" help:"AWS region for s3:// inputs."`

	Table       string `short:"" help:"Table to write to."`
	Family      string `short:"" help:"Column family holding the image and label columns."`
	KeyPrefix   string `short:"" help:"Prefix of the zero-padded row keys."`
	BatchSize   int    `short:"" help:"Number of rows per flush."`
	Concurrency int    `short:"" help:"Number of goroutines building the rows of a batch."`
	CreateTable bool   `short:"" help:"Create the table if it does not exist."`

	Store    string        `short:"" help:"Store to use: hbase, boltdb or inmem."`
	BoltPath string        `short:"" help:"Database file of the boltdb store."`
	Host     string        `short:"" help:"Host of the HBase REST gateway."`
	Port     int           `short:"" help:"Port of the HBase REST gateway."`
	RetryMax int           `short:"" help:"Retries of a failed HBase request."`
	Timeout  time.Duration `short:"" help:"Timeout of a single HBase request."`

	Verify    int    `short:"" help:"Number of rows to read back and compare after loading."`
	Stats     string `short:"" help:"host:port on which to serve prometheus metrics."`
	Verbose   bool   `short:"" help:"Enable verbose logging."`
	LogPath   string `short:"" help:"Log file to write to."`
	SentryDSN string `flag:"sentry-dsn" short:"" help:"Sentry DSN errors are reported to."`
}

func newConsumer() *consumer {
	lc := ctl.NewLoadCommand(os.Stdin, os.Stdout, os.Stderr)
	return &consumer{
		Images:      lc.Source.Images,
		Labels:      lc.Source.Labels,
		Table:       lc.Loader.Table,
		Family:      lc.Loader.Family,
		KeyPrefix:   lc.Loader.KeyPrefix,
		BatchSize:   lc.Loader.BatchSize,
		Concurrency: lc.Loader.Concurrency,
		CreateTable: lc.Loader.CreateTable,
		Store:       lc.Store.Type,
		BoltPath:    lc.Store.BoltPath,
		Host:        lc.Store.HBase.Host,
		Port:        lc.Store.HBase.Port,
		RetryMax:    lc.Store.HBase.RetryMax,
		Timeout:     lc.Store.HBase.Timeout,
		Stats:       "localhost:9093",
	}
}

// loadCommand returns the LoadCommand described by c.
func (c *consumer) loadCommand() *ctl.LoadCommand {
	lc := ctl.NewLoadCommand(os.Stdin, os.Stdout, os.Stderr)
	lc.Source.Images = c.Images
	lc.Source.Labels = c.Labels
	lc.Source.S3Region = c.S3Region
	lc.Loader.Table = c.Table
	lc.Loader.Family = c.Family
	lc.Loader.KeyPrefix = c.KeyPrefix
	lc.Loader.BatchSize = c.BatchSize
	lc.Loader.Concurrency = c.Concurrency
	lc.Loader.CreateTable = c.CreateTable
	lc.Store.Type = c.Store
	lc.Store.BoltPath = c.BoltPath
	lc.Store.HBase.Host = c.Host
	lc.Store.HBase.Port = c.Port
	lc.Store.HBase.RetryMax = c.RetryMax
	lc.Store.HBase.Timeout = c.Timeout
	lc.Log.Verbose = c.Verbose
	lc.Log.LogPath = c.LogPath
	lc.Log.SentryDSN = c.SentryDSN
	lc.Stats = c.Stats
	lc.Verify = c.Verify
	return lc
}

func (c *consumer) Run(ctx context.Context) error {
	return c.loadCommand().Run(ctx)
}
