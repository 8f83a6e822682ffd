// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package main

import (
	"testing"
	"time"

	"github.com/featurebasedb/mnistload/ctl"
	"github.com/jaffee/commandeer"
	"github.com/jaffee/commandeer/pflag"
	pflag13 "github.com/spf13/pflag"
)

func TestConsumerArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string

		Images      string
		Labels      string
		S3Region    string
		Table       string
		BatchSize   int
		Concurrency int
		CreateTable bool
		Store       string
		Host        string
		Port        int
		Timeout     time.Duration
		Stats       string
		Verify      int
		Verbose     bool
		LogPath     string
	}{
		{
			name: "empty",
			args: []string{
				"", // os.Args[0] can be ignored
			},
			Images:      "train-images-idx3-ubyte.gz",
			Labels:      "train-labels-idx1-ubyte.gz",
			Table:       "mnist_dataset",
			BatchSize:   1000,
			Concurrency: 1,
			CreateTable: true,
			Store:       "hbase",
			Host:        "localhost",
			Port:        8080,
			Timeout:     time.Minute,
			Stats:       "localhost:9093",
		},
		{
			name: "long",
			args: []string{
				"mnist-consumer",
				"--images", "s3://mnist/train-images-idx3-ubyte.gz",
				"--labels", "s3://mnist/train-labels-idx1-ubyte.gz",
				"--s3-region", "us-east-2",
				"--table", "digits",
				"--batch-size", "500",
				"--concurrency", "4",
				"--create-table=false",
				"--store", "boltdb",
				"--host", "hbase-rest",
				"--port", "8085",
				"--timeout", "30s",
				"--stats", "0.0.0.0:9093",
				"--verify", "100",
				"--verbose",
				"--log-path", "/tmp/mnist.log",
			},
			Images:      "s3://mnist/train-images-idx3-ubyte.gz",
			Labels:      "s3://mnist/train-labels-idx1-ubyte.gz",
			S3Region:    "us-east-2",
			Table:       "digits",
			BatchSize:   500,
			Concurrency: 4,
			CreateTable: false,
			Store:       "boltdb",
			Host:        "hbase-rest",
			Port:        8085,
			Timeout:     30 * time.Second,
			Stats:       "0.0.0.0:9093",
			Verify:      100,
			Verbose:     true,
			LogPath:     "/tmp/mnist.log",
		},
		{
			name: "env",
			args: []string{
				"mnist-consumer",
				"--batch-size", "250",
			},
			env: map[string]string{
				"MNIST_BATCH_SIZE": "100",
				"MNIST_STORE":      "inmem",
				"MNIST_HOST":       "hbase-rest",
			},
			Images:      "train-images-idx3-ubyte.gz",
			Labels:      "train-labels-idx1-ubyte.gz",
			Table:       "mnist_dataset",
			BatchSize:   250,
			Concurrency: 1,
			CreateTable: true,
			Store:       "inmem",
			Host:        "hbase-rest",
			Port:        8080,
			Timeout:     time.Minute,
			Stats:       "localhost:9093",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			fs := &pflag.FlagSet{FlagSet: pflag13.NewFlagSet(tc.args[0], pflag13.ExitOnError)}
			c := newConsumer()

			if err := commandeer.LoadArgsEnv(fs, c, tc.args[1:], "MNIST_", nil); err != nil {
				t.Fatal(err)
			}

			if tc.Images != c.Images {
				t.Fatalf("--images expected: %v got: %v", tc.Images, c.Images)
			}
			if tc.Labels != c.Labels {
				t.Fatalf("--labels expected: %v got: %v", tc.Labels, c.Labels)
			}
			if tc.S3Region != c.S3Region {
				t.Fatalf("--s3-region expected: %v got: %v", tc.S3Region, c.S3Region)
			}
			if tc.Table != c.Table {
				t.Fatalf("--table expected: %v got: %v", tc.Table, c.Table)
			}
			if tc.BatchSize != c.BatchSize {
				t.Fatalf("--batch-size expected: %v got: %v", tc.BatchSize, c.BatchSize)
			}
			if tc.Concurrency != c.Concurrency {
				t.Fatalf("--concurrency expected: %v got: %v", tc.Concurrency, c.Concurrency)
			}
			if tc.CreateTable != c.CreateTable {
				t.Fatalf("--create-table expected: %v got: %v", tc.CreateTable, c.CreateTable)
			}
			if tc.Store != c.Store {
				t.Fatalf("--store expected: %v got: %v", tc.Store, c.Store)
			}
			if tc.Host != c.Host {
				t.Fatalf("--host expected: %v got: %v", tc.Host, c.Host)
			}
			if tc.Port != c.Port {
				t.Fatalf("--port expected: %v got: %v", tc.Port, c.Port)
			}
			if tc.Timeout != c.Timeout {
				t.Fatalf("--timeout expected: %v got: %v", tc.Timeout, c.Timeout)
			}
			if tc.Stats != c.Stats {
				t.Fatalf("--stats expected: %v got: %v", tc.Stats, c.Stats)
			}
			if tc.Verify != c.Verify {
				t.Fatalf("--verify expected: %v got: %v", tc.Verify, c.Verify)
			}
			if tc.Verbose != c.Verbose {
				t.Fatalf("--verbose expected: %v got: %v", tc.Verbose, c.Verbose)
			}
			if tc.LogPath != c.LogPath {
				t.Fatalf("--log-path expected: %v got: %v", tc.LogPath, c.LogPath)
			}

			lc := c.loadCommand()
			if lc.Loader.BatchSize != c.BatchSize || lc.Store.HBase.Host != c.Host || lc.Source.S3Region != c.S3Region {
				t.Fatalf("LoadCommand does not match consumer: %+v", lc)
			}
			if c.Store == ctl.StoreBoltDB && lc.Store.BoltPath != ctl.DefaultBoltPath {
				t.Fatalf("default bolt path lost: %v", lc.Store.BoltPath)
			}
		})
	}
}
