// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package ctl

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/featurebasedb/mnistload"
	"github.com/featurebasedb/mnistload/errors"
	"github.com/featurebasedb/mnistload/idx"
	"github.com/featurebasedb/mnistload/loader"
	"github.com/featurebasedb/mnistload/logger"
	"github.com/featurebasedb/mnistload/monitor"
	"github.com/featurebasedb/mnistload/store/boltdb"
	"github.com/featurebasedb/mnistload/store/hbase"
	"github.com/featurebasedb/mnistload/store/inmem"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
)

// Store types.
const (
	StoreHBase  = "hbase"
	StoreBoltDB = "boltdb"
	StoreInmem  = "inmem"
)

// Input defaults.
const (
	DefaultImages   = "train-images-idx3-ubyte.gz"
	DefaultLabels   = "train-labels-idx1-ubyte.gz"
	DefaultBoltPath = "mnist.db"
)

// StoreConfig selects the store records are written to and read from.
type StoreConfig struct {
	Type     string
	BoltPath string
	HBase    hbase.Config
}

// NewStoreConfig returns a StoreConfig with default values.
func NewStoreConfig() StoreConfig {
	return StoreConfig{
		Type:     StoreHBase,
		BoltPath: DefaultBoltPath,
		HBase:    hbase.NewConfig(),
	}
}

// Open returns the configured store. An inmem store forgets everything
// once the command exits, which makes it a dry run.
func (c StoreConfig) Open(log logger.Logger) (loader.Store, error) {
	switch c.Type {
	case StoreHBase:
		return hbase.NewClient(c.HBase, hbase.OptClientLogger(log.WithPrefix("[hbase] "))), nil
	case StoreBoltDB:
		if c.BoltPath == "" {
			return nil, errors.New(errors.ErrUncoded, "bolt-path required for boltdb store")
		}
		db, err := boltdb.Open("file:" + c.BoltPath)
		if err != nil {
			return nil, errors.Wrap(err, "opening boltdb store")
		}
		return db, nil
	case StoreInmem:
		return inmem.NewStore(), nil
	}
	return nil, errors.Newf(errors.ErrUncoded, "unknown store type '%s' (want %s, %s or %s)", c.Type, StoreHBase, StoreBoltDB, StoreInmem)
}

// Source names the two IDX files of a dataset.
type Source struct {
	Images   string
	Labels   string
	S3Region string
}

// NewSource returns a Source naming the MNIST training files in the
// working directory.
func NewSource() Source {
	return Source{
		Images: DefaultImages,
		Labels: DefaultLabels,
	}
}

// Read decodes both files and checks that they belong together.
func (s Source) Read(ctx context.Context, log logger.Logger) (images, labels *idx.Dataset, err error) {
	if s.Images == "" || s.Labels == "" {
		return nil, nil, errors.New(errors.ErrUncoded, "both an images and a labels file are required")
	}
	var s3client s3iface.S3API
	if idx.IsS3(s.Images) || idx.IsS3(s.Labels) {
		if s3client, err = newS3Client(s.S3Region); err != nil {
			return nil, nil, err
		}
	}

	log.Infof("reading images from %s", s.Images)
	if images, err = idx.ReadFile(ctx, s.Images, s3client); err != nil {
		return nil, nil, errors.Wrap(err, "reading images")
	}
	log.Infof("reading labels from %s", s.Labels)
	if labels, err = idx.ReadFile(ctx, s.Labels, s3client); err != nil {
		return nil, nil, errors.Wrap(err, "reading labels")
	}
	if err := idx.CheckPair(images, labels); err != nil {
		return nil, nil, err
	}
	log.Infof("read %d images of %dx%d pixels with labels", images.Count(), images.Images.Rows, images.Images.Cols)
	return images, labels, nil
}

func newS3Client(region string) (s3iface.S3API, error) {
	config := &aws.Config{}
	if region != "" {
		config.Region = aws.String(region)
		// else, NewSession will use the default region.
	}
	sess, err := session.NewSession(config)
	if err != nil {
		return nil, errors.Wrap(err, "creating S3 session")
	}
	return s3.New(sess), nil
}

// LogConfig holds the logging and monitoring options shared by commands.
type LogConfig struct {
	Verbose   bool
	LogPath   string
	SentryDSN string
}

// setupLogging installs the logger described by c on cmdio. With a log path
// the file is reopened on SIGHUP until ctx is done. The returned function
// closes the log file.
func (c LogConfig) setupLogging(ctx context.Context, cmdio *mnistload.CmdIO) (func() error, error) {
	var out io.Writer = cmdio.Stderr
	var f *logger.FileWriter
	if c.LogPath != "" {
		var err error
		if f, err = logger.NewFileWriter(c.LogPath); err != nil {
			return nil, errors.WithCode(err, errors.ErrIOFailure, "opening log file")
		}
		out = f
	}
	if c.Verbose {
		cmdio.SetLogger(logger.NewVerboseLogger(out))
	} else {
		cmdio.SetLogger(logger.NewStandardLogger(out))
	}

	if err := monitor.InitErrorMonitor(c.SentryDSN, mnistload.Version); err != nil {
		cmdio.Logger().Warnf("error monitor disabled: %v", err)
	}

	if f == nil {
		return func() error { return nil }, nil
	}
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sighup:
				if err := f.Reopen(); err != nil {
					cmdio.Logger().Errorf("reopen: %s", err.Error())
				}
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()
	return func() error {
		signal.Stop(sighup)
		close(done)
		return f.Close()
	}, nil
}

// serveStats serves the prometheus metrics at /metrics on addr until the
// returned server is closed.
func serveStats(addr string, log logger.Logger) (*http.Server, error) {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listening for stats on %s", addr)
	}
	srv := &http.Server{Handler: router}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Errorf("serving stats: %v", err)
		}
	}()
	log.Infof("serving metrics at http://%s/metrics", ln.Addr())
	return srv, nil
}

// SetSourceFlags creates the flags naming the input files.
func SetSourceFlags(flags *pflag.FlagSet, s *Source) {
	flags.StringVarP(&s.Images, "images", "", s.Images, "Gzip IDX images file, a local path or s3://bucket/key.")
	flags.StringVarP(&s.Labels, "labels", "", s.Labels, "Gzip IDX labels file, a local path or s3://bucket/key.")
	flags.StringVarP(&s.S3Region, "s3-region", "", s.S3Region, "AWS region for s3:// inputs. Defaults to the session's region.")
}

// SetLoaderFlags creates the flags naming the table and batch layout.
func SetLoaderFlags(flags *pflag.FlagSet, c *loader.Config) {
	flags.StringVarP(&c.Table, "table", "t", c.Table, "Table to write to.")
	flags.StringVarP(&c.Family, "family", "", c.Family, "Column family holding the image and label columns.")
	flags.StringVarP(&c.KeyPrefix, "key-prefix", "", c.KeyPrefix, "Prefix of the zero-padded row keys.")
	flags.IntVarP(&c.BatchSize, "batch-size", "b", c.BatchSize, "Number of rows per flush.")
	flags.IntVarP(&c.Concurrency, "concurrency", "", c.Concurrency, "Number of goroutines building the rows of a batch.")
	flags.BoolVarP(&c.CreateTable, "create-table", "", c.CreateTable, "Create the table if it does not exist.")
}

// SetStoreFlags creates the flags selecting the store.
func SetStoreFlags(flags *pflag.FlagSet, c *StoreConfig) {
	flags.StringVarP(&c.Type, "store", "s", c.Type, "Store to use: hbase, boltdb or inmem (dry run).")
	flags.StringVarP(&c.BoltPath, "bolt-path", "", c.BoltPath, "Database file of the boltdb store.")
	flags.StringVarP(&c.HBase.Host, "host", "", c.HBase.Host, "Host of the HBase REST gateway.")
	flags.IntVarP(&c.HBase.Port, "port", "p", c.HBase.Port, "Port of the HBase REST gateway.")
	flags.IntVarP(&c.HBase.RetryMax, "retry-max", "", c.HBase.RetryMax, "Retries of a failed HBase request.")
	flags.DurationVarP(&c.HBase.Timeout, "timeout", "", c.HBase.Timeout, "Timeout of a single HBase request.")
}

// SetLogFlags creates the logging and error monitor flags.
func SetLogFlags(flags *pflag.FlagSet, c *LogConfig) {
	flags.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "Enable verbose logging.")
	flags.StringVarP(&c.LogPath, "log-path", "", c.LogPath, "Log file to write to. Empty means stderr.")
	flags.StringVarP(&c.SentryDSN, "sentry-dsn", "", c.SentryDSN, "Sentry DSN errors are reported to. Empty disables reporting.")
}
