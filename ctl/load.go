// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package ctl

import (
	"context"
	"fmt"
	"io"

	"github.com/featurebasedb/mnistload"
	"github.com/featurebasedb/mnistload/errors"
	"github.com/featurebasedb/mnistload/loader"
)

// LoadCommand represents a command for loading the MNIST dataset into a
// table.
type LoadCommand struct {
	Source Source
	Loader loader.Config
	Store  StoreConfig
	Log    LogConfig

	// Stats is the host:port metrics are served on. Empty disables it.
	Stats string

	// Verify is the number of rows read back and compared with the source
	// after loading. Zero skips the check.
	Verify int

	// Result is filled in by a successful Run.
	Result loader.Stats

	*mnistload.CmdIO
}

// NewLoadCommand returns a new instance of LoadCommand.
func NewLoadCommand(stdin io.Reader, stdout, stderr io.Writer) *LoadCommand {
	return &LoadCommand{
		Source: NewSource(),
		Loader: loader.NewConfig(),
		Store:  NewStoreConfig(),
		CmdIO:  mnistload.NewCmdIO(stdin, stdout, stderr),
	}
}

// Run decodes the dataset and writes it to the store.
func (cmd *LoadCommand) Run(ctx context.Context) (err error) {
	closeLog, err := cmd.Log.setupLogging(ctx, cmd.CmdIO)
	if err != nil {
		return errors.Wrap(err, "setting up logging")
	}
	defer closeLog()
	log := cmd.Logger()

	if err := cmd.Loader.Validate(); err != nil {
		return errors.Wrap(err, "validating loader config")
	}
	if cmd.Verify < 0 {
		return errors.Newf(errors.ErrUncoded, "verify must not be negative, got %d", cmd.Verify)
	}
	if cmd.Stats != "" {
		srv, err := serveStats(cmd.Stats, log)
		if err != nil {
			return err
		}
		defer srv.Close()
	}

	images, labels, err := cmd.Source.Read(ctx, log)
	if err != nil {
		return err
	}

	store, err := cmd.Store.Open(log)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "closing store")
		}
	}()

	l, err := loader.NewLoader(store, cmd.Loader, loader.OptLoaderLogger(log.WithPrefix("[loader] ")))
	if err != nil {
		return errors.Wrap(err, "creating loader")
	}
	stats, err := l.Load(ctx, images, labels)
	if err != nil {
		log.Errorf("load failed after %d records: %v", l.Progress().Check(), err)
		return errors.Wrap(err, "loading")
	}
	cmd.Result = stats

	fmt.Fprintf(cmd.Stdout, "loaded %d records into %s in %d batches (%v)\n",
		stats.Records, cmd.Loader.Table, stats.Batches, stats.Duration)

	if cmd.Verify == 0 {
		return nil
	}
	res, err := l.Verify(ctx, images, labels, cmd.Verify)
	if err != nil {
		return errors.Wrap(err, "verifying")
	}
	fmt.Fprintf(cmd.Stdout, "verified %d of %d rows\n", res.Sampled, res.Expected)
	return nil
}
