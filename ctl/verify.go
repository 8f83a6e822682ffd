// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package ctl

import (
	"context"
	"io"
	"strconv"

	"github.com/featurebasedb/mnistload"
	"github.com/featurebasedb/mnistload/errors"
	"github.com/featurebasedb/mnistload/loader"
	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"
)

// DefaultSample is the number of rows verify reads back by default.
const DefaultSample = 100

// VerifyCommand represents a command for checking a loaded table against
// the source files.
type VerifyCommand struct {
	Source Source
	Loader loader.Config
	Store  StoreConfig
	Log    LogConfig

	// Sample is the number of evenly spaced rows compared byte for byte.
	Sample int

	// Stats is the host:port metrics are served on. Empty disables it.
	Stats string

	Result loader.VerifyResult

	*mnistload.CmdIO
}

// NewVerifyCommand returns a new instance of VerifyCommand.
func NewVerifyCommand(stdin io.Reader, stdout, stderr io.Writer) *VerifyCommand {
	return &VerifyCommand{
		Source: NewSource(),
		Loader: loader.NewConfig(),
		Store:  NewStoreConfig(),
		Sample: DefaultSample,
		CmdIO:  mnistload.NewCmdIO(stdin, stdout, stderr),
	}
}

// Run compares the table with the source files and prints a summary. A
// difference is returned as an ErrDatasetMismatch after the summary.
func (cmd *VerifyCommand) Run(ctx context.Context) (err error) {
	closeLog, err := cmd.Log.setupLogging(ctx, cmd.CmdIO)
	if err != nil {
		return errors.Wrap(err, "setting up logging")
	}
	defer closeLog()
	log := cmd.Logger()

	if cmd.Sample < 0 {
		return errors.Newf(errors.ErrUncoded, "sample must not be negative, got %d", cmd.Sample)
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

	l, err := loader.NewLoader(store, cmd.Loader, loader.OptLoaderLogger(log.WithPrefix("[verify] ")))
	if err != nil {
		return errors.Wrap(err, "creating loader")
	}
	res, verr := l.Verify(ctx, images, labels, cmd.Sample)
	cmd.Result = res
	if verr != nil && !errors.Is(verr, errors.ErrDatasetMismatch) {
		return errors.Wrap(verr, "verifying")
	}
	cmd.writeSummary(res, verr)
	return errors.Wrap(verr, "verifying")
}

func (cmd *VerifyCommand) writeSummary(res loader.VerifyResult, verr error) {
	stored := "unknown"
	if res.Stored >= 0 {
		stored = strconv.Itoa(res.Stored)
	}
	outcome := "ok"
	if verr != nil {
		outcome = verr.Error()
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.Stdout)
	// Don't uppercase the header values.
	t.Style().Format.Header = text.FormatDefault
	t.AppendHeader(table.Row{"table", "expected", "stored", "sampled", "result"})
	t.AppendRow(table.Row{cmd.Loader.Table, res.Expected, stored, res.Sampled, outcome})
	t.Render()
}
