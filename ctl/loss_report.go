// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package ctl

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/featurebasedb/mnistload"
	"github.com/featurebasedb/mnistload/errors"
	"github.com/featurebasedb/mnistload/losslog"
	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"
)

// DefaultLossLog is the training log read by loss-report by default.
const DefaultLossLog = "output.log"

// LossReportCommand represents a command for summarizing the per-partition
// batch losses found in a training log.
type LossReportCommand struct {
	File     string
	Encoding string

	*mnistload.CmdIO
}

// NewLossReportCommand returns a new instance of LossReportCommand.
func NewLossReportCommand(stdin io.Reader, stdout, stderr io.Writer) *LossReportCommand {
	return &LossReportCommand{
		File:     DefaultLossLog,
		Encoding: losslog.EncodingUTF16,
		CmdIO:    mnistload.NewCmdIO(stdin, stdout, stderr),
	}
}

// Run parses the log and prints one table row per partition.
func (cmd *LossReportCommand) Run(_ context.Context) error {
	f, err := os.Open(cmd.File)
	if err != nil {
		return errors.WithCode(err, errors.ErrIOFailure, "opening log")
	}
	defer f.Close()

	series, err := losslog.Parse(f, cmd.Encoding)
	if err != nil {
		return errors.Wrapf(err, "parsing %s", cmd.File)
	}
	if len(series) == 0 {
		fmt.Fprintf(cmd.Stderr, "no loss lines found in %s\n", cmd.File)
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.Stdout)
	t.Style().Format.Header = text.FormatDefault
	t.AppendHeader(table.Row{"partition", "steps", "first", "last", "min", "mean"})
	for _, s := range series.Summarize() {
		t.AppendRow(table.Row{
			s.Partition,
			s.Steps,
			fmt.Sprintf("%.4f", s.First),
			fmt.Sprintf("%.4f", s.Last),
			fmt.Sprintf("%.4f", s.Min),
			fmt.Sprintf("%.4f", s.Mean),
		})
	}
	t.Render()
	return nil
}
