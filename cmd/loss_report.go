// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package cmd

import (
	"io"

	"github.com/featurebasedb/mnistload/ctl"
	"github.com/featurebasedb/mnistload/losslog"
	"github.com/spf13/cobra"
)

var LossReporter *ctl.LossReportCommand

func newLossReportCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	LossReporter = ctl.NewLossReportCommand(stdin, stdout, stderr)
	reportCmd := &cobra.Command{
		Use:   "loss-report",
		Short: "Summarize the per-partition losses of a training log.",
		Long: `Scans a training log for lines of the form

	Partition N: avg batch loss = L

and prints, per partition, the number of steps and the first, last,
lowest and mean loss.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return LossReporter.Run(cmd.Context())
		},
	}

	flags := reportCmd.Flags()
	flags.StringVarP(&LossReporter.File, "file", "f", ctl.DefaultLossLog, "Training log to read.")
	flags.StringVarP(&LossReporter.Encoding, "encoding", "", losslog.EncodingUTF16, "Encoding of the log: utf-8 or utf-16.")

	return reportCmd
}
