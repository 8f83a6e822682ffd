// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package cmd

import (
	"io"

	"github.com/featurebasedb/mnistload/ctl"
	"github.com/spf13/cobra"
)

var Verifier *ctl.VerifyCommand

// newVerifyCommand runs the mnistload verify subcommand, which checks a
// loaded table against the source files.
func newVerifyCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	Verifier = ctl.NewVerifyCommand(stdin, stdout, stderr)
	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a loaded table against the source files.",
		Long: `Compares the number of rows in the table with the number of items in the
source files, then rebuilds --sample evenly spaced rows from the source and
compares them byte for byte with the stored columns.

The count check needs a store that can count rows (boltdb, inmem). Exits
non-zero on the first difference.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Verifier.Run(cmd.Context())
		},
	}

	flags := verifyCmd.Flags()
	ctl.SetSourceFlags(flags, &Verifier.Source)
	ctl.SetLoaderFlags(flags, &Verifier.Loader)
	ctl.SetStoreFlags(flags, &Verifier.Store)
	ctl.SetLogFlags(flags, &Verifier.Log)
	flags.IntVarP(&Verifier.Sample, "sample", "n", ctl.DefaultSample, "Number of rows to compare with the source.")
	flags.StringVarP(&Verifier.Stats, "stats", "", "", "host:port on which to serve prometheus metrics at /metrics.")

	return verifyCmd
}
