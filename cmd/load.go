// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package cmd

import (
	"io"

	"github.com/featurebasedb/mnistload/ctl"
	"github.com/spf13/cobra"
)

var Loader *ctl.LoadCommand

// newLoadCommand runs the mnistload load subcommand for ingesting the dataset.
func newLoadCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	Loader = ctl.NewLoadCommand(stdin, stdout, stderr)
	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Load the MNIST dataset into a table.",
		Long: `Decodes a gzip IDX images file and the matching labels file and writes one
row per item to the table, creating it with the column family if needed.

Row keys are the key prefix followed by the 5-digit zero-padded item index
(train_00000, train_00001, ...). Each row holds two columns:

	FAMILY:image	little-endian tensor of the normalized pixels
	FAMILY:label	4-byte big-endian label

Rows are written in item order and flushed every --batch-size rows. The
counts of the two files must match, otherwise nothing is written.
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Loader.Run(cmd.Context())
		},
	}

	flags := loadCmd.Flags()
	ctl.SetSourceFlags(flags, &Loader.Source)
	ctl.SetLoaderFlags(flags, &Loader.Loader)
	ctl.SetStoreFlags(flags, &Loader.Store)
	ctl.SetLogFlags(flags, &Loader.Log)
	flags.StringVarP(&Loader.Stats, "stats", "", "", "host:port on which to serve prometheus metrics at /metrics.")
	flags.IntVarP(&Loader.Verify, "verify", "", 0, "Number of rows to read back and compare with the source after loading.")

	return loadCmd
}
