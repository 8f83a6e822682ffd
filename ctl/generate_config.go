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
	"github.com/pelletier/go-toml"
)

// FileConfig is the config file form of the load and verify flags. Its keys
// are the flag names, so the output of generate-config can be passed back
// with --config.
type FileConfig struct {
	Images   string `toml:"images"`
	Labels   string `toml:"labels"`
	S3Region string `toml:"s3-region"`

	Table       string `toml:"table"`
	Family      string `toml:"family"`
	KeyPrefix   string `toml:"key-prefix"`
	BatchSize   int    `toml:"batch-size"`
	Concurrency int    `toml:"concurrency"`
	CreateTable bool   `toml:"create-table"`

	Store    string `toml:"store"`
	BoltPath string `toml:"bolt-path"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	RetryMax int    `toml:"retry-max"`
	Timeout  string `toml:"timeout"`

	Stats     string `toml:"stats"`
	Verbose   bool   `toml:"verbose"`
	LogPath   string `toml:"log-path"`
	SentryDSN string `toml:"sentry-dsn"`
}

// NewFileConfig returns the FileConfig of a default LoadCommand.
func NewFileConfig() FileConfig {
	src, lc, sc := NewSource(), loader.NewConfig(), NewStoreConfig()
	return FileConfig{
		Images:      src.Images,
		Labels:      src.Labels,
		Table:       lc.Table,
		Family:      lc.Family,
		KeyPrefix:   lc.KeyPrefix,
		BatchSize:   lc.BatchSize,
		Concurrency: lc.Concurrency,
		CreateTable: lc.CreateTable,
		Store:       sc.Type,
		BoltPath:    sc.BoltPath,
		Host:        sc.HBase.Host,
		Port:        sc.HBase.Port,
		RetryMax:    sc.HBase.RetryMax,
		Timeout:     sc.HBase.Timeout.String(),
	}
}

// GenerateConfigCommand represents a command for printing a default config.
type GenerateConfigCommand struct {
	*mnistload.CmdIO
}

// NewGenerateConfigCommand returns a new instance of GenerateConfigCommand.
func NewGenerateConfigCommand(stdin io.Reader, stdout, stderr io.Writer) *GenerateConfigCommand {
	return &GenerateConfigCommand{
		CmdIO: mnistload.NewCmdIO(stdin, stdout, stderr),
	}
}

// Run prints out the default config.
func (cmd *GenerateConfigCommand) Run(_ context.Context) error {
	ret, err := toml.Marshal(NewFileConfig())
	if err != nil {
		return errors.Wrap(err, "marshalling default config")
	}
	fmt.Fprintf(cmd.Stdout, "%s\n", ret)
	return nil
}
