// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package loader

import "context"

// Store is the column store the loader writes to. BatchPut buffers one row
// and Flush sends everything buffered since the last Flush as one write.
// Any error is fatal to the load; retrying is up to the implementation.
type Store interface {
	TableExists(ctx context.Context, name string) (bool, error)
	CreateTable(ctx context.Context, name, family string) error
	BatchPut(ctx context.Context, table string, rowKey []byte, fields map[string][]byte) error
	Flush(ctx context.Context) error
	Close() error
}

// Getter is implemented by stores which can read a row back. Get returns a
// nil map and no error if the row does not exist.
type Getter interface {
	Get(ctx context.Context, table string, rowKey []byte) (map[string][]byte, error)
}

// Counter is implemented by stores which can count the rows of a table.
type Counter interface {
	CountRows(ctx context.Context, table string) (int, error)
}
