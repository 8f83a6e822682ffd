// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package boltdb is a Store backed by a local bbolt file. Each table is a
// top-level bucket holding one nested bucket per row, whose keys are the
// "family:qualifier" column names.
package boltdb

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/featurebasedb/mnistload/errors"
	"github.com/featurebasedb/mnistload/loader"
	bolt "go.etcd.io/bbolt"
)

const (
	ErrFmtBucketNotFound = "boltdb: bucket '%s' not found"
)

var (
	_ loader.Store   = (*DB)(nil)
	_ loader.Getter  = (*DB)(nil)
	_ loader.Counter = (*DB)(nil)
)

// tablesBucket maps table names to their column family.
var tablesBucket = []byte("_tables")

type pendingRow struct {
	table  string
	key    []byte
	fields map[string][]byte
}

// DB is a bbolt-backed Store.
type DB struct {
	db *bolt.DB

	// Datasource name, "file:" followed by a path.
	DSN string

	// Timeout for acquiring the file lock on Open.
	Timeout time.Duration

	filePath string
	pending  []pendingRow
}

// NewDB returns a new instance of DB associated with the given datasource name.
func NewDB(dsn string) *DB {
	return &DB{
		DSN:     dsn,
		Timeout: time.Second,
	}
}

// Open opens (creating if needed) the file named by a "file:" DSN.
func Open(dsn string) (*DB, error) {
	db := NewDB(dsn)
	return db, errors.Wrap(db.Open(), "opening")
}

// path returns the file path to the boltdb database file.
func (db *DB) path() (string, error) {
	if !strings.HasPrefix(db.DSN, "file:") {
		return "", errors.New(errors.ErrUncoded, "boltdb package only supports a DSN beginning with `file:`")
	}
	return db.DSN[5:], nil
}

// Open opens the database connection.
func (db *DB) Open() (err error) {
	path, err := db.path()
	if err != nil {
		return errors.Wrap(err, "getting path from DSN")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		return errors.WithCode(err, errors.ErrIOFailure, "mkdir "+filepath.Dir(path))
	} else if db.db, err = bolt.Open(path, 0666, &bolt.Options{Timeout: db.Timeout}); err != nil {
		return errors.WithCode(err, errors.ErrIOFailure, "open file "+path)
	}
	db.filePath = path

	return db.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(tablesBucket)
		return errors.Wrapf(err, "creating bucket: %s", tablesBucket)
	})
}

// Close discards unflushed rows and closes the database.
func (db *DB) Close() (err error) {
	db.pending = nil
	if db.db == nil {
		return nil
	}
	return db.db.Close()
}

// Path returns the path of the open database file.
func (db *DB) Path() string {
	return db.filePath
}

func (db *DB) TableExists(ctx context.Context, name string) (exists bool, err error) {
	err = db.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(tablesBucket).Get([]byte(name)) != nil
		return nil
	})
	return exists, err
}

// Family returns the column family of a table, or "" if it does not exist.
func (db *DB) Family(ctx context.Context, name string) (family string, err error) {
	err = db.db.View(func(tx *bolt.Tx) error {
		family = string(tx.Bucket(tablesBucket).Get([]byte(name)))
		return nil
	})
	return family, err
}

func (db *DB) CreateTable(ctx context.Context, name, family string) error {
	if name == "" || name == string(tablesBucket) {
		return errors.Newf(errors.ErrUncoded, "invalid table name '%s'", name)
	}
	return db.db.Update(func(tx *bolt.Tx) error {
		tables := tx.Bucket(tablesBucket)
		if tables.Get([]byte(name)) != nil {
			return errors.Newf(errors.ErrIOFailure, "table '%s' already exists", name)
		}
		if err := tables.Put([]byte(name), []byte(family)); err != nil {
			return errors.Wrap(err, "registering table")
		}
		_, err := tx.CreateBucket([]byte(name))
		return errors.Wrapf(err, "creating bucket: %s", name)
	})
}

// BatchPut buffers a row until the next Flush.
func (db *DB) BatchPut(ctx context.Context, table string, rowKey []byte, fields map[string][]byte) error {
	if db.db == nil {
		return errors.New(errors.ErrIOFailure, "database is not open")
	}
	db.pending = append(db.pending, pendingRow{
		table:  table,
		key:    append([]byte(nil), rowKey...),
		fields: fields,
	})
	return nil
}

// Flush writes all buffered rows in a single transaction. On error nothing
// from the batch is written and the buffer is kept.
func (db *DB) Flush(ctx context.Context) error {
	if len(db.pending) == 0 {
		return nil
	}
	err := db.db.Update(func(tx *bolt.Tx) error {
		for _, p := range db.pending {
			tbl := tx.Bucket([]byte(p.table))
			if tbl == nil {
				return errors.Newf(errors.ErrIOFailure, ErrFmtBucketNotFound, p.table)
			}
			row, err := tbl.CreateBucketIfNotExists(p.key)
			if err != nil {
				return errors.Wrapf(err, "creating row %s", p.key)
			}
			for col, v := range p.fields {
				if err := row.Put([]byte(col), v); err != nil {
					return errors.Wrapf(err, "putting %s/%s", p.key, col)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	db.pending = db.pending[:0]
	return nil
}

func (db *DB) Get(ctx context.Context, table string, rowKey []byte) (map[string][]byte, error) {
	var out map[string][]byte
	err := db.db.View(func(tx *bolt.Tx) error {
		tbl := tx.Bucket([]byte(table))
		if tbl == nil {
			return errors.Newf(errors.ErrIOFailure, ErrFmtBucketNotFound, table)
		}
		row := tbl.Bucket(rowKey)
		if row == nil {
			return nil
		}
		out = make(map[string][]byte)
		return row.ForEach(func(k, v []byte) error {
			// Values are only valid for the life of the transaction.
			out[string(k)] = append([]byte(nil), v...)
			return nil
		})
	})
	return out, err
}

func (db *DB) CountRows(ctx context.Context, table string) (n int, err error) {
	err = db.db.View(func(tx *bolt.Tx) error {
		tbl := tx.Bucket([]byte(table))
		if tbl == nil {
			return errors.Newf(errors.ErrIOFailure, ErrFmtBucketNotFound, table)
		}
		return tbl.ForEach(func(k, v []byte) error {
			if v == nil {
				n++
			}
			return nil
		})
	})
	return n, err
}
