// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package inmem is a map-backed Store, used for dry runs and tests.
package inmem

import (
	"context"
	"sort"
	"sync"

	"github.com/featurebasedb/mnistload/errors"
	"github.com/featurebasedb/mnistload/loader"
)

var (
	_ loader.Store   = (*Store)(nil)
	_ loader.Getter  = (*Store)(nil)
	_ loader.Counter = (*Store)(nil)
)

type table struct {
	family string
	rows   map[string]map[string][]byte
}

type put struct {
	table  string
	key    string
	fields map[string][]byte
}

// Store keeps tables in memory. Rows become visible on Flush.
type Store struct {
	mu      sync.Mutex
	tables  map[string]*table
	pending []put
	closed  bool

	// PutErr and FlushErr, when set, are consulted before each BatchPut
	// and Flush; a non-nil return fails the call.
	PutErr   func(table, key string) error
	FlushErr func(keys []string) error

	// Flushed records the row keys of every successful Flush, in order.
	Flushed [][]string
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		tables: make(map[string]*table),
	}
}

func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tables[name]
	return ok, nil
}

// Family returns the column family a table was created with.
func (s *Store) Family(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[name]; ok {
		return t.family
	}
	return ""
}

func (s *Store) CreateTable(ctx context.Context, name, family string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[name]; ok {
		return errors.Newf(errors.ErrIOFailure, "table '%s' already exists", name)
	}
	s.tables[name] = &table{
		family: family,
		rows:   make(map[string]map[string][]byte),
	}
	return nil
}

func (s *Store) BatchPut(ctx context.Context, tbl string, rowKey []byte, fields map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New(errors.ErrIOFailure, "store is closed")
	}
	if s.PutErr != nil {
		if err := s.PutErr(tbl, string(rowKey)); err != nil {
			return err
		}
	}
	cp := make(map[string][]byte, len(fields))
	for k, v := range fields {
		cp[k] = append([]byte(nil), v...)
	}
	s.pending = append(s.pending, put{table: tbl, key: string(rowKey), fields: cp})
	return nil
}

func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New(errors.ErrIOFailure, "store is closed")
	}
	keys := make([]string, len(s.pending))
	for i, p := range s.pending {
		keys[i] = p.key
	}
	if s.FlushErr != nil {
		if err := s.FlushErr(keys); err != nil {
			return err
		}
	}
	// Nothing is applied unless every pending row has a table.
	for _, p := range s.pending {
		if _, ok := s.tables[p.table]; !ok {
			return errors.Newf(errors.ErrIOFailure, "table '%s' does not exist", p.table)
		}
	}
	for _, p := range s.pending {
		t := s.tables[p.table]
		row, ok := t.rows[p.key]
		if !ok {
			row = make(map[string][]byte, len(p.fields))
			t.rows[p.key] = row
		}
		for col, v := range p.fields {
			row[col] = v
		}
	}
	s.pending = s.pending[:0]
	s.Flushed = append(s.Flushed, keys)
	return nil
}

func (s *Store) Get(ctx context.Context, tbl string, rowKey []byte) (map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[tbl]
	if !ok {
		return nil, errors.Newf(errors.ErrIOFailure, "table '%s' does not exist", tbl)
	}
	row, ok := t.rows[string(rowKey)]
	if !ok {
		return nil, nil
	}
	out := make(map[string][]byte, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out, nil
}

func (s *Store) CountRows(ctx context.Context, tbl string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[tbl]
	if !ok {
		return 0, errors.Newf(errors.ErrIOFailure, "table '%s' does not exist", tbl)
	}
	return len(t.rows), nil
}

// Keys returns the row keys of a table in sorted order.
func (s *Store) Keys(tbl string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[tbl]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(t.rows))
	for k := range t.rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Pending returns the number of rows put but not yet flushed.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close discards pending rows. Later writes fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	s.closed = true
	return nil
}
