// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package inmem_test

import (
	"context"
	"testing"

	"github.com/featurebasedb/mnistload/errors"
	"github.com/featurebasedb/mnistload/store/inmem"
	"github.com/stretchr/testify/require"
)

func TestStore_FlushMissingTable(t *testing.T) {
	ctx := context.Background()
	s := inmem.NewStore()
	require.NoError(t, s.CreateTable(ctx, "a", "data"))

	require.NoError(t, s.BatchPut(ctx, "a", []byte("train_00000"), map[string][]byte{"data:label": {0, 0, 0, 1}}))
	require.NoError(t, s.BatchPut(ctx, "b", []byte("train_00001"), map[string][]byte{"data:label": {0, 0, 0, 2}}))

	err := s.Flush(ctx)
	require.True(t, errors.Is(err, errors.ErrIOFailure), "got %v", err)
	require.Contains(t, err.Error(), "table 'b' does not exist")
	require.Empty(t, s.Keys("a"))
	require.Equal(t, 2, s.Pending())
	require.Empty(t, s.Flushed)

	require.NoError(t, s.CreateTable(ctx, "b", "data"))
	require.NoError(t, s.Flush(ctx))
	require.Equal(t, []string{"train_00000"}, s.Keys("a"))
	require.Equal(t, []string{"train_00001"}, s.Keys("b"))
	require.Equal(t, [][]string{{"train_00000", "train_00001"}}, s.Flushed)
	require.Zero(t, s.Pending())

	got, err := s.Get(ctx, "b", []byte("train_00001"))
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 2}, got["data:label"])
}

func TestStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := inmem.NewStore()
	require.NoError(t, s.CreateTable(ctx, "a", "data"))
	require.NoError(t, s.BatchPut(ctx, "a", []byte("k"), nil))
	require.NoError(t, s.Close())

	require.Zero(t, s.Pending())
	require.True(t, errors.Is(s.Flush(ctx), errors.ErrIOFailure))
	require.True(t, errors.Is(s.BatchPut(ctx, "a", []byte("k"), nil), errors.ErrIOFailure))
}
