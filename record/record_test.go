// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package record_test

import (
	"testing"

	"github.com/featurebasedb/mnistload/record"
	"github.com/featurebasedb/mnistload/tensor"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	got := record.Normalize([]byte{255, 0, 128})
	require.Equal(t, 1.0, got[0])
	require.Equal(t, 0.0, got[1])
	require.Equal(t, 128/255.0, got[2])
}

func TestEncodeLabel(t *testing.T) {
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x07}, record.EncodeLabel(7))
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0xff}, record.EncodeLabel(255))

	v, err := record.DecodeLabel(record.EncodeLabel(9))
	require.NoError(t, err)
	require.Equal(t, int32(9), v)

	_, err = record.DecodeLabel([]byte{9})
	require.Error(t, err)
}

func TestRowKey(t *testing.T) {
	require.Equal(t, "train_00000", record.RowKey(record.DefaultKeyPrefix, 0))
	require.Equal(t, "train_00042", record.RowKey(record.DefaultKeyPrefix, 42))
	require.Equal(t, "train_99999", record.RowKey(record.DefaultKeyPrefix, 99999))
	// Past five digits the key just grows.
	require.Equal(t, "train_100000", record.RowKey(record.DefaultKeyPrefix, 100000))
	require.Equal(t, "test_00003", record.RowKey("test_", 3))
}

func TestBuild(t *testing.T) {
	b := record.Builder{Rows: 2, Cols: 3, KeyPrefix: record.DefaultKeyPrefix}
	r := b.Build(42, []byte{0, 51, 102, 153, 204, 255}, 3)

	require.Equal(t, "train_00042", r.Key)
	require.Equal(t, []byte{0, 0, 0, 3}, r.Label)

	img, err := tensor.Decode(r.Image)
	require.NoError(t, err)
	require.Equal(t, []int32{2, 3}, img.Shape)
	require.False(t, img.RequiresGrad)
	require.Equal(t, []float64{0, 0.2, 0.4, 0.6, 0.8, 1}, img.Values)
	require.Len(t, r.Image, 4+4*2+1+8*6)

	fields := r.Fields(record.DefaultFamily)
	require.Len(t, fields, 2)
	require.Equal(t, r.Image, fields["data:image"])
	require.Equal(t, r.Label, fields["data:label"])
}
