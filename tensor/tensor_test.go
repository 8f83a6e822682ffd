// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package tensor_test

import (
	"encoding/binary"
	"fmt"
	"math"
	"testing"

	"github.com/featurebasedb/mnistload/tensor"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// referenceDecode reads the layout field by field, independently of
// tensor.Decode, the way the training side does.
func referenceDecode(b []byte) (shape []int32, grad bool, values []float64) {
	n := int(int32(binary.LittleEndian.Uint32(b[0:4])))
	off := 4
	for i := 0; i < n; i++ {
		shape = append(shape, int32(binary.LittleEndian.Uint32(b[off:off+4])))
		off += 4
	}
	grad = b[off] == 1
	off++
	for ; off < len(b); off += 8 {
		values = append(values, math.Float64frombits(binary.LittleEndian.Uint64(b[off:off+8])))
	}
	return shape, grad, values
}

func TestRoundTrip(t *testing.T) {
	in := tensor.Tensor{
		Shape:  []int32{2, 2},
		Values: []float64{0.0, 0.25, 0.5, 1.0},
	}
	b := tensor.Encode(in)

	shape, grad, values := referenceDecode(b)
	require.Equal(t, []int32{2, 2}, shape)
	require.False(t, grad)
	require.Equal(t, []float64{0.0, 0.25, 0.5, 1.0}, values)

	out, err := tensor.Decode(b)
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatal(diff)
	}
}

func TestExactBytes(t *testing.T) {
	b := tensor.Encode(tensor.Tensor{
		Shape:        []int32{1, 2},
		RequiresGrad: true,
		Values:       []float64{1.0, -2.5},
	})
	exp := []byte{
		0x02, 0x00, 0x00, 0x00, // N
		0x01, 0x00, 0x00, 0x00, // dim 0
		0x02, 0x00, 0x00, 0x00, // dim 1
		0x01,                                           // requiresGrad
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xf0, 0x3f, // 1.0
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x04, 0xc0, // -2.5
	}
	require.Equal(t, exp, b)
}

func TestEmptyShape(t *testing.T) {
	b := tensor.Encode(tensor.Tensor{})
	require.Equal(t, []byte{0, 0, 0, 0, 0}, b)

	out, err := tensor.Decode(b)
	require.NoError(t, err)
	require.Empty(t, out.Shape)
	require.Empty(t, out.Values)
}

func TestEncodedLen(t *testing.T) {
	shapes := [][]int32{
		{1},
		{3},
		{2, 2},
		{28, 28},
		{2, 3, 4},
		{1, 1, 1, 1, 5},
	}
	for _, shape := range shapes {
		t.Run(fmt.Sprint(shape), func(t *testing.T) {
			n := tensor.NumElements(shape)
			values := make([]float64, n)
			for i := range values {
				values[i] = float64(i) / 7
			}
			b := tensor.Encode(tensor.Tensor{Shape: shape, Values: values})
			require.Len(t, b, 4+4*len(shape)+1+8*n)
			require.Equal(t, len(b), tensor.EncodedLen(shape, n))
		})
	}
}

func TestNoNarrowing(t *testing.T) {
	values := []float64{math.MaxFloat64, math.SmallestNonzeroFloat64, 1 << 53, -0.1}
	b := tensor.Encode(tensor.Tensor{Shape: []int32{4}, Values: values})
	_, _, got := referenceDecode(b)
	require.Equal(t, values, got)
}

func TestAppendEncode(t *testing.T) {
	prefix := []byte("row:")
	tt := tensor.Tensor{Shape: []int32{1}, Values: []float64{0.5}}
	b := tensor.AppendEncode(prefix, tt)
	require.Equal(t, "row:", string(b[:4]))
	require.Equal(t, tensor.Encode(tt), b[4:])
}

func TestDecodeErrors(t *testing.T) {
	good := tensor.Encode(tensor.Tensor{Shape: []int32{2}, Values: []float64{1, 2}})
	negDims := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(negDims, uint32(0xffffffff))
	badFlag := append([]byte(nil), good...)
	badFlag[8] = 7

	tests := map[string][]byte{
		"empty":         {},
		"short-dims":    good[:6],
		"neg-dim-count": negDims,
		"bad-flag":      badFlag,
		"partial-value": good[:len(good)-3],
		"missing-value": good[:len(good)-8],
		"trailing":      append(append([]byte(nil), good...), make([]byte, 8)...),
	}
	for name, b := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tensor.Decode(b)
			require.Error(t, err)
		})
	}
}
