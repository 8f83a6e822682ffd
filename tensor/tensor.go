// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package tensor implements the binary tensor layout shared with the
// training cluster's decoder. All fields are little-endian:
//
//	int32           number of dimensions N
//	N x int32       dimension sizes
//	byte            requiresGrad (0 or 1)
//	P x float64     values in row-major order, P = product of dimensions
//
// The layout is fixed by the consumer. Nothing here may reorder, narrow or
// pad a field.
package tensor

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

const (
	dimCountSize = 4
	dimSize      = 4
	flagSize     = 1
	valueSize    = 8
)

// Tensor is a shaped array of float64 values. Callers must keep
// len(Values) equal to the product of Shape; Encode does not check it.
type Tensor struct {
	Shape        []int32
	RequiresGrad bool
	Values       []float64
}

// NumElements returns the product of shape.
func NumElements(shape []int32) int {
	n := 1
	for _, d := range shape {
		n *= int(d)
	}
	return n
}

// EncodedLen returns the size of a tensor with the given shape and values
// once encoded.
func EncodedLen(shape []int32, values int) int {
	return dimCountSize + dimSize*len(shape) + flagSize + valueSize*values
}

// Encode returns the wire form of t.
func Encode(t Tensor) []byte {
	return AppendEncode(make([]byte, 0, EncodedLen(t.Shape, len(t.Values))), t)
}

// AppendEncode appends the wire form of t to dst and returns the extended
// slice.
func AppendEncode(dst []byte, t Tensor) []byte {
	var scratch [8]byte

	binary.LittleEndian.PutUint32(scratch[:4], uint32(int32(len(t.Shape))))
	dst = append(dst, scratch[:4]...)
	for _, d := range t.Shape {
		binary.LittleEndian.PutUint32(scratch[:4], uint32(d))
		dst = append(dst, scratch[:4]...)
	}

	if t.RequiresGrad {
		dst = append(dst, 1)
	} else {
		dst = append(dst, 0)
	}

	for _, v := range t.Values {
		binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(v))
		dst = append(dst, scratch[:]...)
	}
	return dst
}

// Decode parses the wire form produced by Encode. The value count is taken
// from the shape; the buffer must hold exactly that many values.
func Decode(b []byte) (Tensor, error) {
	var t Tensor
	if len(b) < dimCountSize {
		return t, errors.Errorf("tensor too short for dimension count: %d bytes", len(b))
	}
	n := int32(binary.LittleEndian.Uint32(b))
	if n < 0 {
		return t, errors.Errorf("negative dimension count %d", n)
	}
	off := dimCountSize
	if len(b) < off+dimSize*int(n)+flagSize {
		return t, errors.Errorf("tensor too short for %d dimensions: %d bytes", n, len(b))
	}

	t.Shape = make([]int32, n)
	for i := range t.Shape {
		d := int32(binary.LittleEndian.Uint32(b[off:]))
		if d < 0 {
			return Tensor{}, errors.Errorf("negative size %d for dimension %d", d, i)
		}
		t.Shape[i] = d
		off += dimSize
	}

	switch b[off] {
	case 0:
	case 1:
		t.RequiresGrad = true
	default:
		return Tensor{}, errors.Errorf("invalid requiresGrad byte %#x", b[off])
	}
	off += flagSize

	rest := len(b) - off
	if rest%valueSize != 0 {
		return Tensor{}, errors.Errorf("value section is %d bytes, not a multiple of %d", rest, valueSize)
	}
	count := rest / valueSize
	if !valueCountOK(t.Shape, count) {
		return Tensor{}, errors.Errorf("shape %v wants %d values, found %d", t.Shape, NumElements(t.Shape), count)
	}

	t.Values = make([]float64, count)
	for i := range t.Values {
		t.Values[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[off:]))
		off += valueSize
	}
	return t, nil
}

// valueCountOK reports whether count values fit shape. An empty shape may
// carry no value or a single scalar.
func valueCountOK(shape []int32, count int) bool {
	if len(shape) == 0 {
		return count <= 1
	}
	return count == NumElements(shape)
}
