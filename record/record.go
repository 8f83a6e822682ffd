// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package record turns one MNIST (image, label) pair into the row that is
// written to the table.
package record

import (
	"encoding/binary"
	"fmt"

	"github.com/featurebasedb/mnistload/tensor"
)

const (
	DefaultKeyPrefix = "train_"
	DefaultFamily    = "data"

	ImageColumn = "image"
	LabelColumn = "label"

	// LabelSize is the width of the encoded label.
	LabelSize = 4

	// KeyDigits is the zero padding of the row index. Keys stop sorting in
	// index order past 99999 items.
	KeyDigits = 5
)

// Record is one row: its key and the encoded image and label cells.
type Record struct {
	Key   string
	Image []byte
	Label []byte
}

// Fields returns the cells of r keyed by "family:column".
func (r Record) Fields(family string) map[string][]byte {
	return map[string][]byte{
		Column(family, ImageColumn): r.Image,
		Column(family, LabelColumn): r.Label,
	}
}

// Column joins a column family and qualifier.
func Column(family, qualifier string) string {
	return family + ":" + qualifier
}

// Normalize maps pixel intensities 0..255 onto 0.0..1.0.
func Normalize(pixels []byte) []float64 {
	out := make([]float64, len(pixels))
	for i, p := range pixels {
		out[i] = float64(p) / 255.0
	}
	return out
}

// EncodeLabel widens label to a big-endian int32. The tensor cells are
// little-endian; the label cell is big-endian, and readers depend on both.
func EncodeLabel(label byte) []byte {
	b := make([]byte, LabelSize)
	binary.BigEndian.PutUint32(b, uint32(int32(label)))
	return b
}

// DecodeLabel is the inverse of EncodeLabel.
func DecodeLabel(b []byte) (int32, error) {
	if len(b) != LabelSize {
		return 0, fmt.Errorf("label cell is %d bytes, want %d", len(b), LabelSize)
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// RowKey formats the key of item i.
func RowKey(prefix string, i int) string {
	return fmt.Sprintf("%s%0*d", prefix, KeyDigits, i)
}

// Builder builds records for images of a fixed size.
type Builder struct {
	Rows      int
	Cols      int
	KeyPrefix string
}

// Build returns the record for item i. pixels must hold Rows*Cols bytes.
func (b Builder) Build(i int, pixels []byte, label byte) Record {
	shape := []int32{int32(b.Rows), int32(b.Cols)}
	values := Normalize(pixels)
	img := tensor.AppendEncode(make([]byte, 0, tensor.EncodedLen(shape, len(values))), tensor.Tensor{
		Shape:  shape,
		Values: values,
	})
	return Record{
		Key:   RowKey(b.KeyPrefix, i),
		Image: img,
		Label: EncodeLabel(label),
	}
}
