// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package idx decodes the gzip-compressed IDX files that MNIST is distributed
// as. An IDX file starts with a big-endian magic number and item count; image
// files follow that with row and column counts, and the rest of the file is
// one unsigned byte per pixel (or per label).
package idx

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/featurebasedb/mnistload/errors"
)

const (
	MagicLabels = 2049
	MagicImages = 2051
)

// MaxBodySize is the largest body a header may promise. MNIST's training
// images take about 47MB.
const MaxBodySize = math.MaxInt32

// growHint bounds the memory reserved before the body has been read.
const growHint = 64 << 20

// Kind distinguishes image sets from label sets.
type Kind int

const (
	KindImages Kind = iota + 1
	KindLabels
)

func (k Kind) String() string {
	switch k {
	case KindImages:
		return "images"
	case KindLabels:
		return "labels"
	}
	return "unknown"
}

// Images is a decoded image set. Pixels holds Count*Rows*Cols bytes, image by
// image, each in row-major order.
type Images struct {
	Count  int
	Rows   int
	Cols   int
	Pixels []byte
}

// Len returns the number of images.
func (im *Images) Len() int { return im.Count }

// Size returns the number of pixels in one image.
func (im *Images) Size() int { return im.Rows * im.Cols }

// Image returns the pixels of image i. The returned slice aliases Pixels.
func (im *Images) Image(i int) []byte {
	n := im.Size()
	return im.Pixels[i*n : (i+1)*n : (i+1)*n]
}

// Labels is a decoded label set, one byte per item.
type Labels struct {
	Count  int
	Labels []byte
}

// Len returns the number of labels.
func (l *Labels) Len() int { return l.Count }

// Dataset is the result of decoding one IDX file. Exactly one of Images and
// Labels is set, according to Kind.
type Dataset struct {
	Kind   Kind
	Path   string
	Images *Images
	Labels *Labels
}

// Count returns the number of items in the dataset.
func (d *Dataset) Count() int {
	switch d.Kind {
	case KindImages:
		return d.Images.Count
	case KindLabels:
		return d.Labels.Count
	}
	return 0
}

// Decode decodes an uncompressed IDX stream. path is only used in error
// messages. An unknown magic number fails with ErrUnrecognizedFormat before
// anything past the header is read.
func Decode(r io.Reader, path string) (*Dataset, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errors.WithCode(err, errors.ErrIOFailure, "reading header of "+path)
	}
	magic := binary.BigEndian.Uint32(hdr[0:4])
	count := binary.BigEndian.Uint32(hdr[4:8])

	switch magic {
	case MagicImages:
		var dims [8]byte
		if _, err := io.ReadFull(r, dims[:]); err != nil {
			return nil, errors.WithCode(err, errors.ErrIOFailure, "reading dimensions of "+path)
		}
		rows := binary.BigEndian.Uint32(dims[0:4])
		cols := binary.BigEndian.Uint32(dims[4:8])
		if rows > math.MaxInt32 || cols > math.MaxInt32 {
			return nil, errors.Newf(errors.ErrIOFailure, "%s has invalid dimensions %dx%d", path, rows, cols)
		}
		want, err := bodySize(path, count, rows, cols)
		if err != nil {
			return nil, err
		}
		pixels, err := readBody(r, path, want)
		if err != nil {
			return nil, err
		}
		return &Dataset{
			Kind: KindImages,
			Path: path,
			Images: &Images{
				Count:  int(count),
				Rows:   int(rows),
				Cols:   int(cols),
				Pixels: pixels,
			},
		}, nil
	case MagicLabels:
		want, err := bodySize(path, count)
		if err != nil {
			return nil, err
		}
		labels, err := readBody(r, path, want)
		if err != nil {
			return nil, err
		}
		return &Dataset{
			Kind: KindLabels,
			Path: path,
			Labels: &Labels{
				Count:  int(count),
				Labels: labels,
			},
		}, nil
	default:
		return nil, errors.Newf(errors.ErrUnrecognizedFormat, "unknown magic number %d in file %s", magic, path)
	}
}

// bodySize returns the product of the header sizes, failing when it exceeds
// MaxBodySize.
func bodySize(path string, sizes ...uint32) (int, error) {
	n := uint64(1)
	for _, s := range sizes {
		// Each factor is below 2^32 and n stays at or below MaxBodySize, so
		// the product cannot overflow.
		n *= uint64(s)
		if n > MaxBodySize {
			return 0, errors.Newf(errors.ErrIOFailure, "%s header promises more than %d bytes %v", path, MaxBodySize, sizes)
		}
	}
	return int(n), nil
}

// readBody reads the rest of r and checks that it holds at least want bytes.
// Anything past want is ignored.
func readBody(r io.Reader, path string, want int) ([]byte, error) {
	var buf bytes.Buffer
	if want < growHint {
		buf.Grow(want)
	} else {
		buf.Grow(growHint)
	}
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, errors.WithCode(err, errors.ErrIOFailure, "reading "+path)
	}
	if buf.Len() < want {
		return nil, errors.Newf(errors.ErrIOFailure, "%s is truncated: header promises %d bytes, found %d", path, want, buf.Len())
	}
	return buf.Bytes()[:want:want], nil
}

// CheckPair verifies that images and labels are an image set and a label set
// describing the same number of items.
func CheckPair(images, labels *Dataset) error {
	if images == nil || images.Kind != KindImages {
		return errors.New(errors.ErrDatasetMismatch, "first dataset is not an image set")
	}
	if labels == nil || labels.Kind != KindLabels {
		return errors.New(errors.ErrDatasetMismatch, "second dataset is not a label set")
	}
	if images.Images.Count != labels.Labels.Count {
		return errors.Newf(errors.ErrDatasetMismatch,
			"mismatch between number of images (%d in %s) and labels (%d in %s)",
			images.Images.Count, images.Path, labels.Labels.Count, labels.Path)
	}
	return nil
}
