// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package idx_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/featurebasedb/mnistload/errors"
	"github.com/featurebasedb/mnistload/idx"
	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

func header(words ...uint32) []byte {
	b := make([]byte, 4*len(words))
	for i, w := range words {
		binary.BigEndian.PutUint32(b[4*i:], w)
	}
	return b
}

func gz(t *testing.T, raw []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0600))
	return p
}

var (
	pixels = []byte{
		0, 255, 128, 1,
		2, 3, 4, 5,
		10, 20, 30, 40,
	}
	labelBytes = []byte{7, 0, 9}
)

func imageFile() []byte { return append(header(idx.MagicImages, 3, 2, 2), pixels...) }
func labelFile() []byte { return append(header(idx.MagicLabels, 3), labelBytes...) }

func TestReadFile(t *testing.T) {
	ctx := context.Background()

	ip := writeFile(t, "images.gz", gz(t, imageFile()))
	images, err := idx.ReadFile(ctx, ip, nil)
	require.NoError(t, err)
	require.Equal(t, idx.KindImages, images.Kind)
	require.Equal(t, ip, images.Path)
	if diff := cmp.Diff(&idx.Images{Count: 3, Rows: 2, Cols: 2, Pixels: pixels}, images.Images); diff != "" {
		t.Fatal(diff)
	}
	require.Equal(t, []byte{2, 3, 4, 5}, images.Images.Image(1))
	require.Equal(t, 3, images.Count())

	lp := writeFile(t, "labels.gz", gz(t, labelFile()))
	labels, err := idx.ReadFile(ctx, lp, nil)
	require.NoError(t, err)
	require.Equal(t, idx.KindLabels, labels.Kind)
	require.Equal(t, labelBytes, labels.Labels.Labels)

	require.NoError(t, idx.CheckPair(images, labels))
}

func TestDecodeUnknownMagic(t *testing.T) {
	raw := append(header(1234, 3), labelBytes...)
	r := bytes.NewReader(raw)

	_, err := idx.Decode(r, "odd.gz")
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrUnrecognizedFormat))
	require.Contains(t, err.Error(), "1234")
	require.Contains(t, err.Error(), "odd.gz")
	// Only the 8 header bytes were consumed.
	require.Equal(t, len(labelBytes), r.Len())
}

func TestDecodeIOFailures(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{
			name: "missing",
			path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.gz") },
		},
		{
			name: "not-gzip",
			path: func(t *testing.T) string { return writeFile(t, "plain", imageFile()) },
		},
		{
			name: "truncated-pixels",
			path: func(t *testing.T) string { return writeFile(t, "short.gz", gz(t, imageFile()[:20])) },
		},
		{
			name: "truncated-header",
			path: func(t *testing.T) string { return writeFile(t, "hdr.gz", gz(t, header(idx.MagicImages))) },
		},
		{
			name: "truncated-gzip-stream",
			path: func(t *testing.T) string {
				b := gz(t, labelFile())
				return writeFile(t, "cut.gz", b[:len(b)-6])
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := idx.ReadFile(ctx, test.path(t), nil)
			require.Error(t, err)
			require.True(t, errors.Is(err, errors.ErrIOFailure), "got %v", err)
		})
	}
}

func TestDecodeOversizedHeader(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		msg  string
	}{
		{
			name: "huge-dimensions",
			raw:  header(idx.MagicImages, 0x80000000, 0x80000000, 3),
			msg:  "invalid dimensions",
		},
		{
			name: "product-wraps",
			raw:  append(header(idx.MagicImages, 1<<22, 1<<21, 1<<21), 1, 2, 3, 4),
			msg:  "header promises more than",
		},
		{
			name: "images-over-limit",
			raw:  header(idx.MagicImages, 60000, 2048, 2048),
			msg:  "header promises more than",
		},
		{
			name: "labels-over-limit",
			raw:  append(header(idx.MagicLabels, 0xFFFFFFFF), labelBytes...),
			msg:  "header promises more than",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := idx.Decode(bytes.NewReader(test.raw), "corrupt.gz")
			require.Error(t, err)
			require.True(t, errors.Is(err, errors.ErrIOFailure), "got %v", err)
			require.Contains(t, err.Error(), test.msg)
			require.Contains(t, err.Error(), "corrupt.gz")
		})
	}

	// Zero items with large dimensions is a valid, empty image set.
	ds, err := idx.Decode(bytes.NewReader(header(idx.MagicImages, 0, 1<<20, 1<<20)), "empty.gz")
	require.NoError(t, err)
	require.Equal(t, 0, ds.Count())
}

func TestCheckPair(t *testing.T) {
	images := &idx.Dataset{Kind: idx.KindImages, Path: "i", Images: &idx.Images{Count: 100, Rows: 1, Cols: 1}}
	labels := &idx.Dataset{Kind: idx.KindLabels, Path: "l", Labels: &idx.Labels{Count: 99}}

	err := idx.CheckPair(images, labels)
	require.True(t, errors.Is(err, errors.ErrDatasetMismatch))
	require.Contains(t, err.Error(), "100")
	require.Contains(t, err.Error(), "99")

	err = idx.CheckPair(labels, images)
	require.True(t, errors.Is(err, errors.ErrDatasetMismatch))
}

type fakeS3 struct {
	s3iface.S3API
	objects map[string][]byte
}

func (f *fakeS3) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[aws.StringValue(in.Bucket)+"/"+aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "no such key", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func TestReadFileS3(t *testing.T) {
	ctx := context.Background()
	client := &fakeS3{objects: map[string][]byte{
		"mnist/train/labels.gz": gz(t, labelFile()),
	}}

	labels, err := idx.ReadFile(ctx, "s3://mnist/train/labels.gz", client)
	require.NoError(t, err)
	require.Equal(t, 3, labels.Count())

	_, err = idx.ReadFile(ctx, "s3://mnist/train/images.gz", client)
	require.True(t, errors.Is(err, errors.ErrIOFailure))
	require.Contains(t, err.Error(), "does not exist")

	_, err = idx.ReadFile(ctx, "s3://mnist/train/labels.gz", nil)
	require.True(t, errors.Is(err, errors.ErrIOFailure))
}
