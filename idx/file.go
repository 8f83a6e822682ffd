// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package idx

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/featurebasedb/mnistload/errors"
	"github.com/klauspost/compress/gzip"
)

// IsS3 reports whether name is an s3:// URL.
func IsS3(name string) bool {
	return strings.HasPrefix(name, "s3://")
}

// ReadFile decompresses and decodes the gzip IDX file at name, which is a
// local path or an s3://bucket/key URL. The s3client is only required for
// s3 URLs. The whole file is held in memory.
func ReadFile(ctx context.Context, name string, s3client s3iface.S3API) (*Dataset, error) {
	rc, err := open(ctx, name, s3client)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	zr, err := gzip.NewReader(rc)
	if err != nil {
		return nil, errors.WithCode(err, errors.ErrIOFailure, "decompressing "+name)
	}
	defer zr.Close()

	return Decode(zr, name)
}

func open(ctx context.Context, name string, s3client s3iface.S3API) (io.ReadCloser, error) {
	if !IsS3(name) {
		f, err := os.Open(name)
		if err != nil {
			return nil, errors.WithCode(err, errors.ErrIOFailure, "opening "+name)
		}
		return f, nil
	}

	if s3client == nil {
		return nil, errors.New(errors.ErrIOFailure, "missing s3 client for "+name)
	}
	u, err := url.Parse(name)
	if err != nil {
		return nil, errors.WithCode(err, errors.ErrIOFailure, "parsing S3 URL "+name)
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")

	result, err := s3client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok {
			switch aerr.Code() {
			case s3.ErrCodeNoSuchBucket, s3.ErrCodeNoSuchKey:
				return nil, errors.Newf(errors.ErrIOFailure, "%s does not exist", name)
			}
		}
		return nil, errors.WithCode(err, errors.ErrIOFailure, "fetching S3 object "+name)
	}
	return result.Body, nil
}
