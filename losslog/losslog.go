// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package losslog extracts per-partition average batch losses from the
// training job's console log, which prints lines such as
//
//	Partition 3: avg batch loss = 0.412345
//
// The log is often captured as UTF-16 on the training hosts.
package losslog

import (
	"bufio"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Supported encodings for Parse.
const (
	EncodingUTF8  = "utf-8"
	EncodingUTF16 = "utf-16"
)

var lossLine = regexp.MustCompile(`Partition\s+(\d+): avg batch loss = ([0-9.]+)`)

// Series maps a partition to its losses in log order.
type Series map[int][]float64

// Partitions returns the partition ids in ascending order.
func (s Series) Partitions() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Summary describes the losses of one partition.
type Summary struct {
	Partition int
	Steps     int
	First     float64
	Last      float64
	Min       float64
	Mean      float64
}

// Summarize returns one Summary per partition, ordered by partition.
func (s Series) Summarize() []Summary {
	out := make([]Summary, 0, len(s))
	for _, id := range s.Partitions() {
		losses := s[id]
		sum := Summary{
			Partition: id,
			Steps:     len(losses),
			First:     losses[0],
			Last:      losses[len(losses)-1],
			Min:       math.Inf(1),
		}
		var total float64
		for _, l := range losses {
			total += l
			sum.Min = math.Min(sum.Min, l)
		}
		sum.Mean = total / float64(len(losses))
		out = append(out, sum)
	}
	return out
}

// Parse scans r, decoded per enc, for loss lines. Lines that don't match are
// skipped. UTF-16 input honours a byte order mark and defaults to
// little-endian without one.
func Parse(r io.Reader, enc string) (Series, error) {
	switch strings.ToLower(enc) {
	case "", EncodingUTF8, "utf8":
		r = transform.NewReader(r, unicode.UTF8BOM.NewDecoder())
	case EncodingUTF16, "utf16":
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		r = transform.NewReader(r, dec)
	default:
		return nil, errors.Errorf("unsupported encoding %q", enc)
	}

	series := make(Series)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		for _, m := range lossLine.FindAllStringSubmatch(scanner.Text(), -1) {
			id, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, errors.Wrapf(err, "parsing partition %q", m[1])
			}
			loss, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				// e.g. "1.2.3" matches the character class.
				continue
			}
			series[id] = append(series[id], loss)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading log")
	}
	return series, nil
}
