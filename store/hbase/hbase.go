// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package hbase is a Store talking to the HBase REST gateway. Rows are
// buffered by BatchPut and sent as one CellSet document per Flush.
package hbase

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/featurebasedb/mnistload/errors"
	"github.com/featurebasedb/mnistload/loader"
	"github.com/featurebasedb/mnistload/logger"
	"github.com/hashicorp/go-retryablehttp"
)

var (
	_ loader.Store  = (*Client)(nil)
	_ loader.Getter = (*Client)(nil)
)

// Client defaults.
const (
	DefaultHost     = "localhost"
	DefaultPort     = 8080
	DefaultRetryMax = 3
)

// Config holds the REST gateway address and retry policy.
type Config struct {
	Host     string        `toml:"host"`
	Port     int           `toml:"port"`
	RetryMax int           `toml:"retry-max"`
	Timeout  time.Duration `toml:"timeout"`
}

// NewConfig returns a Config with default values.
func NewConfig() Config {
	return Config{
		Host:     DefaultHost,
		Port:     DefaultPort,
		RetryMax: DefaultRetryMax,
		Timeout:  time.Minute,
	}
}

// Client is a Store backed by the HBase REST gateway.
type Client struct {
	base    string
	http    *retryablehttp.Client
	log     logger.Logger
	pending map[string][]row // by table
	order   []string         // tables in first-put order
}

// ClientOption is a functional option for NewClient.
type ClientOption func(c *Client)

// OptClientLogger sets the logger, which also receives retry messages.
func OptClientLogger(log logger.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// OptClientBaseURL overrides the gateway URL derived from host and port.
func OptClientBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.base = u
	}
}

// NewClient returns a Client for the gateway described by cfg.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	c := &Client{
		base:    fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		log:     logger.NopLogger,
		pending: make(map[string][]row),
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := retryablehttp.NewClient()
	hc.RetryMax = cfg.RetryMax
	hc.RetryWaitMin = 100 * time.Millisecond
	hc.RetryWaitMax = 5 * time.Second
	hc.HTTPClient.Timeout = cfg.Timeout
	hc.Logger = retryLogger{c.log}
	c.http = hc
	return c
}

// retryLogger adapts logger.Logger to retryablehttp's Logger interface.
// Request lines go to debug so they don't drown out the load progress.
type retryLogger struct {
	log logger.Logger
}

func (r retryLogger) Printf(format string, v ...interface{}) {
	r.log.Debugf(format, v...)
}

// CellSet is the JSON body the REST gateway accepts and returns for rows.
// Keys, columns and values are base64 encoded.
type CellSet struct {
	Rows []row `json:"Row"`
}

type row struct {
	Key   string `json:"key"`
	Cells []cell `json:"Cell"`
}

type cell struct {
	Column string `json:"column"`
	Value  string `json:"$"`
}

type tableSchema struct {
	Name         string         `json:"name"`
	ColumnSchema []columnSchema `json:"ColumnSchema"`
}

type columnSchema struct {
	Name string `json:"name"`
}

func b64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func (c *Client) url(parts ...string) string {
	u := c.base
	for _, p := range parts {
		u += "/" + url.PathEscape(p)
	}
	return u
}

func (c *Client) do(ctx context.Context, method, u string, body interface{}, accept string) (*http.Response, error) {
	var raw interface{}
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "marshaling request body")
		}
		raw = b
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, u, raw)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.WithCode(err, errors.ErrIOFailure, method+" "+u)
	}
	return resp, nil
}

func statusError(resp *http.Response, what string) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return errors.Newf(errors.ErrIOFailure, "%s: status %d: %s", what, resp.StatusCode, bytes.TrimSpace(msg))
}

func (c *Client) TableExists(ctx context.Context, name string) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, c.url(name, "schema"), nil, "application/json")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, statusError(resp, "checking table "+name)
}

func (c *Client) CreateTable(ctx context.Context, name, family string) error {
	body := tableSchema{
		Name:         name,
		ColumnSchema: []columnSchema{{Name: family}},
	}
	resp, err := c.do(ctx, http.MethodPut, c.url(name, "schema"), body, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusError(resp, "creating table "+name)
	}
	c.log.Infof("table '%s' created", name)
	return nil
}

// BatchPut buffers a row until the next Flush. Columns are sorted so the
// request body is deterministic.
func (c *Client) BatchPut(ctx context.Context, table string, rowKey []byte, fields map[string][]byte) error {
	cols := make([]string, 0, len(fields))
	for col := range fields {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	r := row{Key: b64(rowKey), Cells: make([]cell, len(cols))}
	for i, col := range cols {
		r.Cells[i] = cell{Column: b64([]byte(col)), Value: b64(fields[col])}
	}
	if _, ok := c.pending[table]; !ok {
		c.order = append(c.order, table)
	}
	c.pending[table] = append(c.pending[table], r)
	return nil
}

// Flush sends the buffered rows of each table as one multi-row put. The
// row path segment of a multi-row put is ignored by the gateway.
func (c *Client) Flush(ctx context.Context) error {
	for _, table := range c.order {
		rows := c.pending[table]
		if len(rows) == 0 {
			continue
		}
		resp, err := c.do(ctx, http.MethodPut, c.url(table, "batch"), CellSet{Rows: rows}, "")
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			err := statusError(resp, fmt.Sprintf("writing %d rows to %s", len(rows), table))
			resp.Body.Close()
			return err
		}
		resp.Body.Close()
		delete(c.pending, table)
	}
	c.order = c.order[:0]
	return nil
}

func (c *Client) Get(ctx context.Context, table string, rowKey []byte) (map[string][]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, c.url(table, string(rowKey)), nil, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, statusError(resp, "reading row "+string(rowKey))
	}

	var cs CellSet
	if err := json.NewDecoder(resp.Body).Decode(&cs); err != nil {
		return nil, errors.WithCode(err, errors.ErrIOFailure, "decoding row "+string(rowKey))
	}
	out := make(map[string][]byte)
	for _, r := range cs.Rows {
		for _, cl := range r.Cells {
			col, err := base64.StdEncoding.DecodeString(cl.Column)
			if err != nil {
				return nil, errors.WithCode(err, errors.ErrIOFailure, "decoding column name")
			}
			v, err := base64.StdEncoding.DecodeString(cl.Value)
			if err != nil {
				return nil, errors.WithCode(err, errors.ErrIOFailure, "decoding cell value")
			}
			out[string(col)] = v
		}
	}
	return out, nil
}

// Close drops unflushed rows and idle connections.
func (c *Client) Close() error {
	c.pending = make(map[string][]row)
	c.order = nil
	c.http.HTTPClient.CloseIdleConnections()
	return nil
}
