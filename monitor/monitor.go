// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package monitor forwards warnings and errors to Sentry when a DSN has been
// configured. It is off by default.
package monitor

import (
	"flag"
	"fmt"
	"sync/atomic"
	"time"

	sentry "github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
)

const (
	LevelPanic = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
)

var isOn int32

// InitErrorMonitor initializes Sentry with the given DSN. An empty DSN leaves
// the monitor off.
func InitErrorMonitor(dsn, version string) error {
	if dsn == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		AttachStacktrace: true,
		Release:          version,
	})
	if err != nil {
		return errors.Wrap(err, "initializing sentry")
	}
	atomic.StoreInt32(&isOn, 1)
	CaptureMessage("Session:Started")
	return nil
}

// CaptureMessage sends a message to Sentry.
func CaptureMessage(message string) {
	if !IsOn() || isTest() {
		return
	}
	sentry.CaptureMessage(message)
	defer sentry.Flush(2 * time.Second)
}

// CaptureException sends an error to Sentry. Levels below warn are dropped.
func CaptureException(level int, format string, v ...interface{}) {
	if !IsOn() || isTest() {
		return
	}
	if level > LevelWarn {
		return
	}
	err := fmt.Errorf(format, v...)

	sentry.CaptureException(err)
	defer sentry.Flush(2 * time.Second)
}

// IsOn returns true if the monitor is enabled.
func IsOn() bool {
	return atomic.LoadInt32(&isOn) == 1
}

// isTest returns true if execution is part of test
func isTest() bool {
	return flag.Lookup("test.v") != nil
}
