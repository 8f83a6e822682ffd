// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package mnistload

import (
	"strings"
	"testing"
)

func TestVersionInfo(t *testing.T) {
	defer func(v, c, b string) { Version, Commit, BuildTime = v, c, b }(Version, Commit, BuildTime)

	Version, Commit, BuildTime = "", "", ""
	if got := VersionInfo(); !strings.HasPrefix(got, "mnistload v0.x ") {
		t.Fatalf("unexpected version info %q", got)
	}

	Version, Commit = "v1.2.0", "abc123"
	if got := VersionInfo(); !strings.HasPrefix(got, "mnistload v1.2.0 (abc123) ") {
		t.Fatalf("unexpected version info %q", got)
	}
}
