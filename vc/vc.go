// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package vc provides buildtime information.
package vc // import "github.com/ktelemetry/kstat/vc"

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// The following variables are set at link time with -ldflags:
	//   -X github.com/ktelemetry/kstat/vc.version=...

	// revision of the binary
	revision = ""
	// buildTimestamp, timestamp of the build
	buildTimestamp = ""
	// version in vX.Y.Z{-N-abbrev} format (via git-describe --tags)
	version = ""
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if revision == "" {
				revision = s.Value
			}
		case "vcs.time":
			if buildTimestamp == "" {
				buildTimestamp = s.Value
			}
		}
	}
}

// Revision of the binary.
func Revision() string {
	return revision
}

// BuildTimestamp returns the timestamp of the build.
func BuildTimestamp() string {
	return buildTimestamp
}

// Version in vX.Y.Z{-N-abbrev} format.
func Version() string {
	if version == "" {
		return "dev"
	}
	return version
}

// String returns a one line summary for -version output.
func String() string {
	return fmt.Sprintf("kstat %s (revision %s, built %s, %s/%s)",
		Version(), orUnknown(revision), orUnknown(buildTimestamp),
		runtime.GOOS, runtime.GOARCH)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
