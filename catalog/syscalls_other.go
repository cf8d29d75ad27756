// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !amd64 && !arm64

package catalog // import "github.com/ktelemetry/kstat/catalog"

var syscallTable string
