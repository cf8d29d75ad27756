// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package catalog // import "github.com/ktelemetry/kstat/catalog"

import _ "embed"

//go:embed syscalls_arm64.tsv
var syscallTable string
