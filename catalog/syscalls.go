// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package catalog // import "github.com/ktelemetry/kstat/catalog"

import (
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Syscalls returns the catalog of system calls of the running architecture.
func Syscalls() (*Catalog, error) {
	if syscallTable == "" {
		log.Warnf("No system call table for %s, names will not be resolved",
			runtime.GOARCH)
	}
	return Load(strings.NewReader(syscallTable))
}
