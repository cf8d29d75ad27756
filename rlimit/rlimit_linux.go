// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package rlimit adjusts the locked memory limit around BPF object creation.
// Kernels before 5.11 charge BPF maps and programs against RLIMIT_MEMLOCK.
package rlimit // import "github.com/ktelemetry/kstat/rlimit"

import (
	"fmt"

	"golang.org/x/sys/unix"

	log "github.com/sirupsen/logrus"
)

var infinity = unix.Rlimit{
	Cur: unix.RLIM_INFINITY,
	Max: unix.RLIM_INFINITY,
}

// MaximizeMemlock updates the memlock resource limit to RLIM_INFINITY.
// It returns a function to reset the resource limit to its original value or
// an error. Nothing is changed, and the reset is a no-op, when the limit is
// already unlimited.
func MaximizeMemlock() (func(), error) {
	var oldLimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &oldLimit); err != nil {
		return nil, fmt.Errorf("failed to get rlimit: %w", err)
	}
	if oldLimit == infinity {
		return func() {}, nil
	}

	tmpLimit := infinity
	if err := unix.Prlimit(0, unix.RLIMIT_MEMLOCK, &tmpLimit, nil); err != nil {
		return nil, fmt.Errorf("failed to set temporary rlimit: %w", err)
	}

	return func() {
		if err := unix.Setrlimit(unix.RLIMIT_MEMLOCK, &oldLimit); err != nil {
			log.Errorf("Failed to restore memlock rlimit: %v", err)
		}
	}, nil
}
