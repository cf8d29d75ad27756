// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package cgroup resolves cgroup directories to the 64-bit cgroup id that
// kernel programs see through bpf_get_current_cgroup_id().
package cgroup // import "github.com/ktelemetry/kstat/cgroup"

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// ErrHandleSize is returned when the file handle of a directory is not the
// 8 byte kernfs handle that encodes a cgroup id.
var ErrHandleSize = errors.New("unexpected file handle size")

// cgroupIDSize is the size of the kernfs node id stored in the handle.
const cgroupIDSize = 8

// ID returns the cgroup id of the cgroup v2 directory at path.
func ID(path string) (uint64, error) {
	handle, _, err := unix.NameToHandleAt(unix.AT_FDCWD, path, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to get file handle of %s: %w", path, err)
	}
	return idFromHandle(handle.Bytes())
}

// idFromHandle decodes the handle payload that follows the kernel's
// {handle_bytes, handle_type} header.
func idFromHandle(b []byte) (uint64, error) {
	if len(b) != cgroupIDSize {
		return 0, fmt.Errorf("%w: %d bytes, expected %d", ErrHandleSize, len(b), cgroupIDSize)
	}
	return binary.NativeEndian.Uint64(b), nil
}

// IsUnified reports whether path is on a cgroup v2 file system.
func IsUnified(path string) (bool, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return false, fmt.Errorf("failed to statfs %s: %w", path, err)
	}
	return st.Type == unix.CGROUP2_SUPER_MAGIC, nil
}
