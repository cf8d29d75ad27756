// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package support locates the compiled kernel programs and holds the names
// and layouts they share with user space.
package support // import "github.com/ktelemetry/kstat/support"

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	cebpf "github.com/cilium/ebpf"
)

// DefaultDir is where `make -C support/ebpf install` puts the objects.
const DefaultDir = "/usr/lib/kstat/bpf"

// Program is the base name of a kernel object file.
type Program string

const (
	SyscallStat  Program = "syscallstat"
	BIOGraph     Program = "biograph"
	UnshareSnoop Program = "unsharesnoop"
	// UnshareSnoopRingBuf emits the events of UnshareSnoop through a
	// BPF_MAP_TYPE_RINGBUF, available since Linux 5.8.
	UnshareSnoopRingBuf Program = "unsharesnoop_ringbuf"
)

// Names of maps and read-only variables in the kernel objects.
const (
	MapDist   = "dist"
	MapEvents = "events"

	VarTargetCgroupID = "targ_cgid"
	VarTargetFailed   = "targ_failed"
)

// ObjectPath returns the path of the object file of p in dir.
func ObjectPath(dir string, p Program) string {
	return filepath.Join(dir, string(p)+".bpf.o")
}

// LoadCollectionSpec is a wrapper around ebpf.LoadCollectionSpec and loads
// the eBPF spec of p from dir.
func LoadCollectionSpec(dir string, p Program) (*cebpf.CollectionSpec, error) {
	path := ObjectPath(dir, p)
	spec, err := cebpf.LoadCollectionSpec(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("kernel object %s not found, build it with "+
				"`make -C support/ebpf install` or point -bpf-dir at it: %w", path, err)
		}
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return spec, nil
}
