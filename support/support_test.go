// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package support

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktelemetry/kstat/record"
	"github.com/ktelemetry/kstat/sampler"
)

func TestSizeOfCStructs(t *testing.T) {
	tests := []struct {
		name   string
		cSize  int
		goSize int
	}{
		{"SyscallKey", Sizeof_SyscallKey, record.SizeSyscallKey},
		{"SyscallValue", Sizeof_SyscallValue, record.SizeSyscallValue},
		{"IOValue", Sizeof_IOValue, record.SizeIOValue},
		{"UnshareEvent", Sizeof_UnshareEvent, record.SizeUnshareEvent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equalf(t, tt.cSize, tt.goSize, "C and Go layout of %s differ", tt.name)
		})
	}
	assert.Equal(t, IOSlot, sampler.DefaultSlot)
}

func TestObjectPath(t *testing.T) {
	assert.Equal(t, "/usr/lib/kstat/bpf/biograph.bpf.o", ObjectPath(DefaultDir, BIOGraph))
	assert.Equal(t, "/usr/lib/kstat/bpf/unsharesnoop_ringbuf.bpf.o",
		ObjectPath(DefaultDir, UnshareSnoopRingBuf))
}

func TestLoadCollectionSpecMissing(t *testing.T) {
	_, err := LoadCollectionSpec(t.TempDir(), SyscallStat)
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "-bpf-dir")
}

func TestLoadCollectionSpecGarbage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unsharesnoop.bpf.o"),
		[]byte("not an ELF file"), 0o644))
	_, err := LoadCollectionSpec(dir, UnshareSnoop)
	require.Error(t, err)
	assert.NotErrorIs(t, err, os.ErrNotExist)
}
