// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package tracer

import (
	"testing"

	cebpf "github.com/cilium/ebpf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktelemetry/kstat/support"
)

func TestParseSection(t *testing.T) {
	tests := map[string]struct {
		input    string
		expected hookPoint
		wantErr  bool
	}{
		"tracepoint": {
			input:    "tracepoint/raw_syscalls/sys_enter",
			expected: hookPoint{kind: "tracepoint", group: "raw_syscalls", name: "sys_enter"},
		},
		"tpShort": {
			input:    "tp/syscalls/sys_exit_unshare",
			expected: hookPoint{kind: "tracepoint", group: "syscalls", name: "sys_exit_unshare"},
		},
		"tpBTF": {
			input:    "tp_btf/block_rq_issue",
			expected: hookPoint{kind: "tp_btf", name: "block_rq_issue"},
		},
		"tracepointMissingName": {input: "tracepoint/raw_syscalls", wantErr: true},
		"tracepointEmptyName":   {input: "tracepoint/raw_syscalls/", wantErr: true},
		"tpBTFExtra":            {input: "tp_btf/block/rq", wantErr: true},
		"kprobe":                {input: "kprobe/vfs_read", wantErr: true},
		"empty":                 {input: "", wantErr: true},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			hp, err := parseSection(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, hp)
			assert.Equal(t, tc.input != "tp/syscalls/sys_exit_unshare", hp.String() == tc.input)
		})
	}
}

func TestSetVariablesUnknown(t *testing.T) {
	spec := &cebpf.CollectionSpec{Variables: map[string]*cebpf.VariableSpec{}}
	require.NoError(t, setVariables(spec, nil))

	err := setVariables(spec, map[string]any{support.VarTargetCgroupID: uint64(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "targ_cgid")
}

func TestLoadMissingObject(t *testing.T) {
	_, err := Load(Config{Dir: t.TempDir(), Program: support.SyscallStat})
	require.Error(t, err)
}

func TestParseKernelRelease(t *testing.T) {
	tests := map[string]struct {
		release             string
		major, minor, patch uint32
	}{
		"full":     {"6.8.12-45-generic\x00\x00", 6, 8, 12},
		"noPatch":  {"5.15\x00", 5, 15, 0},
		"garbage":  {"unknown", 0, 0, 0},
		"trailing": {"4.19.0+", 4, 19, 0},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			major, minor, patch := parseKernelRelease([]byte(tc.release))
			assert.Equal(t, []uint32{tc.major, tc.minor, tc.patch}, []uint32{major, minor, patch})
		})
	}
}

func TestProbeBPFSyscall(t *testing.T) {
	// Only ENOSYS is an error, missing privileges are not.
	if err := ProbeBPFSyscall(); err != nil {
		t.Skip(err)
	}
	major, _, _, err := GetCurrentKernelVersion()
	require.NoError(t, err)
	assert.NotZero(t, major)
}
