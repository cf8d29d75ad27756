// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := map[string]struct {
		input string
		want  map[uint64]string
	}{
		"header": {
			input: "foo\tbar\n0\tread\n1\twrite\n",
			want:  map[uint64]string{0: "read", 1: "write"},
		},
		"blankAndComments": {
			input: "\n# nr\tname\n\n2\topen\n",
			want:  map[uint64]string{2: "open"},
		},
		"lastWins": {
			input: "3\tclose\n3\tclose_v2\n",
			want:  map[uint64]string{3: "close_v2"},
		},
		"negative": {
			input: "-1\tbogus\n4\tstat\n",
			want:  map[uint64]string{4: "stat"},
		},
		"noNameField": {
			input: "5\n6\tlstat\n",
			want:  map[uint64]string{6: "lstat"},
		},
		"extraColumns": {
			input: "7\tpoll\tcommon\n",
			want:  map[uint64]string{7: "poll"},
		},
		"crlf": {
			input: "8\tlseek\r\n",
			want:  map[uint64]string{8: "lseek"},
		},
		"empty": {
			input: "",
			want:  map[uint64]string{},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c, err := Load(strings.NewReader(tc.input))
			require.NoError(t, err)
			assert.Equal(t, tc.want, c.names)
			assert.Equal(t, len(tc.want), c.Len())
		})
	}
}

func TestName(t *testing.T) {
	c, err := Load(strings.NewReader("0\tread\n"))
	require.NoError(t, err)

	name, ok := c.Lookup(0)
	assert.True(t, ok)
	assert.Equal(t, "read", name)
	assert.Equal(t, "read", c.Name(0))

	_, ok = c.Lookup(999)
	assert.False(t, ok)
	assert.Equal(t, "unknown(999)", c.Name(999))
}

func TestSyscalls(t *testing.T) {
	c, err := Syscalls()
	require.NoError(t, err)

	switch runtime.GOARCH {
	case "amd64":
		assert.Equal(t, "read", c.Name(0))
		assert.Equal(t, "execve", c.Name(59))
		assert.Equal(t, "unshare", c.Name(272))
	case "arm64":
		assert.Equal(t, "io_setup", c.Name(0))
		assert.Equal(t, "execve", c.Name(221))
		assert.Equal(t, "unshare", c.Name(97))
	default:
		assert.Zero(t, c.Len())
		return
	}
	assert.Equal(t, "clone3", c.Name(435))
}
