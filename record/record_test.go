// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"encoding"
	"math/rand/v2"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codec interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

var codecs = []struct {
	name string
	size int
	new  func() codec
}{
	{"SlotKey", SizeSlotKey, func() codec { return &SlotKey{} }},
	{"SyscallKey", SizeSyscallKey, func() codec { return &SyscallKey{} }},
	{"SyscallValue", SizeSyscallValue, func() codec { return &SyscallValue{} }},
	{"IOValue", SizeIOValue, func() codec { return &IOValue{} }},
	{"UnshareEvent", SizeUnshareEvent, func() codec { return &UnshareEvent{} }},
}

func TestLayoutMatchesKernel(t *testing.T) {
	assert.Equal(t, SizeSlotKey, int(unsafe.Sizeof(SlotKey{})))
	assert.Equal(t, SizeSyscallKey, int(unsafe.Sizeof(SyscallKey{})))
	assert.Equal(t, SizeSyscallValue, int(unsafe.Sizeof(SyscallValue{})))
	assert.Equal(t, SizeIOValue, int(unsafe.Sizeof(IOValue{})))
	assert.Equal(t, SizeUnshareEvent, int(unsafe.Sizeof(UnshareEvent{})))
}

func TestRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewPCG(1, 2))
	for _, tc := range codecs {
		t.Run(tc.name, func(t *testing.T) {
			for range 64 {
				in := make([]byte, tc.size)
				for i := range in {
					in[i] = byte(rnd.IntN(256))
				}
				r := tc.new()
				require.NoError(t, r.UnmarshalBinary(in))
				out, err := r.MarshalBinary()
				require.NoError(t, err)
				assert.Equal(t, in, out)
			}
		})
	}
}

func TestLengthGuard(t *testing.T) {
	for _, tc := range codecs {
		t.Run(tc.name, func(t *testing.T) {
			for _, n := range []int{0, 1, tc.size - 1, tc.size + 1, 2 * tc.size} {
				buf := make([]byte, n)
				for i := range buf {
					buf[i] = 0xff
				}
				r := tc.new()
				err := r.UnmarshalBinary(buf)
				require.ErrorIs(t, err, ErrSize, "length %d", n)
				assert.Equal(t, tc.new(), r, "record must stay untouched")
			}
		})
	}
}

func TestDecode(t *testing.T) {
	want := SyscallKey{TID: 42, SyscallNr: 59}
	b, err := want.MarshalBinary()
	require.NoError(t, err)

	got, err := Decode[SyscallKey](b)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = Decode[SyscallKey](b[:8])
	require.ErrorIs(t, err, ErrSize)
	assert.Equal(t, SyscallKey{}, got)
}

func TestDecodeDoesNotValidateValues(t *testing.T) {
	k := SyscallKey{TID: 1, SyscallNr: 1 << 40}
	b, err := k.MarshalBinary()
	require.NoError(t, err)
	got, err := Decode[SyscallKey](b)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), got.SyscallNr)
}

func TestUnshareEvent(t *testing.T) {
	ev := UnshareEvent{
		PID:   1234,
		Flags: uint64(CloneNewNS|CloneNewPID) | 1<<62,
		Ret:   -1,
	}
	copy(ev.Comm[:], "unshare")

	b, err := ev.MarshalBinary()
	require.NoError(t, err)
	got, err := Decode[UnshareEvent](b)
	require.NoError(t, err)

	assert.Equal(t, uint32(1234), got.PID)
	assert.Equal(t, int32(-1), got.Ret)
	assert.Equal(t, "unshare", got.CommString())
	assert.Equal(t, CloneNewNS|CloneNewPID, got.CloneFlags())
}

func TestCommString(t *testing.T) {
	tests := map[string]struct {
		comm []byte
		want string
	}{
		"empty":       {comm: nil, want: ""},
		"padded":      {comm: []byte("bash"), want: "bash"},
		"full":        {comm: []byte("0123456789abcdef"), want: "0123456789abcdef"},
		"invalidUTF8": {comm: []byte{'a', 0xff, 'b'}, want: "a\uFFFDb"},
		"afterNUL":    {comm: []byte{'a', 0, 'b'}, want: "a"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var ev UnshareEvent
			copy(ev.Comm[:], tc.comm)
			assert.Equal(t, tc.want, ev.CommString())
		})
	}
}

func TestCloneFlags(t *testing.T) {
	tests := map[string]struct {
		raw   uint64
		want  CloneFlags
		names string
	}{
		"none":     {raw: 0, want: 0, names: "(empty)"},
		"unknown":  {raw: 0x1, want: 0, names: "(empty)"},
		"mount":    {raw: 0x00020000, want: CloneNewNS, names: "CLONE_NEWNS"},
		"time":     {raw: 0x80, want: CloneNewTime, names: "CLONE_NEWTIME"},
		"truncate": {raw: 0x40020001, want: CloneNewNS | CloneNewNet, names: "CLONE_NEWNS | CLONE_NEWNET"},
		"all": {
			raw:  0x7e020080,
			want: allCloneFlags,
			names: "CLONE_NEWNS | CLONE_NEWCGROUP | CLONE_NEWUTS | CLONE_NEWIPC | " +
				"CLONE_NEWUSER | CLONE_NEWPID | CLONE_NEWNET | CLONE_NEWTIME",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			flags := CloneFlagsFromBits(tc.raw)
			assert.Equal(t, tc.want, flags)
			assert.Equal(t, tc.names, flags.String())
		})
	}
}
