//go:build ignore

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package support // import "github.com/ktelemetry/kstat/support"

/*
typedef unsigned int u32;
typedef unsigned long long u64;
typedef int pid_t;
#include "./ebpf/types.h"
*/
import "C"

const (
	TaskCommLen = C.TASK_COMM_LEN
	IOSlot      = C.IO_SLOT
)

const (
	Sizeof_SyscallKey   = C.sizeof_SyscallKey
	Sizeof_SyscallValue = C.sizeof_SyscallValue
	Sizeof_IOValue      = C.sizeof_IOValue
	Sizeof_UnshareEvent = C.sizeof_UnshareEvent
)
