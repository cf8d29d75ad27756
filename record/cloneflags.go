// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package record // import "github.com/ktelemetry/kstat/record"

import (
	"strings"

	"golang.org/x/sys/unix"
)

// CloneFlags is the set of namespace flags accepted by unshare(2).
type CloneFlags uint64

const (
	CloneNewNS     CloneFlags = unix.CLONE_NEWNS
	CloneNewCgroup CloneFlags = unix.CLONE_NEWCGROUP
	CloneNewUTS    CloneFlags = unix.CLONE_NEWUTS
	CloneNewIPC    CloneFlags = unix.CLONE_NEWIPC
	CloneNewUser   CloneFlags = unix.CLONE_NEWUSER
	CloneNewPID    CloneFlags = unix.CLONE_NEWPID
	CloneNewNet    CloneFlags = unix.CLONE_NEWNET
	CloneNewTime   CloneFlags = unix.CLONE_NEWTIME
)

// cloneFlagNames lists the known flags in display order.
var cloneFlagNames = [...]struct {
	flag CloneFlags
	name string
}{
	{CloneNewNS, "CLONE_NEWNS"},
	{CloneNewCgroup, "CLONE_NEWCGROUP"},
	{CloneNewUTS, "CLONE_NEWUTS"},
	{CloneNewIPC, "CLONE_NEWIPC"},
	{CloneNewUser, "CLONE_NEWUSER"},
	{CloneNewPID, "CLONE_NEWPID"},
	{CloneNewNet, "CLONE_NEWNET"},
	{CloneNewTime, "CLONE_NEWTIME"},
}

// allCloneFlags is the union of all known flags.
var allCloneFlags = func() CloneFlags {
	var all CloneFlags
	for _, f := range cloneFlagNames {
		all |= f.flag
	}
	return all
}()

// CloneFlagsFromBits returns the known flags contained in raw. Unknown bits
// are dropped.
func CloneFlagsFromBits(raw uint64) CloneFlags {
	return CloneFlags(raw) & allCloneFlags
}

// Has reports whether all bits of other are set in f.
func (f CloneFlags) Has(other CloneFlags) bool {
	return f&other == other
}

// Names returns the names of the flags set in f, in display order.
func (f CloneFlags) Names() []string {
	names := make([]string, 0, len(cloneFlagNames))
	for _, cf := range cloneFlagNames {
		if f.Has(cf.flag) {
			names = append(names, cf.name)
		}
	}
	return names
}

func (f CloneFlags) String() string {
	names := f.Names()
	if len(names) == 0 {
		return "(empty)"
	}
	return strings.Join(names, " | ")
}
