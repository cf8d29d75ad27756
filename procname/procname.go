// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package procname resolves thread ids to task names.
package procname // import "github.com/ktelemetry/kstat/procname"

import (
	"encoding/binary"
	"fmt"
	"strconv"

	lru "github.com/elastic/go-freelru"
	"github.com/prometheus/procfs"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"

	"github.com/ktelemetry/kstat/metrics"
)

// DefaultCacheSize is the number of names kept by a Resolver.
const DefaultCacheSize = 4096

// Resolver looks up task names in procfs and caches the result, including
// failed lookups. Threads that exited before the lookup resolve to their id
// only. A Resolver is not safe for concurrent use.
type Resolver struct {
	fs    procfs.FS
	cache *lru.LRU[uint32, string]

	misses   int
	failures int
}

func hashTID(tid uint32) uint32 {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], tid)
	return uint32(xxh3.Hash(b[:]))
}

// New returns a Resolver reading the procfs mounted at procRoot, or at the
// default mount point when procRoot is empty.
func New(procRoot string, cacheSize uint32) (*Resolver, error) {
	var (
		fs  procfs.FS
		err error
	)
	if procRoot == "" {
		fs, err = procfs.NewDefaultFS()
	} else {
		fs, err = procfs.NewFS(procRoot)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open procfs: %w", err)
	}

	cache, err := lru.New[uint32, string](cacheSize, hashTID)
	if err != nil {
		return nil, fmt.Errorf("failed to create name cache: %w", err)
	}
	return &Resolver{fs: fs, cache: cache}, nil
}

// Name returns "comm[tid]" for a thread id, or "[tid]" when the name is not
// available.
func (r *Resolver) Name(tid uint64) string {
	id := uint32(tid)
	if name, ok := r.cache.Get(id); ok {
		return name
	}
	r.misses++

	name := "[" + strconv.FormatUint(uint64(id), 10) + "]"
	comm, err := r.comm(id)
	if err != nil {
		r.failures++
		log.Debugf("Failed to resolve name of thread %d: %v", id, err)
	} else {
		name = comm + name
	}
	r.cache.Add(id, name)
	return name
}

func (r *Resolver) comm(tid uint32) (string, error) {
	p, err := r.fs.Proc(int(tid))
	if err != nil {
		return "", err
	}
	return p.Comm()
}

// Flush publishes the lookup statistics.
func (r *Resolver) Flush() {
	metrics.AddSlice([]metrics.Metric{
		{ID: metrics.IDProcNameCacheMiss, Value: metrics.MetricValue(r.misses)},
		{ID: metrics.IDProcNameLookupErrors, Value: metrics.MetricValue(r.failures)},
	})
	r.misses, r.failures = 0, 0
}
