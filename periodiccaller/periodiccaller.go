// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package periodiccaller allows periodic calls of functions.
package periodiccaller // import "github.com/ktelemetry/kstat/periodiccaller"

import (
	"context"
	"time"
)

// Start starts a timer that calls <callback> every <interval> until <ctx> is
// canceled or the returned stop function is called. stop waits for a running
// callback to return, so no call happens after it.
func Start(ctx context.Context, interval time.Duration, callback func()) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				callback()
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
