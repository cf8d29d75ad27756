// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package report // import "github.com/ktelemetry/kstat/report"

import (
	"fmt"
	"io"
	"time"

	"github.com/ktelemetry/kstat/record"
)

// WriteEventHeader writes the column header of the unshare event stream.
func WriteEventHeader(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%-20s %-6s %-18s %-3s %-10s %s\n",
		"TIME", "TID", "COMM", "RET", "FLAGS", "FLAGS(human)")
	return err
}

// FormatEvent formats ev, observed at ts, as one line of the event stream.
func FormatEvent(ts time.Time, ev *record.UnshareEvent) string {
	return fmt.Sprintf("%-20s %6d %-18s %3d 0x%08x %s",
		ts.Format(time.RFC3339), ev.PID, ev.CommString(), ev.Ret, ev.Flags, ev.CloneFlags())
}
