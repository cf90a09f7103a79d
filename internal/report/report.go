// Package report renders solve results into human-facing artifacts:
// self-contained HTML chart pages, PNG plots for headless use, CSV
// exports, and plain-text summaries. All writes are atomic.
package report

import (
	"fmt"
	"time"
)

// stampedName builds an artifact filename from the scenario and the
// current UTC time, so repeated reports never clobber each other.
func stampedName(scenario, suffix string) string {
	return fmt.Sprintf("%s_%s%s", scenario, time.Now().UTC().Format("20060102T150405Z"), suffix)
}
