package stream

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Metrics contains counters for a streaming run.
//
// The engine increments them from its single protocol thread; they are
// safe to read concurrently, e.g. from a progress reporter goroutine.
type Metrics struct {
	// BlocksSent counts blocks handed to the transport (or assumed sent
	// in dry-run mode).
	BlocksSent *xsync.Counter
	// OkCount counts blocks acknowledged with "ok".
	OkCount *xsync.Counter
	// ErrorCount counts terminal failure responses.
	ErrorCount *xsync.Counter
	// MessageCount counts intermediate informational lines.
	MessageCount *xsync.Counter
	// BytesDiscarded counts bytes drained during the startup and
	// shutdown quiet periods.
	BytesDiscarded *xsync.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		BlocksSent:     xsync.NewCounter(),
		OkCount:        xsync.NewCounter(),
		ErrorCount:     xsync.NewCounter(),
		MessageCount:   xsync.NewCounter(),
		BytesDiscarded: xsync.NewCounter(),
	}
}
