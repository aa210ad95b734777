// Package adapter provides adapters for plugin-mmap integration with external systems.
package adapter

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/srediag/plugin-mmap/api"
	"github.com/srediag/plugin-mmap/internal/audit"
)

// AuditWriter writes one line per lifecycle event to an external sink such
// as a log file.
type AuditWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewAuditWriter returns an observer writing to w.
func NewAuditWriter(w io.Writer) *AuditWriter {
	return &AuditWriter{w: w}
}

func (a *AuditWriter) Observe(_ context.Context, ev api.Event) {
	line := audit.FormatEvent(ev)
	a.mu.Lock()
	defer a.mu.Unlock()
	_, _ = fmt.Fprintln(a.w, line)
}
