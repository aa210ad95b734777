package mapper

import (
	"context"
	"time"

	"github.com/srediag/plugin-mmap/api"
	"github.com/srediag/plugin-mmap/pkg/mmapfile"
)

// Mapping is a file mapped through a Manager.
type Mapping struct {
	id       string
	file     *mmapfile.File
	path     string
	size     int64
	readOnly bool
	opened   time.Time
	manager  *Manager
}

// ID returns the manager-assigned identifier, unique for the Manager's lifetime.
func (mp *Mapping) ID() string { return mp.id }

// Bytes returns the mapped region, or nil once closed.
func (mp *Mapping) Bytes() []byte { return mp.file.Bytes() }

// Len returns the mapped size, or 0 once closed.
func (mp *Mapping) Len() int { return mp.file.Len() }

// Path returns the path the mapping was opened from.
func (mp *Mapping) Path() string { return mp.path }

// ReadAt implements io.ReaderAt over the mapped region.
func (mp *Mapping) ReadAt(p []byte, off int64) (int, error) {
	return mp.file.ReadAt(p, off)
}

// Info describes the mapping.
func (mp *Mapping) Info() api.MappingInfo {
	return api.MappingInfo{
		ID:       mp.id,
		Path:     mp.path,
		Size:     mp.size,
		ReadOnly: mp.readOnly,
		Opened:   mp.opened,
	}
}

// Close unmaps the file and removes it from its manager. Repeated calls are
// no-ops.
func (mp *Mapping) Close() error {
	return mp.manager.release(context.Background(), mp)
}
