package mmapfile

import (
	"fmt"
	"io"

	"github.com/srediag/plugin-mmap/internal/mapping"
)

// Handle is the opaque platform resource identifier of a mapping: a file
// descriptor on POSIX systems, a file-mapping object on Windows.
type Handle = mapping.Handle

// State is the lifecycle position of a File.
type State int

const (
	Unopened State = iota
	Mapped
	Closed
)

func (s State) String() string {
	switch s {
	case Mapped:
		return "mapped"
	case Closed:
		return "closed"
	default:
		return "unopened"
	}
}

// File is a memory-mapped file. The zero value is an unopened File.
type File struct {
	region   mapping.Region
	path     string
	writable bool
	state    State
}

// Open maps the whole file at path, read-only or read-write. The returned
// File is never nil: on failure it is in the zero state and err is an *Error.
func Open(path string, readOnly bool) (*File, error) {
	f := &File{}
	if err := f.Map(path, readOnly); err != nil {
		return f, err
	}
	return f, nil
}

// Map establishes a mapping on an unopened or closed File. Calling it on a
// mapped File fails with ErrAlreadyMapped and leaves the mapping untouched.
func (f *File) Map(path string, readOnly bool) error {
	if f.region.Mapped() {
		return &Error{Kind: KindAlreadyMapped, Op: "map", Path: path}
	}
	mode := mapping.ReadWrite
	if readOnly {
		mode = mapping.ReadOnly
	}
	r, err := mapping.Map(path, mode)
	if err != nil {
		return wrapStageError(path, err)
	}
	f.region = r
	f.path = path
	f.writable = !readOnly
	f.state = Mapped
	return nil
}

// Close unmaps the file and releases its platform handle. It is a no-op on a
// File that is not mapped. The File is reset even when the OS reports an
// error, which is returned for diagnostics only.
func (f *File) Close() error {
	if f == nil || !f.region.Mapped() {
		return nil
	}
	path := f.path
	err := f.region.Unmap()
	f.path = ""
	f.writable = false
	f.state = Closed
	if err != nil {
		return fmt.Errorf("mmapfile: close %s: %w", path, err)
	}
	return nil
}

// Bytes returns the mapped region, or nil when the File is not mapped. The
// slice must not be used after Close.
func (f *File) Bytes() []byte {
	return f.region.Data
}

// Len returns the size of the file at the time it was mapped.
func (f *File) Len() int {
	return len(f.region.Data)
}

// Handle returns the platform identifier retained for release.
func (f *File) Handle() Handle {
	return f.region.Handle
}

// Mapped reports whether the File holds an active mapping.
func (f *File) Mapped() bool {
	return f.region.Mapped()
}

// Writable reports whether the mapping was established read-write.
func (f *File) Writable() bool {
	return f.writable
}

// Path returns the path of the mapped file, or "" when not mapped.
func (f *File) Path() string {
	return f.path
}

// State returns the lifecycle position of f.
func (f *File) State() State {
	return f.state
}

// ReadAt implements io.ReaderAt over the mapped region.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if !f.region.Mapped() {
		return 0, ErrNotMapped
	}
	if off < 0 {
		return 0, ErrInvalidOffset
	}
	if off >= int64(len(f.region.Data)) {
		return 0, io.EOF
	}
	n := copy(p, f.region.Data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
