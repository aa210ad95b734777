// Package mapping contains the platform-specific halves of the file mapping
// implementation. Map and (*Region).Unmap are provided by platform_unix.go and
// platform_windows.go; both report failures as a *StageError.
package mapping

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Mode selects the access requested for a mapping.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

func (m Mode) String() string {
	if m == ReadWrite {
		return "read-write"
	}
	return "read-only"
}

// HandleKind tags the platform resource kept to release a mapping.
type HandleKind uint8

const (
	HandleInvalid HandleKind = iota
	// HandleDescriptor is a POSIX file descriptor held for the mapping's lifetime.
	HandleDescriptor
	// HandleMappingObject is a Windows file-mapping object handle.
	HandleMappingObject
)

func (k HandleKind) String() string {
	switch k {
	case HandleDescriptor:
		return "fd"
	case HandleMappingObject:
		return "mapping"
	default:
		return "invalid"
	}
}

// Handle is an opaque platform resource identifier. The zero value is invalid.
type Handle struct {
	kind  HandleKind
	value uintptr
}

// DescriptorHandle wraps a POSIX file descriptor.
func DescriptorHandle(fd int) Handle {
	return Handle{kind: HandleDescriptor, value: uintptr(fd)}
}

// MappingObjectHandle wraps a Windows mapping-object handle.
func MappingObjectHandle(h uintptr) Handle {
	return Handle{kind: HandleMappingObject, value: h}
}

// Kind reports which platform resource the handle carries.
func (h Handle) Kind() HandleKind { return h.kind }

// Value returns the raw, width-portable identifier.
func (h Handle) Value() uintptr { return h.value }

// Valid reports whether the handle refers to a live resource.
func (h Handle) Valid() bool { return h.kind != HandleInvalid }

func (h Handle) String() string {
	if !h.Valid() {
		return "invalid"
	}
	return h.kind.String() + ":" + strconv.FormatUint(uint64(h.value), 10)
}

// Region is an established mapping together with the resource needed to
// release it. The zero Region is unmapped.
type Region struct {
	Data   []byte
	Handle Handle
}

// Mapped reports whether r holds an active mapping.
func (r *Region) Mapped() bool {
	return r != nil && r.Data != nil
}

// Stage identifies the step of Map that failed.
type Stage int

const (
	StageOpen Stage = iota + 1
	StageStat
	StageMap
)

func (s Stage) String() string {
	switch s {
	case StageOpen:
		return "open"
	case StageStat:
		return "stat"
	case StageMap:
		return "mmap"
	default:
		return "stage(" + strconv.Itoa(int(s)) + ")"
	}
}

// StageError is returned by Map. All resources acquired before Stage have
// already been released when it is returned.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

var (
	// ErrEmpty is reported at StageMap for zero-length files on every platform.
	ErrEmpty = errors.New("file is empty")
	// ErrTooLarge is reported at StageMap when the file does not fit the address space.
	ErrTooLarge = errors.New("file too large to map")
)

// checkSize applies the shared size policy between the stat and map steps.
func checkSize(size int64) (int, error) {
	if size == 0 {
		return 0, ErrEmpty
	}
	if size < 0 || uint64(size) > math.MaxInt {
		return 0, ErrTooLarge
	}
	return int(size), nil
}
