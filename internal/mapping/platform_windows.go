//go:build windows

package mapping

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Syscall entry points, replaced in tests to exercise partial failures.
var (
	sysCreateFile        = windows.CreateFile
	sysFileInformation   = windows.GetFileInformationByHandle
	sysCreateFileMapping = windows.CreateFileMapping
	sysMapViewOfFile     = windows.MapViewOfFile
	sysUnmapViewOfFile   = windows.UnmapViewOfFile
	sysCloseHandle       = windows.CloseHandle
)

// Map opens path, sizes it and maps a view of the whole file. The file handle
// is closed as soon as the mapping object exists; only the mapping object is
// kept for Unmap.
func Map(path string, mode Mode) (Region, error) {
	access := uint32(windows.GENERIC_READ)
	protect := uint32(windows.PAGE_READONLY)
	view := uint32(windows.FILE_MAP_READ)
	if mode == ReadWrite {
		access |= windows.GENERIC_WRITE
		protect = windows.PAGE_READWRITE
		view = windows.FILE_MAP_WRITE
	}

	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return Region{}, &StageError{Stage: StageOpen, Err: err}
	}

	file, err := sysCreateFile(name, access,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE, nil,
		windows.OPEN_EXISTING, windows.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		return Region{}, &StageError{Stage: StageOpen, Err: err}
	}
	acquired()

	var info windows.ByHandleFileInformation
	if err := sysFileInformation(file, &info); err != nil {
		closeHandle(file)
		return Region{}, &StageError{Stage: StageStat, Err: err}
	}

	size, err := checkSize(int64(info.FileSizeHigh)<<32 | int64(info.FileSizeLow))
	if err != nil {
		closeHandle(file)
		return Region{}, &StageError{Stage: StageMap, Err: err}
	}

	// Zero maximum size maps the file at its current length.
	object, err := sysCreateFileMapping(file, nil, protect, 0, 0, nil)
	if err != nil {
		closeHandle(file)
		return Region{}, &StageError{Stage: StageMap, Err: err}
	}
	acquired()

	addr, err := sysMapViewOfFile(object, view, 0, 0, uintptr(size))
	if err != nil {
		closeHandle(object)
		closeHandle(file)
		return Region{}, &StageError{Stage: StageMap, Err: err}
	}
	acquired()
	regions.Add(1)

	closeHandle(file)

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	return Region{Data: data, Handle: MappingObjectHandle(uintptr(object))}, nil
}

// Unmap releases the view and then the mapping object, and resets r. Both
// releases are attempted; the first error is returned.
func (r *Region) Unmap() error {
	if !r.Mapped() {
		return nil
	}
	var first error
	if err := sysUnmapViewOfFile(uintptr(unsafe.Pointer(&r.Data[0]))); err != nil {
		first = fmt.Errorf("UnmapViewOfFile: %w", err)
	}
	released()
	regions.Add(-1)

	if r.Handle.Kind() == HandleMappingObject {
		if err := sysCloseHandle(windows.Handle(r.Handle.Value())); err != nil && first == nil {
			first = fmt.Errorf("CloseHandle: %w", err)
		}
		released()
	}
	*r = Region{}
	return first
}

func closeHandle(h windows.Handle) {
	_ = sysCloseHandle(h)
	released()
}
