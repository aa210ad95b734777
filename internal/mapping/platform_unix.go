//go:build unix

package mapping

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Syscall entry points, replaced in tests to exercise partial failures.
var (
	sysOpen   = unix.Open
	sysFstat  = unix.Fstat
	sysMmap   = unix.Mmap
	sysMunmap = unix.Munmap
	sysClose  = unix.Close
)

// Map opens path, sizes it and maps the whole file with MAP_SHARED. The
// descriptor stays open until Unmap.
func Map(path string, mode Mode) (Region, error) {
	flags := unix.O_RDONLY
	prot := unix.PROT_READ
	if mode == ReadWrite {
		flags = unix.O_RDWR
		prot |= unix.PROT_WRITE
	}

	fd, err := sysOpen(path, flags|unix.O_CLOEXEC, 0)
	if err != nil {
		return Region{}, &StageError{Stage: StageOpen, Err: err}
	}
	acquired()

	var st unix.Stat_t
	if err := sysFstat(fd, &st); err != nil {
		closeDescriptor(fd)
		return Region{}, &StageError{Stage: StageStat, Err: err}
	}

	size, err := checkSize(st.Size)
	if err != nil {
		closeDescriptor(fd)
		return Region{}, &StageError{Stage: StageMap, Err: err}
	}

	data, err := sysMmap(fd, 0, size, prot, unix.MAP_SHARED)
	if err != nil {
		closeDescriptor(fd)
		return Region{}, &StageError{Stage: StageMap, Err: err}
	}
	acquired()
	regions.Add(1)

	return Region{Data: data, Handle: DescriptorHandle(fd)}, nil
}

// Unmap releases the mapping and then the descriptor, and resets r. Both
// releases are attempted; the first error is returned.
func (r *Region) Unmap() error {
	if !r.Mapped() {
		return nil
	}
	var first error
	if err := sysMunmap(r.Data); err != nil {
		first = fmt.Errorf("munmap: %w", err)
	}
	released()
	regions.Add(-1)

	if r.Handle.Kind() == HandleDescriptor {
		if err := sysClose(int(r.Handle.Value())); err != nil && first == nil {
			first = fmt.Errorf("close: %w", err)
		}
		released()
	}
	*r = Region{}
	return first
}

// closeDescriptor is used on failure paths where the open error is the one
// worth reporting.
func closeDescriptor(fd int) {
	_ = sysClose(fd)
	released()
}
