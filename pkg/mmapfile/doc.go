// Package mmapfile maps a whole file into the process address space.
//
// The same two operations work on POSIX systems and on Windows:
//
//	f, err := mmapfile.Open("data.bin", true)
//	if err != nil {
//	  // f is a zero File; errors.Is tells which step failed
//	  return err
//	}
//	defer f.Close()
//	process(f.Bytes())
//
// Mappings are always shared: writes through a read-write File reach the
// underlying file and are visible to every other mapper of it. The package
// performs no flushing, locking, resizing or partial mapping.
//
// A File is not safe for concurrent Map/Close. Concurrent access to the
// mapped bytes must be coordinated by the caller.
package mmapfile
