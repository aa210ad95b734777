package mapping

import "sync/atomic"

// outstanding counts OS resources (descriptors, handles, views) acquired by
// this package and not yet released. Tests use it to prove that every exit
// path of Map and Unmap is balanced.
var (
	outstanding atomic.Int64
	regions     atomic.Int64
)

func acquired() { outstanding.Add(1) }

func released() { outstanding.Add(-1) }

// Outstanding returns the number of OS resources currently held.
func Outstanding() int64 {
	return outstanding.Load()
}

// Regions returns the number of live mappings established by Map.
func Regions() int64 {
	return regions.Load()
}
