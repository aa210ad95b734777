//go:build !unix && !windows

package mapping

import "errors"

// Map always fails: the target has no file mapping facility.
func Map(path string, mode Mode) (Region, error) {
	return Region{}, &StageError{Stage: StageOpen, Err: errors.ErrUnsupported}
}

// Unmap resets r. No region can be mapped on this target.
func (r *Region) Unmap() error {
	*r = Region{}
	return nil
}
