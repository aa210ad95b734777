// Package health contains internal helpers for process resource probes used
// by liveness checks and leak tests.
package health

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/process"
)

// OpenDescriptors returns the number of file descriptors (handles on
// Windows) held by the current process.
func OpenDescriptors() (int32, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, fmt.Errorf("process lookup: %w", err)
	}
	n, err := p.NumFDs()
	if err != nil {
		return 0, fmt.Errorf("descriptor count: %w", err)
	}
	return n, nil
}

// DescriptorBudget returns a check failing once the process holds more than
// max descriptors. A max of zero disables the check. Platforms where the
// count is unavailable pass.
func DescriptorBudget(max int32) func() error {
	return func() error {
		if max <= 0 {
			return nil
		}
		n, err := OpenDescriptors()
		if err != nil {
			return nil
		}
		if n > max {
			return fmt.Errorf("open descriptors %d exceed budget %d", n, max)
		}
		return nil
	}
}
