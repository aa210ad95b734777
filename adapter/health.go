// Package adapter provides adapters for plugin-mmap integration with external systems.
package adapter

import (
	"fmt"

	"github.com/heptiolabs/healthcheck"

	"github.com/srediag/plugin-mmap/api"
	"github.com/srediag/plugin-mmap/internal/health"
	"github.com/srediag/plugin-mmap/pkg/mapper"
)

// HealthLimits are the thresholds checked by the health handler. Zero
// disables a check.
type HealthLimits struct {
	MaxLiveMappings    int
	MaxMappedBytes     int64
	MaxOpenDescriptors int32
	MaxGoroutines      int
}

// LimitsFromConfig derives health thresholds from a manager configuration.
func LimitsFromConfig(config *mapper.Config) HealthLimits {
	return HealthLimits{
		MaxLiveMappings:    config.MaxLiveMappings,
		MaxMappedBytes:     config.MaxMappedBytes,
		MaxOpenDescriptors: config.MaxOpenDescriptors,
	}
}

// NewHealthHandler serves /live and /ready. Liveness fails when the process
// exceeds its descriptor or goroutine budget; readiness fails once stats
// report the mapping limits are reached.
func NewHealthHandler(stats api.Stats, limits HealthLimits) healthcheck.Handler {
	h := healthcheck.NewHandler()
	h.AddLivenessCheck("open-descriptors", health.DescriptorBudget(limits.MaxOpenDescriptors))
	if limits.MaxGoroutines > 0 {
		h.AddLivenessCheck("goroutines", healthcheck.GoroutineCountCheck(limits.MaxGoroutines))
	}
	h.AddReadinessCheck("live-mappings", func() error {
		if limits.MaxLiveMappings > 0 && stats.Live() >= limits.MaxLiveMappings {
			return fmt.Errorf("%d live mappings at limit %d", stats.Live(), limits.MaxLiveMappings)
		}
		return nil
	})
	h.AddReadinessCheck("mapped-bytes", func() error {
		if limits.MaxMappedBytes > 0 && stats.MappedBytes() >= limits.MaxMappedBytes {
			return fmt.Errorf("%d mapped bytes at limit %d", stats.MappedBytes(), limits.MaxMappedBytes)
		}
		return nil
	})
	return h
}
