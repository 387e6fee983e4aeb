package adapter

import (
	"log/slog"
	"sync"

	"github.com/hermitretro/fatfuse/internal/fat"
	"github.com/hermitretro/fatfuse/internal/metrics"
)

// mountState owns the volume's mount lifecycle: lazily mounted on first
// use, invalidated when a disk-level fault shows the medium went away,
// remounted on the next use. One mutex guards the state transitions so a
// remount cannot race an invalidation.
type mountState struct {
	mu      sync.Mutex
	vol     fat.Volume
	mounted bool
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// ensure is the lazy-mount check: a no-op while mounted, otherwise one
// mount attempt. There is no retry here; the caller surfaces the mapped
// error and the next operation tries again.
func (m *mountState) ensure() fat.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mounted {
		return fat.ResultOK
	}
	if r := m.vol.Mount(true); r != fat.ResultOK {
		m.logger.Warn("mount failed", "result", r)
		return r
	}
	m.mounted = true
	m.metrics.Mount()
	m.logger.Info("volume mounted")
	return fat.ResultOK
}

// observe inspects a library result for evidence the card was pulled. A
// disk-level error invalidates the mount so the next operation starts from
// a fresh one.
func (m *mountState) observe(r fat.Result) {
	if r != fat.ResultDiskErr {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.mounted {
		return
	}
	m.mounted = false
	m.metrics.MountFault()
	m.logger.Warn("disk fault, invalidating mount")
	if ur := m.vol.Unmount(); ur != fat.ResultOK {
		m.logger.Warn("unmount after fault failed", "result", ur)
	}
}
