// Package mapper tracks memory-mapped files opened through pkg/mmapfile,
// enforcing mapping limits, retrying failed opens and reporting lifecycle
// events to api.Observer implementations.
package mapper

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/panjf2000/ants/v2"

	"github.com/srediag/plugin-mmap/api"
	"github.com/srediag/plugin-mmap/internal/audit"
	"github.com/srediag/plugin-mmap/pkg/mmapfile"
)

var (
	ErrLimitExceeded = errors.New("mapper: mapping limit exceeded")
	ErrManagerClosed = errors.New("mapper: manager closed")
)

const poolReleaseTimeout = time.Second

// Option customizes a Manager.
type Option func(*Manager)

// WithObservers adds observers notified after every open and close.
func WithObservers(obs ...api.Observer) Option {
	return func(m *Manager) {
		m.observers = append(m.observers, obs...)
	}
}

// Manager owns a set of live mappings. It is safe for concurrent use.
type Manager struct {
	config    Config
	observers api.Observers
	live      cmap.ConcurrentMap[string, *Mapping]
	pool      *ants.Pool
	trail     *audit.Trail
	seq       atomic.Uint64
	closed    atomic.Bool

	mu          sync.Mutex
	count       int
	mappedBytes int64
	// pending counts registered mappings whose open event is not yet emitted.
	pending sync.WaitGroup
}

// New validates config and starts a manager. A nil config means DefaultConfig.
func New(config *Config, opts ...Option) (*Manager, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := VerifyConfig(config); err != nil {
		return nil, err
	}
	pool, err := ants.NewPool(config.Workers)
	if err != nil {
		return nil, fmt.Errorf("mapper: worker pool: %w", err)
	}
	m := &Manager{
		config: *config,
		live:   cmap.New[*Mapping](),
		pool:   pool,
		trail:  audit.NewTrail(config.AuditCapacity),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Open maps path and registers the mapping. Failed opens are retried as
// configured; empty or oversized files and limit violations are not retried.
func (m *Manager) Open(ctx context.Context, path string, readOnly bool) (*Mapping, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}
	ev := api.Event{Op: api.OpOpen, Path: path, ReadOnly: readOnly, Start: time.Now()}

	f, attempts, err := m.openWithRetry(ctx, path, readOnly)
	ev.Attempts = attempts

	var mp *Mapping
	if err == nil {
		mp, err = m.register(f, path, readOnly, ev.Start)
	}
	ev.Duration = time.Since(ev.Start)
	ev.Err = err
	if mp != nil {
		ev.ID = mp.id
		ev.Size = mp.size
		internalLogger.infof("mapped %s id=%s size=%d", path, mp.id, ev.Size)
	} else {
		internalLogger.warnf("map %s failed after %d attempt(s): %v", path, attempts, err)
	}
	m.emit(ctx, ev)
	if mp != nil {
		m.pending.Done()
	}
	return mp, err
}

func (m *Manager) openWithRetry(ctx context.Context, path string, readOnly bool) (*mmapfile.File, int, error) {
	var (
		f        *mmapfile.File
		attempts int
		last     error
	)
	op := func() error {
		attempts++
		var err error
		f, err = mmapfile.Open(path, readOnly)
		if err == nil {
			return nil
		}
		last = err
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.config.RetryInterval), uint64(m.config.RetryAttempts)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		internalLogger.debugf("retrying %s in %s: %v", path, wait, err)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		// keep the last open failure alongside the context error
		if ctx.Err() != nil && last != nil && !errors.Is(err, last) {
			err = errors.Join(err, last)
		}
		return nil, attempts, err
	}
	return f, attempts, nil
}

func retryable(err error) bool {
	return !errors.Is(err, mmapfile.ErrEmptyFile) &&
		!errors.Is(err, mmapfile.ErrTooLarge) &&
		!errors.Is(err, mmapfile.ErrAlreadyMapped)
}

func (m *Manager) register(f *mmapfile.File, path string, readOnly bool, opened time.Time) (*Mapping, error) {
	size := int64(f.Len())

	m.mu.Lock()
	defer m.mu.Unlock()
	var err error
	switch {
	case m.closed.Load():
		err = ErrManagerClosed
	case m.config.MaxLiveMappings > 0 && m.count >= m.config.MaxLiveMappings:
		err = fmt.Errorf("%w: %d live mappings", ErrLimitExceeded, m.count)
	case m.config.MaxMappedBytes > 0 && m.mappedBytes+size > m.config.MaxMappedBytes:
		err = fmt.Errorf("%w: %d+%d bytes over %d", ErrLimitExceeded, m.mappedBytes, size, m.config.MaxMappedBytes)
	}
	if err != nil {
		if cerr := f.Close(); cerr != nil {
			internalLogger.errorf("release rejected mapping %s: %v", path, cerr)
		}
		return nil, err
	}

	m.count++
	m.mappedBytes += size
	mp := &Mapping{
		id:       strconv.FormatUint(m.seq.Add(1), 10),
		file:     f,
		path:     path,
		size:     size,
		readOnly: readOnly,
		opened:   opened,
		manager:  m,
	}
	m.live.Set(mp.id, mp)
	m.pending.Add(1)
	return mp, nil
}

func (m *Manager) release(ctx context.Context, mp *Mapping) error {
	if _, ok := m.live.Pop(mp.id); !ok {
		return nil
	}
	ev := api.Event{Op: api.OpClose, ID: mp.id, Path: mp.path, ReadOnly: mp.readOnly, Start: time.Now()}
	ev.Size = mp.size

	err := mp.file.Close()

	m.mu.Lock()
	m.count--
	m.mappedBytes -= ev.Size
	m.mu.Unlock()

	ev.Duration = time.Since(ev.Start)
	ev.Err = err
	if err != nil {
		internalLogger.errorf("unmap %s id=%s: %v", mp.path, mp.id, err)
	} else {
		internalLogger.infof("unmapped %s id=%s", mp.path, mp.id)
	}
	m.emit(ctx, ev)
	return err
}

func (m *Manager) emit(ctx context.Context, ev api.Event) {
	if err := m.trail.Record(ev); err != nil {
		internalLogger.tracef("audit trail: %v", err)
	}
	m.observers.Observe(ctx, ev)
}

// OpenAll maps every path on the worker pool. Either all mappings succeed or
// the successful ones are closed and the joined errors are returned.
func (m *Manager) OpenAll(ctx context.Context, paths []string, readOnly bool) ([]*Mapping, error) {
	if m.closed.Load() {
		return nil, ErrManagerClosed
	}
	results := make([]*Mapping, len(paths))
	errs := make([]error, len(paths))

	var wg sync.WaitGroup
	for i, path := range paths {
		i, path := i, path
		wg.Add(1)
		task := func() {
			defer wg.Done()
			results[i], errs[i] = m.Open(ctx, path, readOnly)
		}
		if err := m.pool.Submit(task); err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("mapper: schedule %s: %w", path, err)
		}
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		for _, mp := range results {
			if mp != nil {
				_ = mp.Close()
			}
		}
		return nil, err
	}
	return results, nil
}

// Lookup returns the live mapping with the given id.
func (m *Manager) Lookup(id string) (*Mapping, bool) {
	return m.live.Get(id)
}

// Live returns the number of live mappings.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// MappedBytes returns the total size of live mappings.
func (m *Manager) MappedBytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mappedBytes
}

// Snapshot lists live mappings in the order they were opened.
func (m *Manager) Snapshot() []api.MappingInfo {
	items := m.live.Items()
	infos := make([]api.MappingInfo, 0, len(items))
	for _, mp := range items {
		infos = append(infos, mp.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		a, _ := strconv.ParseUint(infos[i].ID, 10, 64)
		b, _ := strconv.ParseUint(infos[j].ID, 10, 64)
		return a < b
	})
	return infos
}

// Events returns the most recent lifecycle events, oldest first.
func (m *Manager) Events() []api.Event {
	events, err := m.trail.Events()
	if err != nil {
		internalLogger.warnf("audit trail: %v", err)
	}
	return events
}

// Close unmaps every live mapping and stops the worker pool. Later calls to
// Open fail with ErrManagerClosed.
func (m *Manager) Close() error {
	// register holds mu for its whole check-and-insert, so no mapping can
	// be added once closed is set and the snapshot is taken.
	m.mu.Lock()
	if m.closed.Load() {
		m.mu.Unlock()
		return nil
	}
	m.closed.Store(true)
	live := m.live.Items()
	m.mu.Unlock()

	var errs []error
	for _, mp := range live {
		if err := mp.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := m.pool.ReleaseTimeout(poolReleaseTimeout); err != nil {
		errs = append(errs, fmt.Errorf("mapper: release pool: %w", err))
	}
	m.pending.Wait()
	m.trail.Close()
	return errors.Join(errs...)
}
