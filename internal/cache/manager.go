// Package cache manages the on-disk presence of model artifacts: download
// with per-artifact single-flight, disk-space admission, integrity
// validation, eviction and crash-consistent persisted state.
package cache

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"vividd/internal/common/fsutil"
	"vividd/internal/registry"
	"vividd/internal/store"
	"vividd/pkg/types"
)

const statusFile = "cache-status.json"

const (
	defaultMarginPercent = 20
	defaultProgressStep  = 5
	defaultFetchTimeout  = 30 * time.Minute
)

// Config holds construction parameters for a Manager.
type Config struct {
	// CacheDir is where artifacts and the status document live.
	CacheDir string
	// MarginPercent is the disk admission safety margin (default 20).
	MarginPercent int
	// ProgressStepPercent controls how often progress is persisted (default 5).
	ProgressStepPercent int
	// Fetcher performs the actual network transfer. Defaults to an HTTP
	// fetcher with a 30 minute attempt bound.
	Fetcher Fetcher
	// DiskFree reports free bytes for a path. Defaults to statfs.
	DiskFree func(path string) (uint64, error)
	// Publisher receives download lifecycle events.
	Publisher EventPublisher
	Logger    zerolog.Logger
}

// Manager owns cache entries and the single-flight download discipline.
type Manager struct {
	reg        *registry.Registry
	cacheDir   string
	statusPath string
	margin     int
	step       int

	mu      sync.RWMutex
	entries map[string]*types.CacheEntry

	flight   singleflight.Group
	fetcher  Fetcher
	diskFree func(path string) (uint64, error)
	pub      EventPublisher
	log      zerolog.Logger
}

// New builds a Manager, loads persisted cache state and demotes entries
// whose local files no longer pass integrity (crash mid-download, manual
// deletion). The demotion is persisted before New returns.
func New(reg *registry.Registry, cfg Config) (*Manager, error) {
	m := &Manager{
		reg:        reg,
		cacheDir:   cfg.CacheDir,
		statusPath: filepath.Join(cfg.CacheDir, statusFile),
		margin:     cfg.MarginPercent,
		step:       cfg.ProgressStepPercent,
		entries:    make(map[string]*types.CacheEntry),
		fetcher:    cfg.Fetcher,
		diskFree:   cfg.DiskFree,
		pub:        cfg.Publisher,
		log:        cfg.Logger,
	}
	if m.margin <= 0 {
		m.margin = defaultMarginPercent
	}
	if m.step <= 0 {
		m.step = defaultProgressStep
	}
	if m.fetcher == nil {
		m.fetcher = NewHTTPFetcher(defaultFetchTimeout)
	}
	if m.diskFree == nil {
		m.diskFree = freeBytes
	}
	if m.pub == nil {
		m.pub = noopPublisher{}
	}

	if err := fsutil.EnsureDir(m.cacheDir); err != nil {
		return nil, err
	}
	var persisted map[string]*types.CacheEntry
	if _, err := store.LoadJSON(m.statusPath, &persisted); err != nil {
		return nil, err
	}
	for id, e := range persisted {
		if _, known := reg.Get(id); !known {
			continue
		}
		e.ArtifactID = id
		m.entries[id] = e
	}
	m.verifyAll()
	if err := m.persist(); err != nil {
		return nil, err
	}
	return m, nil
}

// verifyAll re-checks every loaded entry against the filesystem. Anything
// not provably complete is demoted to absent so a restart never reports a
// partial artifact as present.
func (m *Manager) verifyAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.entries {
		if e.Present && e.Status == types.DownloadPresent && m.filesComplete(id, e.LocalPath) {
			continue
		}
		if e.Status != types.DownloadAbsent {
			m.log.Warn().Str("artifact", id).Str("was", string(e.Status)).Msg("demoting stale cache entry")
		}
		e.Present = false
		e.LocalPath = ""
		e.ProgressPercent = 0
		e.Status = types.DownloadAbsent
	}
}

// Registry returns the artifact catalog.
func (m *Manager) Registry() []types.Artifact { return m.reg.List() }

// Status returns the cache entry for id, synthesizing an absent entry for
// known artifacts that have never been referenced.
func (m *Manager) Status(id string) (types.CacheEntry, error) {
	if _, ok := m.reg.Get(id); !ok {
		return types.CacheEntry{}, ErrArtifactNotFound(id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[id]; ok {
		return *e, nil
	}
	return types.CacheEntry{ArtifactID: id, Status: types.DownloadAbsent}, nil
}

// LocalPath returns the on-disk location of a present artifact.
func (m *Manager) LocalPath(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[id]; ok && e.Present {
		return e.LocalPath, true
	}
	return "", false
}

// Present reports whether id is downloaded and complete.
func (m *Manager) Present(id string) bool {
	_, ok := m.LocalPath(id)
	return ok
}

// entry returns the mutable record for id, creating it lazily.
// Callers hold m.mu.
func (m *Manager) entry(id string) *types.CacheEntry {
	e, ok := m.entries[id]
	if !ok {
		e = &types.CacheEntry{ArtifactID: id, Status: types.DownloadAbsent}
		m.entries[id] = e
	}
	return e
}

// persist writes the status document. Called after every entry mutation so
// external observers and a restarted process see the last completed step.
func (m *Manager) persist() error {
	m.mu.RLock()
	snap := make(map[string]*types.CacheEntry, len(m.entries))
	for id, e := range m.entries {
		cp := *e
		snap[id] = &cp
	}
	m.mu.RUnlock()
	return store.SaveJSON(m.statusPath, snap)
}

// Stats summarizes catalog, presence and disk usage.
func (m *Manager) Stats() types.CacheStats {
	stats := types.CacheStats{CacheDir: m.cacheDir, TotalCount: m.reg.Len()}
	if free, err := m.diskFree(m.cacheDir); err == nil {
		stats.AvailableBytes = int64(free)
	}
	for _, a := range m.reg.List() {
		e, _ := m.Status(a.ID)
		as := types.ArtifactStatus{
			Artifact:        a,
			Present:         e.Present,
			ProgressPercent: e.ProgressPercent,
			Download:        e.Status,
		}
		if e.Present {
			stats.DownloadedCount++
			if sz, err := fsutil.DirSize(e.LocalPath); err == nil {
				stats.UsedBytes += sz
			}
		}
		stats.Artifacts = append(stats.Artifacts, as)
	}
	return stats
}
