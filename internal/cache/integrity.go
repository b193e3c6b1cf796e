package cache

import (
	"path/filepath"

	"vividd/internal/common/fsutil"
)

// ValidateIntegrity confirms the mandatory file set for the artifact
// exists under its local path. Used after download and at process start
// to demote stale entries.
func (m *Manager) ValidateIntegrity(id string) bool {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok || !e.Present || e.LocalPath == "" {
		return false
	}
	return m.filesComplete(id, e.LocalPath)
}

// filesComplete checks the mandatory file set under dir.
func (m *Manager) filesComplete(id, dir string) bool {
	if dir == "" || !fsutil.PathExists(dir) {
		return false
	}
	for _, name := range m.reg.MandatoryFiles(id) {
		if !fsutil.PathExists(filepath.Join(dir, name)) {
			return false
		}
	}
	return true
}
