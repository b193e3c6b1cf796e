package cache

import (
	"os"

	"vividd/pkg/types"
)

// Evict removes the local files for id and resets its entry to absent.
// Returns false when nothing was present to remove.
func (m *Manager) Evict(id string) (bool, error) {
	if _, ok := m.reg.Get(id); !ok {
		return false, ErrArtifactNotFound(id)
	}
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok || !e.Present {
		m.mu.Unlock()
		return false, nil
	}
	path := e.LocalPath
	e.Present = false
	e.LocalPath = ""
	e.ProgressPercent = 0
	e.Status = types.DownloadAbsent
	m.mu.Unlock()

	if err := m.persist(); err != nil {
		return false, err
	}
	if path != "" {
		if err := os.RemoveAll(path); err != nil {
			return false, err
		}
	}
	m.log.Info().Str("artifact", id).Msg("artifact evicted")
	m.pub.Publish(Event{Name: "evicted", ArtifactID: id, Fields: map[string]any{}})
	return true, nil
}

// EvictAllExcept removes every present artifact not named in keep.
// Returns the number of artifacts evicted.
func (m *Manager) EvictAllExcept(keep []string) (int, error) {
	keepSet := make(map[string]bool, len(keep))
	for _, id := range keep {
		keepSet[id] = true
	}
	evicted := 0
	for _, a := range m.reg.List() {
		if keepSet[a.ID] {
			continue
		}
		done, err := m.Evict(a.ID)
		if err != nil {
			return evicted, err
		}
		if done {
			evicted++
		}
	}
	return evicted, nil
}
