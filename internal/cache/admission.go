package cache

// CheckAdmission computes whether free disk space can hold the artifact
// plus the configured safety margin (filesystem overhead, metadata). Pure
// read: it never mutates cache state. The comparison is strict, so free
// space exactly at the margin is denied.
func (m *Manager) CheckAdmission(id string) (ok bool, requiredBytes, availableBytes int64, err error) {
	art, found := m.reg.Get(id)
	if !found {
		return false, 0, 0, ErrArtifactNotFound(id)
	}
	free, err := m.diskFree(m.cacheDir)
	if err != nil {
		return false, 0, 0, err
	}
	requiredBytes = art.ExpectedBytes + art.ExpectedBytes*int64(m.margin)/100
	availableBytes = int64(free)
	return availableBytes > requiredBytes, requiredBytes, availableBytes, nil
}
