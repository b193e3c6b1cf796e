package cache

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"vividd/pkg/types"
)

// EnsureDownloaded makes the artifact locally available, downloading it if
// necessary. Concurrent calls for the same artifact converge onto one
// in-flight download and all observe its outcome. The disk admission
// check runs inside the flight so two racing callers cannot both pass it
// before either consumes the space.
func (m *Manager) EnsureDownloaded(ctx context.Context, id string, onProgress func(percent int)) error {
	art, ok := m.reg.Get(id)
	if !ok {
		return ErrArtifactNotFound(id)
	}
	if m.Present(id) && m.ValidateIntegrity(id) {
		if onProgress != nil {
			onProgress(100)
		}
		return nil
	}
	_, err, _ := m.flight.Do(id, func() (any, error) {
		return nil, m.download(ctx, art, onProgress)
	})
	return err
}

// download runs under the artifact's flight.
func (m *Manager) download(ctx context.Context, art types.Artifact, onProgress func(int)) error {
	start := time.Now()

	// A flight that completed while we queued behind Do already made the
	// artifact present; re-check before doing any work.
	if m.Present(art.ID) && m.ValidateIntegrity(art.ID) {
		if onProgress != nil {
			onProgress(100)
		}
		return nil
	}

	ok, required, available, err := m.CheckAdmission(art.ID)
	if err != nil {
		return err
	}
	if !ok {
		m.log.Warn().Str("artifact", art.ID).
			Int64("required", required).Int64("available", available).
			Msg("download denied: insufficient storage")
		m.pub.Publish(Event{Name: "download_denied", ArtifactID: art.ID,
			Fields: map[string]any{"required": required, "available": available}})
		return insufficientStorageError{id: art.ID, required: required, available: available}
	}

	m.mu.Lock()
	e := m.entry(art.ID)
	e.Present = false
	e.LocalPath = ""
	e.ProgressPercent = 0
	e.Status = types.DownloadInFlight
	m.mu.Unlock()
	if err := m.persist(); err != nil {
		return err
	}
	m.log.Info().Str("artifact", art.ID).Int64("expected_bytes", art.ExpectedBytes).Msg("download start")
	m.pub.Publish(Event{Name: "download_start", ArtifactID: art.ID, Fields: map[string]any{}})
	downloadsStarted.Inc()

	staging := filepath.Join(m.cacheDir, ".staging", art.ID)
	_ = os.RemoveAll(staging)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		m.markFailed(art.ID)
		return downloadFailedError{id: art.ID, cause: err}
	}

	last := 0
	report := func(pct int) {
		if pct <= last {
			return
		}
		if pct > 100 {
			pct = 100
		}
		persistDue := pct-last >= m.step || pct == 100
		last = pct
		m.mu.Lock()
		m.entry(art.ID).ProgressPercent = pct
		m.mu.Unlock()
		if persistDue {
			_ = m.persist()
			m.pub.Publish(Event{Name: "download_progress", ArtifactID: art.ID,
				Fields: map[string]any{"percent": pct}})
		}
		if onProgress != nil {
			onProgress(pct)
		}
	}

	if err := m.fetcher.Fetch(ctx, art, staging, report); err != nil {
		m.markFailed(art.ID)
		_ = os.RemoveAll(staging)
		downloadsFailed.Inc()
		m.log.Error().Str("artifact", art.ID).Err(err).Msg("download failed")
		m.pub.Publish(Event{Name: "download_failed", ArtifactID: art.ID,
			Fields: map[string]any{"error": err.Error()}})
		return downloadFailedError{id: art.ID, cause: err}
	}

	final := filepath.Join(m.cacheDir, art.ID)
	_ = os.RemoveAll(final)
	if err := os.Rename(staging, final); err != nil {
		m.markFailed(art.ID)
		_ = os.RemoveAll(staging)
		downloadsFailed.Inc()
		return downloadFailedError{id: art.ID, cause: err}
	}

	if !m.filesComplete(art.ID, final) {
		m.markFailed(art.ID)
		_ = os.RemoveAll(final)
		downloadsFailed.Inc()
		m.log.Error().Str("artifact", art.ID).Msg("integrity check failed after download")
		m.pub.Publish(Event{Name: "download_integrity_failed", ArtifactID: art.ID, Fields: map[string]any{}})
		return integrityError{id: art.ID}
	}

	m.mu.Lock()
	e = m.entry(art.ID)
	e.Present = true
	e.LocalPath = final
	e.ProgressPercent = 100
	e.Status = types.DownloadPresent
	m.mu.Unlock()
	if err := m.persist(); err != nil {
		// The files are verified complete, so the artifact is ready; the
		// stale disk record only costs a re-fetch after a restart.
		m.log.Error().Str("artifact", art.ID).Err(err).Msg("status persist failed after download")
	}
	if onProgress != nil && last < 100 {
		onProgress(100)
	}
	downloadsCompleted.Inc()
	m.log.Info().Str("artifact", art.ID).Dur("dur", time.Since(start)).Msg("download complete")
	m.pub.Publish(Event{Name: "download_complete", ArtifactID: art.ID,
		Fields: map[string]any{"dur_ms": int(time.Since(start) / time.Millisecond)}})
	return nil
}

// markFailed records a failed attempt. The entry is never left present.
func (m *Manager) markFailed(id string) {
	m.mu.Lock()
	e := m.entry(id)
	e.Present = false
	e.LocalPath = ""
	e.Status = types.DownloadFailedState
	m.mu.Unlock()
	_ = m.persist()
}
