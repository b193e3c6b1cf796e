package tasks

import (
	"context"
	"sort"
	"time"

	"vividd/pkg/types"
)

// Progress checkpoints reported while a task executes.
const (
	progressStarted  = 10
	progressModelSet = 50
	progressDone     = 100
)

func (s *Store) worker() {
	defer s.wg.Done()
	for taskID := range s.queue {
		s.run(taskID)
	}
}

// run drives one task from pending to a terminal state:
// processing(10) -> artifact ready -> processing(50) -> inference ->
// completed(100) or failed. Failures keep the last observed progress.
func (s *Store) run(taskID string) {
	start := time.Now()
	s.mu.RLock()
	t, ok := s.tasks[taskID]
	if !ok {
		s.mu.RUnlock()
		return
	}
	kind := t.Kind
	params := t.Params
	userID := t.UserID
	cost := t.CostCredits
	s.mu.RUnlock()

	s.mutate(taskID, func(t *types.Task) {
		t.Status = types.TaskProcessing
		t.ProgressPercent = progressStarted
	})

	ctx := context.Background()
	artifactID, err := s.pickArtifact(kind)
	if err == nil {
		err = s.cache.EnsureDownloaded(ctx, artifactID, nil)
	}
	if err != nil {
		s.fail(taskID, userID, cost, "model not available: "+err.Error())
		return
	}

	s.mutate(taskID, func(t *types.Task) {
		t.ProgressPercent = progressModelSet
	})

	path, _ := s.cache.LocalPath(artifactID)
	output, err := s.inf.Generate(ctx, kind, params, path)
	if err != nil {
		s.fail(taskID, userID, cost, "generation failed: "+err.Error())
		return
	}

	s.mutate(taskID, func(t *types.Task) {
		t.Status = types.TaskCompleted
		t.ProgressPercent = progressDone
		t.OutputLocation = output
		done := s.now()
		t.CompletedAt = &done
	})
	tasksCompleted.Inc()
	s.log.Info().Str("task", taskID).Dur("dur", time.Since(start)).Msg("task completed")
}

// fail records the terminal failure. Progress stays where it was. The
// deduction is only compensated when the refund policy is enabled.
func (s *Store) fail(taskID, userID string, cost int64, msg string) {
	s.mutate(taskID, func(t *types.Task) {
		t.Status = types.TaskFailed
		t.ErrorMessage = msg
		done := s.now()
		t.CompletedAt = &done
	})
	tasksFailed.Inc()
	s.log.Error().Str("task", taskID).Str("reason", msg).Msg("task failed")
	if s.refund {
		if err := s.ledger.Credit(userID, cost, "task_refund", taskID); err != nil {
			s.log.Error().Str("task", taskID).Err(err).Msg("refund failed")
		}
	}
}

// pickArtifact selects the model for a task kind: the largest present
// artifact wins, otherwise the first catalog match (which the executor
// will then download).
func (s *Store) pickArtifact(kind types.ArtifactKind) (string, error) {
	candidates := s.cache.Registry()
	matches := candidates[:0:0]
	for _, a := range candidates {
		if a.Kind == kind {
			matches = append(matches, a)
		}
	}
	if len(matches) == 0 {
		return "", ErrInvalidParams("no artifact for kind: " + string(kind))
	}
	present := matches[:0:0]
	for _, a := range matches {
		if s.cache.Present(a.ID) {
			present = append(present, a)
		}
	}
	if len(present) > 0 {
		sort.Slice(present, func(i, j int) bool { return present[i].ExpectedBytes > present[j].ExpectedBytes })
		return present[0].ID, nil
	}
	return matches[0].ID, nil
}
