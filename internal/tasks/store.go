// Package tasks owns generation task records, their status transitions
// and the background executor that drives each task to a terminal state.
package tasks

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"vividd/internal/cache"
	"vividd/internal/ledger"
	"vividd/internal/store"
	"vividd/pkg/types"
)

const tasksFile = "tasks.json"

const (
	defaultWorkers    = 4
	defaultQueueDepth = 256
	terminalCacheSize = 1024
)

// Config holds construction parameters for a Store.
type Config struct {
	// DataDir is where the task table document lives.
	DataDir string
	// Workers is the executor pool size (default 4).
	Workers int
	// QueueDepth bounds pending executions before backpressure (default 256).
	QueueDepth int
	// RefundOnFailure issues a compensating credit when a task fails.
	RefundOnFailure bool
	Logger          zerolog.Logger
}

// Store creates, persists and reports generation tasks. Submission is the
// only admission gate: credits are deducted before any record exists.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*types.Task

	// terminal caches immutable snapshots of finished tasks so status
	// polling stays cheap under load.
	terminal *lru.Cache[string, types.Task]

	ledger *ledger.Ledger
	cache  *cache.Manager
	inf    Inferencer

	queue  chan string
	wg     sync.WaitGroup
	closed bool

	tasksPath string
	refund    bool
	log       zerolog.Logger
	now       func() time.Time
}

// New builds a Store, restores the persisted task table and starts the
// worker pool. Tasks that were non-terminal at the last shutdown are
// marked failed: their in-memory execution state did not survive.
func New(l *ledger.Ledger, c *cache.Manager, inf Inferencer, cfg Config) (*Store, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	term, err := lru.New[string, types.Task](terminalCacheSize)
	if err != nil {
		return nil, err
	}
	s := &Store{
		tasks:     make(map[string]*types.Task),
		terminal:  term,
		ledger:    l,
		cache:     c,
		inf:       inf,
		queue:     make(chan string, depth),
		tasksPath: filepath.Join(cfg.DataDir, tasksFile),
		refund:    cfg.RefundOnFailure,
		log:       cfg.Logger,
		now:       time.Now,
	}
	var persisted map[string]*types.Task
	if _, err := store.LoadJSON(s.tasksPath, &persisted); err != nil {
		return nil, err
	}
	for id, t := range persisted {
		if !t.Status.IsTerminal() {
			t.Status = types.TaskFailed
			t.ErrorMessage = "interrupted by restart"
			done := s.now()
			t.CompletedAt = &done
			s.log.Warn().Str("task", id).Msg("demoting interrupted task to failed")
		}
		s.tasks[id] = t
		s.terminal.Add(id, *t)
	}
	if err := s.persist(); err != nil {
		return nil, err
	}

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s, nil
}

// Close stops accepting submissions and waits for in-flight executions.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	s.wg.Wait()
}

// Submit admits one generation request: cost is computed, credits are
// deducted, and only then is a task record created and scheduled. On any
// admission failure there is no side effect: no task, no deduction.
func (s *Store) Submit(userID string, kind types.ArtifactKind, params types.TaskParams) (types.Task, error) {
	if err := validate(kind, params); err != nil {
		return types.Task{}, err
	}
	cost := CostCredits(kind, params)
	taskID := uuid.NewString()

	okDeduct, err := s.ledger.TryDeduct(userID, cost, deductReason(kind, params), taskID)
	if err != nil {
		return types.Task{}, err
	}
	if !okDeduct {
		return types.Task{}, insufficientCreditsError{userID: userID, cost: cost}
	}

	t := &types.Task{
		ID:          taskID,
		UserID:      userID,
		Kind:        kind,
		Params:      params,
		Status:      types.TaskPending,
		CostCredits: cost,
		CreatedAt:   s.now(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = s.ledger.Credit(userID, cost, "task_rejected", taskID)
		return types.Task{}, tooBusyError{}
	}
	s.tasks[taskID] = t
	s.mu.Unlock()
	if err := s.persist(); err != nil {
		s.reject(taskID, userID, cost)
		return types.Task{}, err
	}

	// Close closes the queue only while holding the write lock; holding
	// the read lock here keeps this send and that close mutually
	// exclusive.
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		s.reject(taskID, userID, cost)
		return types.Task{}, tooBusyError{}
	}
	select {
	case s.queue <- taskID:
		s.mu.RUnlock()
	default:
		s.mu.RUnlock()
		// Queue full: undo the admission so the caller can retry later
		// without losing credits.
		s.reject(taskID, userID, cost)
		return types.Task{}, tooBusyError{}
	}

	tasksSubmitted.Inc()
	s.log.Info().Str("task", taskID).Str("user", userID).Str("kind", string(kind)).Int64("cost", cost).Msg("task submitted")
	return *t, nil
}

// reject undoes an admitted but unscheduled task: the record is removed
// and the deduction compensated, leaving no net side effect.
func (s *Store) reject(taskID, userID string, cost int64) {
	s.mu.Lock()
	delete(s.tasks, taskID)
	s.mu.Unlock()
	_ = s.persist()
	_ = s.ledger.Credit(userID, cost, "task_rejected", taskID)
}

// Status returns a snapshot of the task. Pure read; never blocks behind
// an executing task.
func (s *Store) Status(taskID string) (types.Task, error) {
	if t, ok := s.terminal.Get(taskID); ok {
		return t, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.tasks[taskID]; ok {
		return *t, nil
	}
	return types.Task{}, taskNotFoundError{id: taskID}
}

// List returns the user's tasks, newest first.
func (s *Store) List(userID string) []types.Task {
	s.mu.RLock()
	out := make([]types.Task, 0)
	for _, t := range s.tasks {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func validate(kind types.ArtifactKind, params types.TaskParams) error {
	switch kind {
	case types.KindTextToVideo:
	case types.KindImageToVideo:
		if params.ImagePath == "" {
			return ErrInvalidParams("image_path is required for image-to-video")
		}
	default:
		return ErrInvalidParams("unsupported task kind: " + string(kind))
	}
	if strings.TrimSpace(params.Prompt) == "" {
		return ErrInvalidParams("prompt is required")
	}
	if params.NumFrames <= 0 {
		return ErrInvalidParams("num_frames must be positive")
	}
	return nil
}

func deductReason(kind types.ArtifactKind, params types.TaskParams) string {
	p := params.Prompt
	if len(p) > 50 {
		p = p[:50]
	}
	return string(kind) + " generation: " + p
}

// mutate applies fn to the task under lock, persists the table, and
// snapshots terminal tasks into the read cache.
func (s *Store) mutate(taskID string, fn func(*types.Task)) {
	s.mu.Lock()
	t, ok := s.tasks[taskID]
	if !ok {
		s.mu.Unlock()
		return
	}
	fn(t)
	snap := *t
	s.mu.Unlock()
	_ = s.persist()
	if snap.Status.IsTerminal() {
		s.terminal.Add(taskID, snap)
	}
}

func (s *Store) persist() error {
	s.mu.RLock()
	snap := make(map[string]*types.Task, len(s.tasks))
	for id, t := range s.tasks {
		cp := *t
		snap[id] = &cp
	}
	s.mu.RUnlock()
	return store.SaveJSON(s.tasksPath, snap)
}
