package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/makeasinger/stemsplit/internal/logging"
	"github.com/makeasinger/stemsplit/internal/model"
)

// MemoryStore is a process-lifetime JobStore backed by a map.
type MemoryStore struct {
	mu     sync.RWMutex
	jobs   map[string]*model.Job
	used   map[string]struct{}
	closed bool
	logger *zap.Logger
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		jobs:   make(map[string]*model.Job),
		used:   make(map[string]struct{}),
		logger: logger.Named("store"),
	}
}

func (s *MemoryStore) Create(_ context.Context, job *model.Job) (string, error) {
	if job == nil {
		return "", fmt.Errorf("create: nil job")
	}
	rec := job.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", fmt.Errorf("create: store closed")
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	// ids are never reused, even after delete
	if _, ok := s.used[rec.ID]; ok {
		return "", fmt.Errorf("create %s: %w", rec.ID, ErrExists)
	}
	s.used[rec.ID] = struct{}{}
	s.jobs[rec.ID] = rec
	return rec.ID, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Snapshot(), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn Mutator) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}

	if rec.Status.IsTerminal() {
		return nil, fmt.Errorf("update %s: %s is final: %w", id, rec.Status, ErrInvalidTransition)
	}

	work := rec.Snapshot()
	if err := fn(work); err != nil {
		return nil, err
	}
	if work.ID != rec.ID {
		return nil, fmt.Errorf("update %s: id is immutable", id)
	}
	if !CanTransition(rec.Status, work.Status) {
		return nil, fmt.Errorf("update %s: %s -> %s: %w", id, rec.Status, work.Status, ErrInvalidTransition)
	}

	s.jobs[id] = work
	return work.Snapshot(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	rec, ok := s.jobs[id]
	if ok {
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	s.release(rec)
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	jobs := s.jobs
	s.jobs = make(map[string]*model.Job)
	s.closed = true
	s.mu.Unlock()

	var errs []error
	for _, rec := range jobs {
		if err := s.release(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *MemoryStore) release(rec *model.Job) error {
	if rec.Video == nil {
		return nil
	}
	if err := rec.Video.Release(); err != nil {
		s.logger.Warn("failed to release retained video", logging.JobID(rec.ID), zap.Error(err))
		return err
	}
	return nil
}
