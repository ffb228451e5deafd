// Package store holds the job registry.
package store

import (
	"context"
	"errors"

	"github.com/makeasinger/stemsplit/internal/model"
)

var (
	ErrNotFound          = errors.New("job not found")
	ErrExists            = errors.New("job already exists")
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// Mutator edits a working copy of a job. Returning an error discards the edit.
type Mutator func(j *model.Job) error

// JobStore is the concurrency-safe registry of job records. Reads return
// snapshots; callers never hold a live reference into the store.
type JobStore interface {
	// Create registers job, assigning an id when it has none.
	Create(ctx context.Context, job *model.Job) (string, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	// Update applies fn atomically and returns the resulting snapshot.
	Update(ctx context.Context, id string, fn Mutator) (*model.Job, error)
	// Delete removes the record and releases its retained video.
	Delete(ctx context.Context, id string) error
	// Close releases every retained video. The store is unusable afterwards.
	Close() error
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to model.JobStatus) bool {
	if from == to {
		return !from.IsTerminal()
	}
	switch from {
	case model.JobStatusQueued:
		return to == model.JobStatusProcessing || to == model.JobStatusFailed
	case model.JobStatusProcessing:
		return to == model.JobStatusCompleted || to == model.JobStatusFailed
	default:
		return false
	}
}
