package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/makeasinger/stemsplit/internal/logging"
	"github.com/makeasinger/stemsplit/internal/model"
	"github.com/makeasinger/stemsplit/internal/store"
)

// Get returns a snapshot of a job.
func (m *JobManager) Get(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := m.store.Get(ctx, jobID)
	if err != nil {
		return nil, notFound(jobID, err)
	}
	return job, nil
}

// completed returns the job only once it has stems to serve.
func (m *JobManager) completed(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := m.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusCompleted {
		return nil, fmt.Errorf("job %s is %s: %w", jobID, job.Status, ErrNotReady)
	}
	return job, nil
}

// Stem returns the encoded WAV bytes of one track of a completed job.
func (m *JobManager) Stem(ctx context.Context, jobID, track string) ([]byte, error) {
	job, err := m.completed(ctx, jobID)
	if err != nil {
		return nil, err
	}
	data, ok := job.Stems[track]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", jobID, track, ErrTrackNotFound)
	}
	return data, nil
}

// Delete removes a job. A staged upload that no worker has claimed yet is
// dropped, a retained video is released by the store, and archived stems
// are removed best-effort. An in-flight worker is not stopped; its remaining
// writes find no record and are discarded.
func (m *JobManager) Delete(ctx context.Context, jobID string) error {
	job, err := m.store.Get(ctx, jobID)
	if err != nil {
		return notFound(jobID, err)
	}
	if err := m.store.Delete(ctx, jobID); err != nil {
		return notFound(jobID, err)
	}
	m.drop(jobID)
	m.events.Deleted(jobID)
	m.logger.Info("job cleared", logging.JobID(jobID), zap.String("status", string(job.Status)))

	if m.archive != nil && job.Status == model.JobStatusCompleted {
		rctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := m.archive.Remove(rctx, jobID, job.TrackNames()); err != nil {
			m.logger.Warn("archived stems not removed", logging.JobID(jobID), zap.Error(err))
		}
	}
	return nil
}

// Share returns a presigned link to an archived stem.
func (m *JobManager) Share(ctx context.Context, jobID, track string) (string, time.Time, error) {
	if m.archive == nil {
		return "", time.Time{}, ErrArchiveDisabled
	}
	if _, err := m.Stem(ctx, jobID, track); err != nil {
		return "", time.Time{}, err
	}
	return m.archive.ShareURL(ctx, jobID, track)
}

// Archiving reports whether stems of completed jobs are mirrored to object
// storage.
func (m *JobManager) Archiving() bool {
	return m.archive != nil
}

func notFound(jobID string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("job %s: %w", jobID, ErrJobNotFound)
	}
	return err
}
