package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/makeasinger/stemsplit/internal/client"
	"github.com/makeasinger/stemsplit/internal/logging"
	"github.com/makeasinger/stemsplit/internal/model"
)

const archiveParallelism = 4

// StemKey is the object key of an archived stem.
func StemKey(jobID, track string) string {
	return fmt.Sprintf("stems/%s/%s.wav", jobID, track)
}

// StemArchive mirrors completed stems to object storage so they can be
// shared through presigned links.
type StemArchive struct {
	store  client.ObjectStore
	expiry time.Duration
	logger *zap.Logger
}

func NewStemArchive(store client.ObjectStore, expiry time.Duration, logger *zap.Logger) *StemArchive {
	if expiry <= 0 {
		expiry = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StemArchive{store: store, expiry: expiry, logger: logger.Named("archive")}
}

// Store uploads every stem of a job.
func (a *StemArchive) Store(ctx context.Context, jobID string, stems map[string][]byte) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(archiveParallelism)
	for name, data := range stems {
		name, data := name, data
		g.Go(func() error {
			return a.store.Put(ctx, StemKey(jobID, name), data, model.FormatWAV.ContentType())
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("archive stems: %w", err)
	}
	a.logger.Debug("stems archived", logging.JobID(jobID), zap.Int("count", len(stems)))
	return nil
}

// Remove deletes the archived stems of a job, attempting every track.
func (a *StemArchive) Remove(ctx context.Context, jobID string, tracks []string) error {
	var g errgroup.Group
	g.SetLimit(archiveParallelism)
	for _, name := range tracks {
		name := name
		g.Go(func() error {
			return a.store.Delete(ctx, StemKey(jobID, name))
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("remove archived stems: %w", err)
	}
	return nil
}

// ShareURL returns a download link for an archived stem. Buckets behind a
// public domain get a permanent link and a zero expiry; otherwise the link
// is presigned.
func (a *StemArchive) ShareURL(ctx context.Context, jobID, track string) (string, time.Time, error) {
	key := StemKey(jobID, track)
	if url := a.store.PublicURL(key); url != "" {
		return url, time.Time{}, nil
	}
	expires := time.Now().Add(a.expiry)
	url, err := a.store.PresignGet(ctx, key, a.expiry)
	if err != nil {
		return "", time.Time{}, err
	}
	return url, expires, nil
}

// Ping checks the backing store.
func (a *StemArchive) Ping(ctx context.Context) error {
	return a.store.Ping(ctx)
}
