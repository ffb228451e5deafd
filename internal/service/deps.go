package service

import (
	"context"

	"github.com/makeasinger/stemsplit/internal/model"
)

// MediaProcessor is the container collaborator: decode, remux, transcode.
type MediaProcessor interface {
	DecodeToWAV(ctx context.Context, inputPath string) ([]byte, error)
	Remux(ctx context.Context, videoPath, audioPath string) ([]byte, error)
	Transcode(ctx context.Context, pcm []byte, format model.Format) ([]byte, error)
}

// Dispatcher hands a queued job to a background worker.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobID string) error
}

// Publisher receives job lifecycle events for live subscribers.
type Publisher interface {
	Progress(jobID string, progress int, status model.JobStatus, step string)
	Complete(jobID string, result model.StatusResponse)
	Failed(jobID, code, message string)
	Deleted(jobID string)
}

type nopPublisher struct{}

func (nopPublisher) Progress(string, int, model.JobStatus, string) {}
func (nopPublisher) Complete(string, model.StatusResponse) {}
func (nopPublisher) Failed(string, string, string) {}
func (nopPublisher) Deleted(string) {}
