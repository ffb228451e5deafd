package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/makeasinger/stemsplit/internal/logging"
)

// Task types
const (
	TaskTypeSeparate = "separate:process"
	QueueSeparate    = "separate"
)

const taskRetention = 24 * time.Hour

type separatePayload struct {
	JobID string `json:"jobId"`
}

// NewSeparateTask builds the queue task for a job.
func NewSeparateTask(jobID string) (*asynq.Task, error) {
	data, err := json.Marshal(separatePayload{JobID: jobID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSeparate, data), nil
}

// SeparateWorker handles separation tasks delivered by asynq
type SeparateWorker struct {
	proc   Processor
	logger *zap.Logger
}

// NewSeparateWorker creates a new separate worker
func NewSeparateWorker(proc Processor, logger *zap.Logger) *SeparateWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeparateWorker{proc: proc, logger: logger.Named("separate")}
}

// ProcessTask runs the job named by the task. Failures are never retried:
// the staged upload is consumed by the first attempt.
func (w *SeparateWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload separatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.JobID == "" {
		return fmt.Errorf("task payload has no job id: %w", asynq.SkipRetry)
	}

	w.logger.Debug("task received", logging.JobID(payload.JobID))
	if err := w.proc.Process(ctx, payload.JobID); err != nil {
		return fmt.Errorf("job %s: %v: %w", payload.JobID, err, asynq.SkipRetry)
	}
	return nil
}

// AsynqDispatcher queues jobs through Redis and runs them on an asynq server
// inside this process. Uploads are staged in process memory, so the server
// must not be shared with other instances.
type AsynqDispatcher struct {
	client *asynq.Client
	server *asynq.Server
	worker *SeparateWorker
	logger *zap.Logger
}

// NewAsynqDispatcher creates a dispatcher; call Start to begin consuming.
func NewAsynqDispatcher(opt asynq.RedisClientOpt, proc Processor, concurrency int, logger *zap.Logger) *AsynqDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	logger = logger.Named("asynq")

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueSeparate: 1,
		},
		Logger:   logger.Sugar(),
		LogLevel: asynq.WarnLevel,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Warn("task failed", zap.String("type", task.Type()), zap.Error(err))
		}),
	})

	return &AsynqDispatcher{
		client: asynq.NewClient(opt),
		server: srv,
		worker: NewSeparateWorker(proc, logger),
		logger: logger,
	}
}

// Start runs the in-process asynq server.
func (d *AsynqDispatcher) Start() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeSeparate, d.worker.ProcessTask)
	if err := d.server.Start(mux); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	return nil
}

// Dispatch enqueues a job.
func (d *AsynqDispatcher) Dispatch(ctx context.Context, jobID string) error {
	task, err := NewSeparateTask(jobID)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	_, err = d.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueSeparate),
		asynq.MaxRetry(0),
		asynq.Retention(taskRetention),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// Close waits for active tasks and closes the Redis connection.
func (d *AsynqDispatcher) Close(context.Context) error {
	d.server.Shutdown()
	return d.client.Close()
}
