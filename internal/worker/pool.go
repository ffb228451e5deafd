// Package worker runs queued separation jobs in the background.
package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/makeasinger/stemsplit/internal/logging"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrClosed    = errors.New("worker pool is closed")
)

// Processor runs one job to a terminal state.
type Processor interface {
	Process(ctx context.Context, jobID string) error
}

// Pool is a fixed set of goroutines draining a bounded queue of job ids.
// Dispatch never blocks: a full queue is reported to the caller.
type Pool struct {
	proc        Processor
	concurrency int
	queue       chan string

	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool creates a pool; call Start to launch its workers.
func NewPool(proc Processor, concurrency, queueSize int, logger *zap.Logger) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		proc:        proc,
		concurrency: concurrency,
		queue:       make(chan string, queueSize),
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger.Named("pool"),
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.work(i)
	}
	p.logger.Info("worker pool started",
		zap.Int("concurrency", p.concurrency),
		zap.Int("queue_size", cap(p.queue)),
	)
}

func (p *Pool) work(n int) {
	defer p.wg.Done()
	log := p.logger.With(zap.Int("worker", n))
	for jobID := range p.queue {
		p.run(jobID, log)
	}
}

func (p *Pool) run(jobID string, log *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("processor panic", logging.JobID(jobID), zap.Any("panic", r))
		}
	}()
	if err := p.proc.Process(p.ctx, jobID); err != nil {
		log.Debug("job finished with error", logging.JobID(jobID), zap.Error(err))
	}
}

// Dispatch queues a job id.
func (p *Pool) Dispatch(_ context.Context, jobID string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.queue <- jobID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for the queue to drain. If ctx ends
// first, in-flight jobs are cancelled and Close waits for them to record
// their failure.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
