package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/makeasinger/stemsplit/internal/audio"
	"github.com/makeasinger/stemsplit/internal/client"
	"github.com/makeasinger/stemsplit/internal/logging"
	"github.com/makeasinger/stemsplit/internal/media"
	"github.com/makeasinger/stemsplit/internal/model"
	"github.com/makeasinger/stemsplit/internal/naming"
	"github.com/makeasinger/stemsplit/internal/store"
)

// Pipeline progress checkpoints.
const (
	progressStaged      = 5
	progressAnalyzing   = 10
	progressAnalyzed    = 15
	progressDecoded     = 25
	progressCanonical   = 35
	progressSeparated   = 70
	progressEncodedSpan = 25
	progressComplete    = 100
)

// CodeProcessingFailed is the error code published when a job fails.
const CodeProcessingFailed = "PROCESSING_FAILED"

const archiveTimeout = 2 * time.Minute

type pendingUpload struct {
	data   []byte
	format model.Format
}

// ManagerConfig holds the JobManager settings.
type ManagerConfig struct {
	TempDir string
	Device  string
}

// JobManager owns the job lifecycle: it queues uploads, runs the separation
// pipeline for each job on exactly one worker and answers queries against
// the store.
type JobManager struct {
	store     store.JobStore
	separator client.Separator
	analyzer  client.Analyzer
	media     MediaProcessor
	archive   *StemArchive
	events    Publisher
	dispatch  Dispatcher
	cfg       ManagerConfig
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	pending map[string]pendingUpload
}

// NewJobManager wires the pipeline collaborators. analyzer may be nil, in
// which case every job reports analysis as unavailable.
func NewJobManager(st store.JobStore, sep client.Separator, an client.Analyzer, mp MediaProcessor, cfg ManagerConfig, logger *zap.Logger) *JobManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobManager{
		store:     st,
		separator: sep,
		analyzer:  an,
		media:     mp,
		events:    nopPublisher{},
		cfg:       cfg,
		logger:    logger.Named("jobs"),
		now:       time.Now,
		pending:   make(map[string]pendingUpload),
	}
}

// SetDispatcher sets where queued jobs are sent. It must be called before
// the first Submit.
func (m *JobManager) SetDispatcher(d Dispatcher) {
	m.dispatch = d
}

// SetPublisher sets the receiver of lifecycle events.
func (m *JobManager) SetPublisher(p Publisher) {
	if p != nil {
		m.events = p
	}
}

// SetArchive enables mirroring completed stems to object storage.
func (m *JobManager) SetArchive(a *StemArchive) {
	m.archive = a
}

// Submit validates an upload, records a queued job and dispatches it. It
// returns as soon as the job is queued.
func (m *JobManager) Submit(ctx context.Context, filename string, data []byte) (*model.Job, error) {
	base, ext := naming.Split(filename)
	if strings.TrimSpace(filename) == "" || base == "" {
		return nil, fmt.Errorf("%w: filename is required", ErrInvalidUpload)
	}
	format, ok := model.ParseFormat(ext)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported file type %q", ErrInvalidUpload, ext)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidUpload)
	}
	if m.dispatch == nil {
		return nil, fmt.Errorf("job manager has no dispatcher")
	}

	job := &model.Job{
		ID:                uuid.NewString(),
		OriginalFilename:  base + "." + ext,
		OriginalExtension: format,
		Status:            model.JobStatusQueued,
		CreatedAt:         m.now(),
	}
	id, err := m.store.Create(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	m.mu.Lock()
	m.pending[id] = pendingUpload{data: data, format: format}
	m.mu.Unlock()

	if err := m.dispatch.Dispatch(ctx, id); err != nil {
		m.drop(id)
		_ = m.store.Delete(context.Background(), id)
		return nil, fmt.Errorf("failed to dispatch job: %w", err)
	}

	m.logger.Info("job queued",
		logging.JobID(id),
		zap.String("filename", job.OriginalFilename),
		zap.Int("bytes", len(data)),
	)
	job.ID = id
	return job, nil
}

// claim hands the staged upload to the calling worker. Only one caller can
// claim a given job.
func (m *JobManager) claim(jobID string) (pendingUpload, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	up, ok := m.pending[jobID]
	if ok {
		delete(m.pending, jobID)
	}
	return up, ok
}

func (m *JobManager) drop(jobID string) {
	m.mu.Lock()
	delete(m.pending, jobID)
	m.mu.Unlock()
}

// Process runs the pipeline of a queued job to a terminal state. Every
// failure, including a panic, is recorded on the job as Failed. A job cleared
// while processing is left cleared.
func (m *JobManager) Process(ctx context.Context, jobID string) (err error) {
	up, ok := m.claim(jobID)
	if !ok {
		m.logger.Warn("no staged upload, skipping", logging.JobID(jobID))
		return fmt.Errorf("process %s: %w", jobID, ErrUploadNotPending)
	}

	log := m.logger.With(logging.JobID(jobID))
	started := m.now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline panic", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("internal error: %v", r)
			m.fail(jobID, err)
		}
	}()

	err = m.run(ctx, jobID, up, log)
	switch {
	case err == nil:
		log.Info("job completed", zap.Duration("elapsed", m.now().Sub(started)))
		return nil
	case errors.Is(err, store.ErrNotFound):
		log.Info("job cleared while processing, result discarded")
		return nil
	default:
		m.fail(jobID, err)
		return err
	}
}

func (m *JobManager) run(ctx context.Context, jobID string, up pendingUpload, log *zap.Logger) error {
	now := m.now()
	_, err := m.store.Update(ctx, jobID, func(j *model.Job) error {
		j.Status = model.JobStatusProcessing
		j.StartedAt = &now
		j.CurrentStep = "Starting"
		return nil
	})
	if err != nil {
		return err
	}

	// Step 1: stage the upload on disk
	format := media.DetectContainer(up.data, up.format)
	// Export follows the declared extension, so the video is only worth
	// keeping when both agree it is one.
	keepVideo := format.IsVideo() && up.format.IsVideo()
	staged, err := media.NewTempFile(m.cfg.TempDir, string(format), up.data)
	if err != nil {
		return fmt.Errorf("stage upload: %w", err)
	}
	retained := false
	defer func() {
		if !retained {
			staged.Release()
		}
	}()
	if err := m.advance(ctx, jobID, progressStaged, "Upload staged"); err != nil {
		return err
	}

	// Step 2: best-effort analysis
	if err := m.advance(ctx, jobID, progressAnalyzing, "Analyzing key and tempo"); err != nil {
		return err
	}
	analysis := m.analyze(ctx, staged.Path(), log)
	if err := m.advance(ctx, jobID, progressAnalyzed, "Decoding audio"); err != nil {
		return err
	}

	// Step 3: decode at the native rate
	wave, err := m.decode(ctx, staged.Path(), format, up.data)
	if err != nil {
		return fmt.Errorf("decode audio: %w", err)
	}
	log.Debug("decoded",
		zap.Int("sample_rate", wave.SampleRate),
		zap.Int("channels", wave.NumChannels()),
		zap.Float64("seconds", wave.Duration()),
	)
	if err := m.advance(ctx, jobID, progressDecoded, "Preparing audio"); err != nil {
		return err
	}

	// Step 4: canonicalize for the model
	canon, err := audio.Canonicalize(wave, m.separator.SampleRate())
	if err != nil {
		return fmt.Errorf("prepare audio: %w", err)
	}
	if err := m.advance(ctx, jobID, progressCanonical, "Separating stems"); err != nil {
		return err
	}

	// Step 5: separate and encode each stem
	separated, err := m.separator.Separate(ctx, canon, m.cfg.Device)
	if err != nil {
		return fmt.Errorf("separate: %w", err)
	}
	if len(separated) == 0 {
		return fmt.Errorf("separate: model returned no stems")
	}
	if err := m.advance(ctx, jobID, progressSeparated, "Encoding stems"); err != nil {
		return err
	}

	names := make([]string, 0, len(separated))
	for name := range separated {
		names = append(names, name)
	}
	sort.Strings(names)

	sampleRate := separated[names[0]].SampleRate
	stems := make(map[string][]byte, len(names))
	for i, name := range names {
		w := separated[name]
		if w.SampleRate != sampleRate {
			return fmt.Errorf("stem %q: %w", name, audio.ErrSampleRateMismatch)
		}
		data, err := audio.EncodeStem(w)
		if err != nil {
			return fmt.Errorf("encode stem %q: %w", name, err)
		}
		stems[name] = data
		p := progressSeparated + progressEncodedSpan*(i+1)/len(names)
		if err := m.advance(ctx, jobID, p, "Encoded "+name); err != nil {
			return err
		}
	}
	if !keepVideo {
		staged.Release()
	}

	// Step 6: publish the result atomically
	var video model.TempResource
	if keepVideo {
		video = staged
	}
	completedAt := m.now()
	done, err := m.store.Update(ctx, jobID, func(j *model.Job) error {
		j.Status = model.JobStatusCompleted
		j.Progress = progressComplete
		j.CurrentStep = "Completed"
		j.Stems = stems
		j.SampleRate = sampleRate
		j.Analysis = &analysis
		j.Video = video
		j.Error = nil
		j.CompletedAt = &completedAt
		return nil
	})
	if err != nil {
		return err
	}
	retained = video != nil

	m.events.Complete(jobID, model.NewStatusResponse(done))
	m.archiveStems(jobID, stems, log)
	return nil
}

// advance moves progress forward, never back, and updates the step text.
func (m *JobManager) advance(ctx context.Context, jobID string, progress int, step string) error {
	j, err := m.store.Update(ctx, jobID, func(j *model.Job) error {
		if progress > j.Progress {
			j.Progress = progress
		}
		j.CurrentStep = step
		return nil
	})
	if err != nil {
		return err
	}
	m.events.Progress(jobID, j.Progress, j.Status, step)
	return nil
}

func (m *JobManager) analyze(ctx context.Context, path string, log *zap.Logger) model.Analysis {
	if m.analyzer == nil {
		return model.Unavailable()
	}
	a, err := m.analyzer.Analyze(ctx, path)
	if err != nil {
		if !errors.Is(err, client.ErrAnalyzerNotConfigured) {
			log.Warn("analysis unavailable", zap.Error(err))
		}
		return model.Unavailable()
	}
	return a
}

// decode reads WAV in-process and hands every other container, or a WAV
// encoding the codec does not support, to the media collaborator.
func (m *JobManager) decode(ctx context.Context, path string, format model.Format, data []byte) (audio.Waveform, error) {
	if format.IsRaw() {
		w, err := audio.DecodeWAV(data)
		if err == nil {
			return w, nil
		}
		if !errors.Is(err, audio.ErrUnsupportedWAV) {
			return audio.Waveform{}, err
		}
	}
	if m.media == nil {
		return audio.Waveform{}, fmt.Errorf("no decoder for %s", format)
	}
	pcm, err := m.media.DecodeToWAV(ctx, path)
	if err != nil {
		return audio.Waveform{}, err
	}
	return audio.DecodeWAV(pcm)
}

// fail records cause on the job. Terminal or cleared jobs are left alone.
func (m *JobManager) fail(jobID string, cause error) {
	msg := cause.Error()
	if msg == "" {
		msg = "processing failed"
	}
	now := m.now()
	_, err := m.store.Update(context.Background(), jobID, func(j *model.Job) error {
		j.Status = model.JobStatusFailed
		j.Progress = 0
		j.CurrentStep = ""
		j.Error = &msg
		j.Stems = nil
		j.SampleRate = 0
		j.CompletedAt = &now
		return nil
	})
	if err != nil {
		m.logger.Debug("failure not recorded", logging.JobID(jobID), zap.Error(err))
		return
	}
	m.events.Failed(jobID, CodeProcessingFailed, msg)
	m.logger.Warn("job failed", logging.JobID(jobID), zap.Error(cause))
}

func (m *JobManager) archiveStems(jobID string, stems map[string][]byte, log *zap.Logger) {
	if m.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := m.archive.Store(ctx, jobID, stems); err != nil {
		log.Warn("stem archive failed", zap.Error(err))
	}
}
