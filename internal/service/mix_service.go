package service

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/makeasinger/stemsplit/internal/audio"
	"github.com/makeasinger/stemsplit/internal/logging"
	"github.com/makeasinger/stemsplit/internal/model"
	"github.com/makeasinger/stemsplit/internal/naming"
)

// MixService re-mixes the stored stems of a completed job and exports the
// result in the upload's container.
type MixService struct {
	jobs   *JobManager
	export *ExportService
	logger *zap.Logger
}

func NewMixService(jobs *JobManager, export *ExportService, logger *zap.Logger) *MixService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MixService{
		jobs:   jobs,
		export: export,
		logger: logger.Named("mix"),
	}
}

// Mix applies volumes to the job's stems. Tracks absent from volumes play at
// unity gain; names that match no stem are ignored.
func (s *MixService) Mix(ctx context.Context, jobID string, volumes map[string]float64) (*model.MixResult, error) {
	for name, g := range volumes {
		if g < 0 || math.IsNaN(g) || math.IsInf(g, 0) {
			return nil, fmt.Errorf("%w: volume for %q must be a non-negative number", ErrInvalidGain, name)
		}
	}

	job, err := s.jobs.completed(ctx, jobID)
	if err != nil {
		return nil, err
	}

	gains := EffectiveGains(job.TrackNames(), volumes)
	mixed, err := audio.MixWAV(job.Stems, gains)
	if err != nil {
		return nil, fmt.Errorf("mix stems: %w", err)
	}
	pcm, err := audio.EncodePCM16(mixed)
	if err != nil {
		return nil, fmt.Errorf("encode mix: %w", err)
	}

	base, _ := naming.Split(job.OriginalFilename)
	result, err := s.export.Export(ctx, ExportRequest{
		JobID:    jobID,
		PCM:      pcm,
		Original: job.OriginalExtension,
		BaseName: base,
		Gains:    RequestedGains(job.TrackNames(), volumes),
		Video:    job.Video,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("mix exported",
		logging.JobID(jobID),
		zap.String("filename", result.Filename),
		zap.Int("bytes", len(result.Data)),
	)
	return result, nil
}

// RequestedGains keeps the volumes a caller gave for the job's own tracks.
// Filenames are derived from these, not from the defaults filled in for
// mixing.
func RequestedGains(tracks []string, volumes map[string]float64) map[string]float64 {
	gains := make(map[string]float64, len(volumes))
	for _, name := range tracks {
		if g, ok := volumes[name]; ok {
			gains[name] = g
		}
	}
	return gains
}

// EffectiveGains resolves the gain of every track of a job: the requested
// volume when given, unity otherwise.
func EffectiveGains(tracks []string, volumes map[string]float64) map[string]float64 {
	gains := make(map[string]float64, len(tracks))
	for _, name := range tracks {
		g, ok := volumes[name]
		if !ok {
			g = audio.DefaultGain
		}
		gains[name] = g
	}
	return gains
}
