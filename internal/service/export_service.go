package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/makeasinger/stemsplit/internal/logging"
	"github.com/makeasinger/stemsplit/internal/media"
	"github.com/makeasinger/stemsplit/internal/model"
	"github.com/makeasinger/stemsplit/internal/naming"
)

// ExportRequest is a mixed 16-bit PCM WAV and what is known about the upload
// it came from.
type ExportRequest struct {
	JobID    string
	PCM      []byte
	Original model.Format
	BaseName string
	Gains    map[string]float64
	Video    model.TempResource
}

// ExportService turns a mix into the upload's container format, remuxing
// against the original video when there is one.
type ExportService struct {
	media   MediaProcessor
	tempDir string
	logger  *zap.Logger
}

func NewExportService(mp MediaProcessor, tempDir string, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		media:   mp,
		tempDir: tempDir,
		logger:  logger.Named("export"),
	}
}

// Export never fails on a remux or transcode error; it falls back to the WAV
// it was given and names the file after what is actually returned.
func (s *ExportService) Export(ctx context.Context, req ExportRequest) (*model.MixResult, error) {
	if len(req.PCM) == 0 {
		return nil, fmt.Errorf("export: empty mix")
	}

	data, format := req.PCM, model.FormatWAV
	log := s.logger.With(logging.JobID(req.JobID), zap.String("original", string(req.Original)))

	switch {
	case req.Original.IsRaw():
		// already in the canonical container

	case req.Original.IsVideo():
		if req.Video == nil || !req.Video.Valid() {
			log.Warn("original video no longer available, returning wav")
			break
		}
		out, err := s.remux(ctx, req.Video.Path(), req.PCM)
		if err != nil {
			log.Warn("remux failed, returning wav", zap.Error(err))
			break
		}
		data, format = out, req.Original

	default:
		out, err := s.media.Transcode(ctx, req.PCM, req.Original)
		if err != nil {
			log.Warn("transcode failed, returning wav", zap.Error(err))
			break
		}
		data, format = out, req.Original
	}

	return &model.MixResult{
		Data:        data,
		Filename:    naming.Filename(req.Gains, req.BaseName, string(format)),
		Format:      format,
		ContentType: format.ContentType(),
	}, nil
}

// remux stages the mix next to the retained video for the duration of the
// call only.
func (s *ExportService) remux(ctx context.Context, videoPath string, pcm []byte) ([]byte, error) {
	audioFile, err := media.NewTempFile(s.tempDir, string(model.FormatWAV), pcm)
	if err != nil {
		return nil, err
	}
	defer audioFile.Release()

	return s.media.Remux(ctx, videoPath, audioFile.Path())
}
