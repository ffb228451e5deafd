// Package media wraps the ffmpeg binary for the container work the service
// cannot do in-process: decoding compressed audio, remuxing video and
// transcoding mixes.
package media

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/makeasinger/stemsplit/internal/model"
)

// CommandRunner executes an external tool. Tests inject fakes.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Options configures the ffmpeg invocations.
type Options struct {
	FFmpegPath      string
	TempDir         string
	MP3Bitrate      string
	AACBitrate      string
	OGGQuality      int
	FLACCompression int
}

// FFmpeg implements decode, remux and transcode over the ffmpeg CLI.
type FFmpeg struct {
	logger *zap.Logger
	run    CommandRunner
	opts   Options
}

// NewFFmpeg constructs the ffmpeg wrapper.
func NewFFmpeg(opts Options, logger *zap.Logger) *FFmpeg {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.MP3Bitrate == "" {
		opts.MP3Bitrate = "320k"
	}
	if opts.AACBitrate == "" {
		opts.AACBitrate = "256k"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpeg{
		logger: logger.Named("ffmpeg"),
		run:    defaultCommandRunner,
		opts:   opts,
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (f *FFmpeg) WithCommandRunner(r CommandRunner) *FFmpeg {
	if f != nil && r != nil {
		f.run = r
	}
	return f
}

// TempDir is where staged and intermediate files are written.
func (f *FFmpeg) TempDir() string {
	return f.opts.TempDir
}

// Available checks that the binary can be executed.
func (f *FFmpeg) Available(ctx context.Context) error {
	return f.run(ctx, f.opts.FFmpegPath, "-hide_banner", "-version")
}

// DecodeToWAV converts the audio stream of inputPath to 16-bit PCM WAV at its
// native rate and channel count.
func (f *FFmpeg) DecodeToWAV(ctx context.Context, inputPath string) ([]byte, error) {
	out, err := ReserveTempFile(f.opts.TempDir, string(model.FormatWAV))
	if err != nil {
		return nil, err
	}
	defer out.Release()

	args := append(baseArgs(), "-i", inputPath, "-vn", "-acodec", "pcm_s16le", "-f", "wav", out.Path())
	f.logger.Debug("decoding to wav", zap.String("input", inputPath))
	if err := f.run(ctx, f.opts.FFmpegPath, args...); err != nil {
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}
	return readOutput(out)
}

// Remux combines the video stream of videoPath, copied verbatim, with the
// audio of audioPath re-encoded to AAC, and returns the resulting MP4.
func (f *FFmpeg) Remux(ctx context.Context, videoPath, audioPath string) ([]byte, error) {
	out, err := ReserveTempFile(f.opts.TempDir, string(model.FormatMP4))
	if err != nil {
		return nil, err
	}
	defer out.Release()

	args := append(baseArgs(),
		"-i", videoPath,
		"-i", audioPath,
		"-c:v", "copy",
		"-c:a", "aac", "-b:a", f.opts.AACBitrate,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
		"-movflags", "+faststart",
		out.Path(),
	)
	f.logger.Debug("remuxing", zap.String("video", videoPath), zap.String("audio", audioPath))
	if err := f.run(ctx, f.opts.FFmpegPath, args...); err != nil {
		return nil, fmt.Errorf("ffmpeg remux failed: %w", err)
	}
	return readOutput(out)
}

// Transcode encodes 16-bit PCM WAV bytes into the target audio container.
func (f *FFmpeg) Transcode(ctx context.Context, pcm []byte, format model.Format) ([]byte, error) {
	codecArgs, err := f.codecArgs(format)
	if err != nil {
		return nil, err
	}

	in, err := NewTempFile(f.opts.TempDir, string(model.FormatWAV), pcm)
	if err != nil {
		return nil, err
	}
	defer in.Release()

	out, err := ReserveTempFile(f.opts.TempDir, string(format))
	if err != nil {
		return nil, err
	}
	defer out.Release()

	args := append(baseArgs(), "-i", in.Path(), "-vn")
	args = append(args, codecArgs...)
	args = append(args, out.Path())

	f.logger.Debug("transcoding", zap.String("format", string(format)))
	if err := f.run(ctx, f.opts.FFmpegPath, args...); err != nil {
		return nil, fmt.Errorf("ffmpeg transcode to %s failed: %w", format, err)
	}
	return readOutput(out)
}

func (f *FFmpeg) codecArgs(format model.Format) ([]string, error) {
	switch format {
	case model.FormatMP3:
		return []string{"-c:a", "libmp3lame", "-b:a", f.opts.MP3Bitrate}, nil
	case model.FormatM4A:
		return []string{"-c:a", "aac", "-b:a", f.opts.AACBitrate, "-f", "ipod"}, nil
	case model.FormatOGG:
		return []string{"-c:a", "libvorbis", "-q:a", strconv.Itoa(f.opts.OGGQuality)}, nil
	case model.FormatFLAC:
		return []string{"-c:a", "flac", "-compression_level", strconv.Itoa(f.opts.FLACCompression)}, nil
	default:
		return nil, fmt.Errorf("no transcode profile for %q", format)
	}
}

func baseArgs() []string {
	return []string{"-nostdin", "-hide_banner", "-loglevel", "error", "-y"}
}

func readOutput(out *TempFile) ([]byte, error) {
	data, err := out.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg did not produce output file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("ffmpeg produced an empty file")
	}
	return data, nil
}

// defaultCommandRunner executes the command, including its output in errors.
func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
