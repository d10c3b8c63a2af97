package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"media-library/internal/logging"
	"media-library/internal/metrics"
)

// Probe reads durations and renders frames from a media file.
type Probe interface {
	// Duration returns the length in seconds, or nil when it cannot be determined.
	Duration(ctx context.Context, path string) (*float64, error)
	// PrimaryFrame returns one representative frame as a JPEG thumbnail.
	PrimaryFrame(ctx context.Context, path string) ([]byte, error)
	// TimelineFrames returns count JPEG frames evenly spaced over the file.
	TimelineFrames(ctx context.Context, path string, count int) ([][]byte, error)
}

// ErrUnknownDuration is returned when neither ffprobe nor exiftool can
// determine the length of a file.
var ErrUnknownDuration = errors.New("duration unknown")

// Config controls an FFmpegProbe.
type Config struct {
	FFmpegPath    string
	FFprobePath   string
	Timeout       time.Duration // per external call
	ThumbnailSize int           // bounding box edge in pixels
	UseExiftool   bool
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		FFmpegPath:    "ffmpeg",
		FFprobePath:   "ffprobe",
		Timeout:       30 * time.Second,
		ThumbnailSize: 320,
		UseExiftool:   true,
	}
}

// FFmpegProbe implements Probe using the ffmpeg toolchain.
type FFmpegProbe struct {
	cfg  Config
	exif *exifReader
}

// NewFFmpegProbe creates a probe. Zero values in cfg fall back to DefaultConfig.
func NewFFmpegProbe(cfg Config) *FFmpegProbe {
	def := DefaultConfig()
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = def.FFmpegPath
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = def.FFprobePath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.ThumbnailSize <= 0 {
		cfg.ThumbnailSize = def.ThumbnailSize
	}

	p := &FFmpegProbe{cfg: cfg}
	if cfg.UseExiftool {
		p.exif = newExifReader()
	}
	return p
}

// Close releases the exiftool process, if one was started.
func (p *FFmpegProbe) Close() error {
	if p.exif != nil {
		return p.exif.Close()
	}
	return nil
}

// Duration asks ffprobe for the container duration and falls back to exiftool.
func (p *FFmpegProbe) Duration(ctx context.Context, path string) (*float64, error) {
	start := time.Now()
	defer func() { metrics.ProbeDuration.WithLabelValues("duration").Observe(time.Since(start).Seconds()) }()

	d, err := p.ffprobeDuration(ctx, path)
	if err == nil {
		return &d, nil
	}
	logging.Debug("ffprobe duration failed for %s: %v", path, err)

	if p.exif != nil {
		d, exifErr := p.exif.Duration(path)
		if exifErr == nil {
			return &d, nil
		}
		logging.Debug("exiftool duration failed for %s: %v", path, exifErr)
	}

	metrics.ProbeFailures.WithLabelValues("duration").Inc()
	return nil, fmt.Errorf("%w: %s: %v", ErrUnknownDuration, path, err)
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (p *FFmpegProbe) ffprobeDuration(ctx context.Context, path string) (float64, error) {
	out, err := p.run(ctx, p.cfg.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	if err != nil {
		return 0, err
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return 0, fmt.Errorf("unreadable ffprobe output: %w", err)
	}
	return parseSeconds(parsed.Format.Duration)
}

// PrimaryFrame grabs the frame one second in, retrying once from the first
// frame for clips shorter than that.
func (p *FFmpegProbe) PrimaryFrame(ctx context.Context, path string) ([]byte, error) {
	start := time.Now()
	defer func() { metrics.ProbeDuration.WithLabelValues("primary_frame").Observe(time.Since(start).Seconds()) }()

	raw, err := p.extractFrame(ctx, path, "00:00:01", true)
	if err != nil {
		logging.Debug("FFmpeg first attempt failed for %s: %v", path, err)
		raw, err = p.extractFrame(ctx, path, "", false)
	}
	if err != nil {
		metrics.ProbeFailures.WithLabelValues("primary_frame").Inc()
		return nil, err
	}

	thumb, err := EncodeThumbnail(raw, p.cfg.ThumbnailSize)
	if err != nil {
		metrics.ProbeFailures.WithLabelValues("primary_frame").Inc()
		return nil, err
	}
	return thumb, nil
}

// TimelineFrames renders count frames at the midpoints of count equal slices
// of the file. Any failed frame fails the whole sequence.
func (p *FFmpegProbe) TimelineFrames(ctx context.Context, path string, count int) ([][]byte, error) {
	if count <= 0 {
		return nil, fmt.Errorf("invalid frame count %d", count)
	}

	start := time.Now()
	defer func() { metrics.ProbeDuration.WithLabelValues("timeline").Observe(time.Since(start).Seconds()) }()

	d, err := p.Duration(ctx, path)
	if err != nil {
		metrics.ProbeFailures.WithLabelValues("timeline").Inc()
		return nil, err
	}

	frames := make([][]byte, 0, count)
	for _, ts := range TimelinePositions(*d, count) {
		at := formatTimestamp(ts)
		raw, err := p.extractFrame(ctx, path, at, true)
		if err != nil {
			logging.Debug("Fast seek to %s failed for %s: %v", at, path, err)
			raw, err = p.extractFrame(ctx, path, at, false)
		}
		if err != nil {
			metrics.ProbeFailures.WithLabelValues("timeline").Inc()
			return nil, fmt.Errorf("frame at %s: %w", at, err)
		}

		thumb, err := EncodeThumbnail(raw, p.cfg.ThumbnailSize)
		if err != nil {
			metrics.ProbeFailures.WithLabelValues("timeline").Inc()
			return nil, fmt.Errorf("frame at %s: %w", at, err)
		}
		frames = append(frames, thumb)
	}
	return frames, nil
}

// TimelinePositions returns count timestamps, one at the middle of each equal
// slice of duration.
func TimelinePositions(duration float64, count int) []float64 {
	if count <= 0 || duration < 0 {
		return nil
	}
	out := make([]float64, count)
	for i := range out {
		out[i] = duration * (float64(i) + 0.5) / float64(count)
	}
	return out
}

// extractFrame returns one PNG frame. With inputSeek the seek happens before
// decoding starts (fast); otherwise ffmpeg decodes up to the timestamp.
func (p *FFmpegProbe) extractFrame(ctx context.Context, path, at string, inputSeek bool) ([]byte, error) {
	args := []string{"-v", "error"}
	if at != "" && inputSeek {
		args = append(args, "-ss", at)
	}
	args = append(args, "-i", path)
	if at != "" && !inputSeek {
		args = append(args, "-ss", at)
	}
	args = append(args,
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	out, err := p.run(ctx, p.cfg.FFmpegPath, args...)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output for %s", path)
	}
	return out, nil
}

// run executes one external tool bounded by the configured timeout.
func (p *FFmpegProbe) run(ctx context.Context, tool string, args ...string) ([]byte, error) {
	bin, err := exec.LookPath(tool)
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", tool, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s timed out after %v: %w", tool, p.cfg.Timeout, ctx.Err())
		}
		return nil, fmt.Errorf("%s failed: %w, stderr: %s", tool, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func formatTimestamp(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}

// parseSeconds accepts plain seconds ("12.5"), seconds with a unit suffix
// ("12.5 s", "12.5 s (approx)") and clock notation ("1:02:03", "2:03.5").
func parseSeconds(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "(approx)")
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "s")
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return 0, errors.New("no duration reported")
	}

	var total float64
	for _, part := range strings.Split(s, ":") {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		total = total*60 + v
	}
	if total < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return total, nil
}
