package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// writeScript writes an executable shell script standing in for an external tool.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script mocks require a POSIX shell")
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("Failed to create mock %s: %v", name, err)
	}
	return p
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func writeFrame(t *testing.T, dir string) string {
	t.Helper()
	p := filepath.Join(dir, "frame.png")
	if err := os.WriteFile(p, testPNG(t, 640, 360), 0o644); err != nil {
		t.Fatalf("Failed to write frame: %v", err)
	}
	return p
}

func TestPrimaryFrameFallsBackToFirstFrame(t *testing.T) {
	dir := t.TempDir()
	frame := writeFrame(t, dir)
	ffmpeg := writeScript(t, dir, "ffmpeg", `case "$*" in
  *"-ss 00:00:01"*) echo "seek past end" >&2; exit 1 ;;
esac
cat "`+frame+`"
`)

	p := NewFFmpegProbe(Config{FFmpegPath: ffmpeg, ThumbnailSize: 160})
	thumb, err := p.PrimaryFrame(context.Background(), "/fake/clip.mp4")
	if err != nil {
		t.Fatalf("PrimaryFrame() error = %v", err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("thumbnail does not decode: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("thumbnail format = %s, want jpeg", format)
	}
	if cfg.Width != 160 || cfg.Height != 90 {
		t.Errorf("thumbnail size = %dx%d, want 160x90", cfg.Width, cfg.Height)
	}
}

func TestPrimaryFrameFailure(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := writeScript(t, dir, "ffmpeg", "echo 'Invalid data found' >&2\nexit 1\n")

	p := NewFFmpegProbe(Config{FFmpegPath: ffmpeg})
	_, err := p.PrimaryFrame(context.Background(), "/fake/broken.mp4")
	if err == nil {
		t.Fatal("PrimaryFrame() should fail when ffmpeg fails")
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Errorf("error %q should carry ffmpeg stderr", err)
	}
}

func TestPrimaryFrameMissingTool(t *testing.T) {
	p := NewFFmpegProbe(Config{FFmpegPath: filepath.Join(t.TempDir(), "no-such-ffmpeg")})
	if _, err := p.PrimaryFrame(context.Background(), "/fake/clip.mp4"); err == nil {
		t.Error("PrimaryFrame() should fail without ffmpeg")
	}
}

func TestDurationFromFFprobe(t *testing.T) {
	dir := t.TempDir()
	ffprobe := writeScript(t, dir, "ffprobe", `echo '{"format":{"duration":"125.500000"}}'`+"\n")

	p := NewFFmpegProbe(Config{FFprobePath: ffprobe})
	d, err := p.Duration(context.Background(), "/fake/clip.mp4")
	if err != nil {
		t.Fatalf("Duration() error = %v", err)
	}
	if d == nil || *d != 125.5 {
		t.Errorf("Duration() = %v, want 125.5", d)
	}
}

func TestDurationUnknown(t *testing.T) {
	dir := t.TempDir()
	ffprobe := writeScript(t, dir, "ffprobe", `echo '{"format":{"duration":"N/A"}}'`+"\n")

	p := NewFFmpegProbe(Config{FFprobePath: ffprobe})
	d, err := p.Duration(context.Background(), "/fake/clip.mp4")
	if !errors.Is(err, ErrUnknownDuration) {
		t.Errorf("Duration() error = %v, want ErrUnknownDuration", err)
	}
	if d != nil {
		t.Errorf("Duration() = %v, want nil", *d)
	}
}

func TestProbeTimeout(t *testing.T) {
	dir := t.TempDir()
	ffprobe := writeScript(t, dir, "ffprobe", "exec sleep 5\n")

	p := NewFFmpegProbe(Config{FFprobePath: ffprobe, Timeout: 100 * time.Millisecond})
	start := time.Now()
	_, err := p.Duration(context.Background(), "/fake/clip.mp4")
	if err == nil {
		t.Fatal("Duration() should fail on timeout")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Duration() took %v, timeout not enforced", elapsed)
	}
}

func TestTimelineFrames(t *testing.T) {
	dir := t.TempDir()
	frame := writeFrame(t, dir)
	logFile := filepath.Join(dir, "calls.log")
	ffprobe := writeScript(t, dir, "ffprobe", `echo '{"format":{"duration":"10.0"}}'`+"\n")
	ffmpeg := writeScript(t, dir, "ffmpeg", `echo "$*" >> "`+logFile+`"
cat "`+frame+`"
`)

	p := NewFFmpegProbe(Config{FFmpegPath: ffmpeg, FFprobePath: ffprobe, ThumbnailSize: 64})
	frames, err := p.TimelineFrames(context.Background(), "/fake/clip.mp4", 4)
	if err != nil {
		t.Fatalf("TimelineFrames() error = %v", err)
	}
	if len(frames) != 4 {
		t.Fatalf("TimelineFrames() = %d frames, want 4", len(frames))
	}

	calls, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("reading call log: %v", err)
	}
	for _, ts := range []string{"-ss 1.250", "-ss 3.750", "-ss 6.250", "-ss 8.750"} {
		if !strings.Contains(string(calls), ts) {
			t.Errorf("ffmpeg never called with %q; calls:\n%s", ts, calls)
		}
	}
}

func TestTimelineFramesInvalidCount(t *testing.T) {
	p := NewFFmpegProbe(Config{})
	if _, err := p.TimelineFrames(context.Background(), "/fake/clip.mp4", 0); err == nil {
		t.Error("TimelineFrames(0) should fail")
	}
}

func TestTimelinePositions(t *testing.T) {
	got := TimelinePositions(100, 10)
	if len(got) != 10 {
		t.Fatalf("TimelinePositions() = %d entries, want 10", len(got))
	}
	if got[0] != 5 || got[9] != 95 {
		t.Errorf("TimelinePositions() = %v, want 5..95", got)
	}
	if TimelinePositions(100, 0) != nil {
		t.Error("TimelinePositions(count=0) should be nil")
	}
}

func TestParseSeconds(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"12.5", 12.5, false},
		{"12.5 s", 12.5, false},
		{"0.48 s (approx)", 0.48, false},
		{"1:02:03", 3723, false},
		{"2:03.5", 123.5, false},
		{"N/A", 0, true},
		{"", 0, true},
		{"abc", 0, true},
		{"-4", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseSeconds(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSeconds(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseSeconds(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestExifDuration(t *testing.T) {
	tests := []struct {
		name    string
		fields  map[string]interface{}
		want    float64
		wantErr bool
	}{
		{"number", map[string]interface{}{"Duration": 42.0}, 42, false},
		{"clock", map[string]interface{}{"Duration": "0:01:05"}, 65, false},
		{"seconds text", map[string]interface{}{"Duration": "7.25 s"}, 7.25, false},
		{"missing", map[string]interface{}{}, 0, true},
		{"wrong type", map[string]interface{}{"Duration": true}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := exifDuration(tt.fields)
			if (err != nil) != tt.wantErr {
				t.Fatalf("exifDuration() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("exifDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}
