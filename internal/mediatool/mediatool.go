package mediatool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"media-index/internal/logging"
)

// Tool is the capability surface the index needs from an external media
// toolchain. The concrete implementation shells out to ffmpeg/ffprobe; tests
// substitute a mock.
type Tool interface {
	// ComputeStreamHash digests the decoded first video stream of path,
	// ignoring audio, subtitles, and container metadata.
	ComputeStreamHash(ctx context.Context, path string) (string, error)

	// ExtractFrame returns one frame at offsetSeconds as encoded image bytes.
	ExtractFrame(ctx context.Context, path string, offsetSeconds float64) ([]byte, error)

	// ProbeDuration returns the container duration in seconds.
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// FFmpeg implements Tool by invoking the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpeg returns a Tool using "ffmpeg" and "ffprobe" from PATH.
func NewFFmpeg() *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
	}
}

// Available verifies both binaries resolve on PATH. Called once at startup;
// the index degrades to whole-file hashing without them.
func (f *FFmpeg) Available() error {
	ffmpegPath, err := exec.LookPath(f.ffmpegPath)
	if err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}
	logging.Debug("Using ffmpeg: %s", ffmpegPath)

	ffprobePath, err := exec.LookPath(f.ffprobePath)
	if err != nil {
		return fmt.Errorf("ffprobe not found: %w", err)
	}
	logging.Debug("Using ffprobe: %s", ffprobePath)

	return nil
}

// ComputeStreamHash decodes the first video stream and digests the raw
// frames, so re-muxed or metadata-edited copies of the same video hash
// identically.
func (f *FFmpeg) ComputeStreamHash(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, f.ffmpegPath,
		"-v", "quiet",
		"-nostdin",
		"-i", path,
		"-map", "0:v:0",
		"-f", "md5",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg hash failed: %w - %s", err, stderr.String())
	}

	return parseStreamHash(stdout.String())
}

// parseStreamHash extracts the digest from ffmpeg's md5 muxer output,
// a single "MD5=<hex>" line.
func parseStreamHash(output string) (string, error) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if hash, ok := strings.CutPrefix(line, "MD5="); ok && hash != "" {
			return strings.ToLower(hash), nil
		}
	}
	return "", fmt.Errorf("no MD5= line in ffmpeg output: %q", strings.TrimSpace(output))
}

// ExtractFrame seeks to offsetSeconds and returns a single PNG-encoded frame.
// Seeking beyond the end of the video fails; callers retry at earlier
// offsets.
func (f *FFmpeg) ExtractFrame(ctx context.Context, path string, offsetSeconds float64) ([]byte, error) {
	// -ss before -i uses keyframe seeking, which is fast and accurate
	// enough for thumbnails
	cmd := exec.CommandContext(ctx, f.ffmpegPath,
		"-v", "quiet",
		"-nostdin",
		"-ss", strconv.FormatFloat(offsetSeconds, 'f', 2, 64),
		"-i", path,
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame extraction failed: %w - %s", err, stderr.String())
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame for %s at %.2fs", path, offsetSeconds)
	}

	return stdout.Bytes(), nil
}

// ffprobeFormat mirrors the subset of ffprobe's -show_format JSON we read.
type ffprobeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeDuration reads the container duration via ffprobe.
func (f *FFmpeg) ProbeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, f.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w - %s", err, stderr.String())
	}

	return parseProbeDuration(stdout.Bytes())
}

func parseProbeDuration(data []byte) (float64, error) {
	var probe ffprobeFormat
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	if probe.Format.Duration == "" {
		return 0, fmt.Errorf("ffprobe output has no duration")
	}

	duration, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ffprobe duration %q: %w", probe.Format.Duration, err)
	}
	if duration < 0 {
		return 0, fmt.Errorf("negative ffprobe duration %f", duration)
	}

	return duration, nil
}
