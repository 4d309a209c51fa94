// Package audio shells out to ffmpeg for clip trimming.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"
)

var (
	// ErrInvalidRange indicates the start/end offsets do not form a clip.
	ErrInvalidRange = errors.New("audio: invalid trim range")

	errMissingInput = errors.New("audio: input audio required")
)

// TrimmerConfig describes the trimmer's dependencies.
type TrimmerConfig struct {
	Binary string
	Logger *zap.Logger
}

// Trimmer cuts a clip out of an MP3 stream by stream-copying through ffmpeg.
type Trimmer struct {
	binary string
	logger *zap.Logger
}

// NewTrimmer constructs a Trimmer; the binary defaults to "ffmpeg" on PATH.
func NewTrimmer(cfg TrimmerConfig) *Trimmer {
	binary := cfg.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trimmer{binary: binary, logger: logger}
}

// Trim re-encodes (stream-copies) the clip between the millisecond offsets.
func (t *Trimmer) Trim(ctx context.Context, input io.Reader, startMS, endMS int64) ([]byte, error) {
	if input == nil {
		return nil, errMissingInput
	}
	if startMS < 0 || endMS <= startMS {
		return nil, fmt.Errorf("%w: start=%dms end=%dms", ErrInvalidRange, startMS, endMS)
	}

	workDir, err := os.MkdirTemp("", "audiotrim")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, "input.mp3")
	outputPath := filepath.Join(workDir, "trimmed.mp3")

	inputFile, err := os.Create(inputPath)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(inputFile, input); err != nil {
		inputFile.Close()
		return nil, err
	}
	if err := inputFile.Close(); err != nil {
		return nil, err
	}

	args := []string{
		"-y",
		"-i", inputPath,
		"-ss", fmt.Sprintf("%dms", startMS),
		"-to", fmt.Sprintf("%dms", endMS),
		"-c", "copy",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, t.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.logger.Error("ffmpeg trim failed",
			zap.Int64("start_ms", startMS),
			zap.Int64("end_ms", endMS),
			zap.String("stderr", stderr.String()),
			zap.Error(err))
		return nil, fmt.Errorf("audio: ffmpeg failed: %w", err)
	}

	return os.ReadFile(outputPath)
}
