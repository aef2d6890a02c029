// Package toolchain adapts the external programs the pipeline drives: the
// prober, the per-tile encoder, the bitstream stitcher and the remuxer.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrExternalToolFailure is returned when an external program exits non-zero
// or produces output that cannot be parsed.
var ErrExternalToolFailure = errors.New("external tool failure")

// stderrTail bounds how much of a failing tool's stderr ends up in errors.
const stderrTail = 2048

// Runner executes an external program and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// DurationObserver receives the wall time of each external invocation.
type DurationObserver interface {
	ObserveToolDuration(tool string, d time.Duration)
}

// ExecRunner runs programs with os/exec.
type ExecRunner struct {
	Log      *slog.Logger
	Observer DurationObserver
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	tool := filepath.Base(name)
	if r.Log != nil {
		r.Log.Debug("running external tool", slog.String("tool", tool), slog.String("args", strings.Join(args, " ")))
	}

	start := time.Now()
	err := cmd.Run()
	if r.Observer != nil {
		r.Observer.ObserveToolDuration(tool, time.Since(start))
	}
	if err != nil {
		return nil, toolError(tool, err, stderr.Bytes())
	}
	return stdout.Bytes(), nil
}

func toolError(tool string, err error, stderr []byte) error {
	if len(stderr) > stderrTail {
		stderr = stderr[len(stderr)-stderrTail:]
	}
	msg := strings.TrimSpace(string(stderr))
	if msg == "" {
		return fmt.Errorf("%w: %s: %v", ErrExternalToolFailure, tool, err)
	}
	return fmt.Errorf("%w: %s: %v: %s", ErrExternalToolFailure, tool, err, msg)
}

// Paths locates the external programs. Empty fields fall back to the
// program name on PATH.
type Paths struct {
	FFmpeg   string
	FFprobe  string
	Stitcher string
}

// WithDefaults returns p with empty fields set to the bare program names.
func (p Paths) WithDefaults() Paths {
	return Paths{FFmpeg: p.ffmpeg(), FFprobe: p.ffprobe(), Stitcher: p.stitcher()}
}

func (p Paths) ffmpeg() string {
	if p.FFmpeg == "" {
		return "ffmpeg"
	}
	return p.FFmpeg
}

func (p Paths) ffprobe() string {
	if p.FFprobe == "" {
		return "ffprobe"
	}
	return p.FFprobe
}

func (p Paths) stitcher() string {
	if p.Stitcher == "" {
		return "stitcher"
	}
	return p.Stitcher
}
