package orchestrator

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"tile-orchestrator/internal/encoding"
	"tile-orchestrator/internal/platform/logger"
	"tile-orchestrator/internal/tiles"
)

func testLogger() *slog.Logger {
	return logger.Discard()
}

func testVideo() encoding.VideoStats {
	return encoding.VideoStats{
		Width:       1280,
		CodedWidth:  1280,
		Height:      720,
		CodedHeight: 736,
		BitrateKbps: 1000,
		Framerate:   30,
		NumFrames:   300,
	}
}

func mustLayout(t *testing.T, heights, widths []int) *tiles.Layout {
	t.Helper()
	l, err := tiles.NewLayout(len(heights), len(widths), heights, widths)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	return l
}

// testLayouts holds a single-tile segment, a 2x2 segment and a segment past
// the 300 frames of testVideo.
func testLayouts(t *testing.T) *tiles.Manager {
	t.Helper()
	m, err := tiles.NewManager([]tiles.IntervalLayout{
		{Interval: tiles.Interval{Start: 100, End: 199}, Layout: mustLayout(t, []int{320, 400}, []int{640, 640})},
		{Interval: tiles.Interval{Start: 0, End: 99}, Layout: mustLayout(t, []int{720}, []int{1280})},
		{Interval: tiles.Interval{Start: 300, End: 399}, Layout: mustLayout(t, []int{720}, []int{1280})},
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func writeLayoutDir(t *testing.T, root, name string, l *tiles.Layout) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	b, err := l.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "layout.bin"), b, 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestService(t *testing.T, layouts LayoutSource, tools Tools) *Service {
	t.Helper()
	return NewService(NewInMemoryRepository(), layouts, ServiceOptions{
		Strategy:    encoding.CBR,
		OutputDir:   t.TempDir(),
		Parallelism: 2,
		Tools:       tools,
	}, testLogger(), nil)
}
