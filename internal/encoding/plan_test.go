package encoding

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"tile-orchestrator/internal/tiles"
)

func testStats() VideoStats {
	return VideoStats{
		Width:       1280,
		CodedWidth:  1280,
		Height:      720,
		CodedHeight: 736,
		BitrateKbps: 1000,
		Framerate:   30,
		NumFrames:   300,
	}
}

func newTestLayout(t *testing.T, heights, widths []int) *tiles.Layout {
	t.Helper()
	l, err := tiles.NewLayout(len(heights), len(widths), heights, widths)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	return l
}

func newTestSynthesizer(t *testing.T, strategy Strategy) *Synthesizer {
	t.Helper()
	s, err := NewSynthesizer(testStats(), SynthesizerOptions{
		Alignment:   tiles.DefaultAlignment(),
		Strategy:    strategy,
		OutputDir:   "/work/tiles",
		Parallelism: 4,
	})
	if err != nil {
		t.Fatalf("NewSynthesizer: %v", err)
	}
	return s
}

func TestPlanSegment(t *testing.T) {
	s := newTestSynthesizer(t, CBR)
	seg := tiles.IntervalLayout{
		Interval: tiles.Interval{Start: 30, End: 89},
		Layout:   newTestLayout(t, []int{320, 400}, []int{640, 640}),
	}

	plan, err := s.PlanSegment(seg)
	if err != nil {
		t.Fatalf("PlanSegment: %v", err)
	}

	if plan.NumberOfTiles() != 4 {
		t.Errorf("expected 4 tiles, got %d", plan.NumberOfTiles())
	}
	if diff := cmp.Diff([]int{10, 13}, plan.RowHeightsCTB); diff != "" {
		t.Errorf("row heights (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{20, 20}, plan.ColWidthsCTB); diff != "" {
		t.Errorf("column widths (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{250, 250, 283, 283}, plan.Bitrates); diff != "" {
		t.Errorf("bitrates (-want +got):\n%s", diff)
	}
	wantCrops := []Crop{
		{Width: 640, Height: 320, X: 0, Y: 0},
		{Width: 640, Height: 320, X: 640, Y: 0},
		{Width: 640, Height: 400, X: 0, Y: 320},
		{Width: 640, Height: 400, X: 640, Y: 320},
	}
	if diff := cmp.Diff(wantCrops, plan.Crops); diff != "" {
		t.Errorf("crops (-want +got):\n%s", diff)
	}
	if plan.FrameOffset != 30 || plan.FrameCount != 60 {
		t.Errorf("frames = offset %d count %d, want 30 and 60", plan.FrameOffset, plan.FrameCount)
	}
	if plan.StartTimestamp != "00:00:01" {
		t.Errorf("start timestamp = %q", plan.StartTimestamp)
	}
	if plan.Codec != DefaultCodec {
		t.Errorf("codec = %q", plan.Codec)
	}
	if want := filepath.Join("/work/tiles", "30-89", "tile_3.hevc"); plan.Outputs[3] != want {
		t.Errorf("output 3 = %q, want %q", plan.Outputs[3], want)
	}

	wantStitch := StitchDirective{
		TileCount:     4,
		TilePaths:     plan.Outputs,
		Rows:          2,
		Cols:          2,
		CodedHeight:   736,
		CodedWidth:    1280,
		DisplayHeight: 720,
		DisplayWidth:  1280,
		PPSID:         1,
		RowBoundaries: []int{10},
		ColBoundaries: []int{20},
		Output:        filepath.Join("/work/tiles", "stitched_30_89.hevc"),
	}
	if diff := cmp.Diff(wantStitch, plan.Stitch); diff != "" {
		t.Errorf("stitch directive (-want +got):\n%s", diff)
	}
}

func TestPlan_Args(t *testing.T) {
	s := newTestSynthesizer(t, VBR)
	plan, err := s.PlanUniform(tiles.Interval{Start: 0, End: 29}, 1, 2)
	if err != nil {
		t.Fatalf("PlanUniform: %v", err)
	}

	args, err := plan.Args("in.mp4")
	if err != nil {
		t.Fatalf("Args: %v", err)
	}

	want := []string{
		"-y", "-ss", "00:00:00", "-i", "in.mp4",
		"-filter_complex", "[0:v]crop=640:720:0:0[tile0];[0:v]crop=640:720:640:0[tile1]",
		"-map", "[tile0]", "-c:v", "hevc_nvenc", "-g", "30", "-r", "30", "-frames", "30",
		"-rc", "vbr_hq", "-b:v", "500K", "-cq", "28", filepath.Join("/work/tiles", "0-29", "tile_0.hevc"),
		"-map", "[tile1]", "-c:v", "hevc_nvenc", "-g", "30", "-r", "30", "-frames", "30",
		"-rc", "vbr_hq", "-b:v", "500K", "-cq", "28", filepath.Join("/work/tiles", "0-29", "tile_1.hevc"),
	}
	if diff := cmp.Diff(want, args); diff != "" {
		t.Errorf("args (-want +got):\n%s", diff)
	}
	if !plan.Uniform || !plan.Stitch.Uniform {
		t.Error("uniform plan should carry a uniform stitch directive")
	}
	if plan.Stitch.PPSID != 0 {
		t.Errorf("uniform plan has PPS id %d", plan.Stitch.PPSID)
	}
}

func TestPlanAll_order_skip_and_isolated_failures(t *testing.T) {
	s := newTestSynthesizer(t, ConstQP)
	twoByTwo := newTestLayout(t, []int{320, 400}, []int{640, 640})
	single := newTestLayout(t, []int{720}, []int{1280})
	tooManyRows := newTestLayout(t, []int{720, 32, 32}, []int{1280})

	segments := []tiles.IntervalLayout{
		{Interval: tiles.Interval{Start: 300, End: 399}, Layout: twoByTwo},
		{Interval: tiles.Interval{Start: 200, End: 249}, Layout: twoByTwo},
		{Interval: tiles.Interval{Start: 0, End: 99}, Layout: twoByTwo},
		{Interval: tiles.Interval{Start: 150, End: 199}, Layout: single},
		{Interval: tiles.Interval{Start: 100, End: 149}, Layout: tooManyRows},
	}

	set := s.PlanAll(context.Background(), segments)

	if len(set.Results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(set.Results))
	}
	var order []int
	for _, r := range set.Results {
		order = append(order, r.Interval.Start)
	}
	if diff := cmp.Diff([]int{0, 100, 150, 200}, order); diff != "" {
		t.Errorf("result order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]tiles.Interval{{Start: 300, End: 399}}, set.Skipped); diff != "" {
		t.Errorf("skipped (-want +got):\n%s", diff)
	}

	failures := set.Failures()
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %v", failures)
	}
	if !errors.Is(failures[0], ErrInvalidGeometry) {
		t.Errorf("expected ErrInvalidGeometry, got %v", failures[0])
	}
	var segErr *SegmentError
	if !errors.As(failures[0], &segErr) {
		t.Fatalf("expected a *SegmentError, got %T", failures[0])
	}
	if segErr.Interval != (tiles.Interval{Start: 100, End: 149}) {
		t.Errorf("failed interval = %+v", segErr.Interval)
	}
	if segErr.Stage != StagePending {
		t.Errorf("failed stage = %v", segErr.Stage)
	}

	plans := set.Plans()
	if len(plans) != 3 {
		t.Fatalf("expected 3 plans, got %d", len(plans))
	}
	if plans[0].Stitch.PPSID != 1 {
		t.Errorf("first PPS id = %d", plans[0].Stitch.PPSID)
	}
	if plans[1].Stitch.NeedsStitcher() {
		t.Error("single-tile plan should bypass the stitcher")
	}
	if plans[2].Stitch.PPSID != 2 {
		t.Errorf("third PPS id = %d", plans[2].Stitch.PPSID)
	}
}

func TestPlanAll_is_deterministic(t *testing.T) {
	s := newTestSynthesizer(t, VBRLookahead)
	segments := []tiles.IntervalLayout{
		{Interval: tiles.Interval{Start: 0, End: 99}, Layout: newTestLayout(t, []int{320, 400}, []int{320, 960})},
		{Interval: tiles.Interval{Start: 100, End: 299}, Layout: newTestLayout(t, []int{720}, []int{640, 320, 320})},
	}

	first := s.PlanAll(context.Background(), segments)
	second := s.PlanAll(context.Background(), segments)
	if f := first.Failures(); len(f) != 0 {
		t.Fatalf("unexpected failures: %v", f)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("plans differ between runs (-first +second):\n%s", diff)
	}
}

func TestPlanAll_cancelled_context(t *testing.T) {
	s := newTestSynthesizer(t, ConstQP)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	set := s.PlanAll(ctx, []tiles.IntervalLayout{
		{Interval: tiles.Interval{Start: 0, End: 9}, Layout: newTestLayout(t, []int{720}, []int{1280})},
	})
	failures := set.Failures()
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %v", failures)
	}
	if !errors.Is(failures[0], context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", failures[0])
	}
}

func TestPlanAllUniform(t *testing.T) {
	s := newTestSynthesizer(t, CBR)
	set := s.PlanAllUniform(context.Background(), []tiles.Interval{{Start: 0, End: 149}, {Start: 150, End: 299}}, 2, 2)
	if f := set.Failures(); len(f) != 0 {
		t.Fatalf("unexpected failures: %v", f)
	}
	for _, p := range set.Plans() {
		if diff := cmp.Diff([]int{250, 250, 250, 250}, p.Bitrates); diff != "" {
			t.Errorf("bitrates (-want +got):\n%s", diff)
		}
		if p.Stitch.PPSID != 0 {
			t.Errorf("uniform plan has PPS id %d", p.Stitch.PPSID)
		}
	}
}

func TestNewSynthesizer_rejects_bad_stats(t *testing.T) {
	stats := testStats()
	stats.CodedWidth = 1288
	if _, err := NewSynthesizer(stats, SynthesizerOptions{}); !errors.Is(err, ErrInvalidVideoStats) {
		t.Errorf("misaligned width: expected ErrInvalidVideoStats, got %v", err)
	}

	stats = testStats()
	stats.CodedHeight = 730
	if _, err := NewSynthesizer(stats, SynthesizerOptions{}); !errors.Is(err, ErrInvalidVideoStats) {
		t.Errorf("misaligned height: expected ErrInvalidVideoStats, got %v", err)
	}

	if _, err := NewSynthesizer(testStats(), SynthesizerOptions{Strategy: Strategy(99)}); !errors.Is(err, ErrUnsupportedEncodingStrategy) {
		t.Errorf("expected ErrUnsupportedEncodingStrategy, got %v", err)
	}
}

func TestFormatTimestamp(t *testing.T) {
	cases := []struct {
		frame, fps int
		want       string
	}{
		{0, 30, "00:00:00"},
		{100, 30, "00:00:03.333333"},
		{3601 * 30, 30, "01:00:01"},
	}
	for _, tc := range cases {
		if got := FormatTimestamp(tc.frame, tc.fps); got != tc.want {
			t.Errorf("FormatTimestamp(%d, %d) = %q, want %q", tc.frame, tc.fps, got, tc.want)
		}
	}
}
