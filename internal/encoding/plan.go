package encoding

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"tile-orchestrator/internal/tiles"
)

// DefaultCodec is the per-tile encoder used when none is configured.
const DefaultCodec = "hevc_nvenc"

// Stage is how far a segment's plan got before it was emitted or failed.
type Stage int

const (
	StagePending Stage = iota
	StageGeometryDerived
	StageBitratesAssigned
	StagePlanEmitted
)

func (s Stage) String() string {
	switch s {
	case StagePending:
		return "pending"
	case StageGeometryDerived:
		return "geometry-derived"
	case StageBitratesAssigned:
		return "bitrates-assigned"
	case StagePlanEmitted:
		return "plan-emitted"
	default:
		return "stage(" + strconv.Itoa(int(s)) + ")"
	}
}

// SegmentError reports a segment whose plan could not be completed. Stage is
// the last stage the segment reached.
type SegmentError struct {
	Interval tiles.Interval
	Stage    Stage
	Err      error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %s (%s): %v", e.Interval, e.Stage, e.Err)
}

func (e *SegmentError) Unwrap() error {
	return e.Err
}

// TileEncodePlan is the complete set of encode directives for one segment.
type TileEncodePlan struct {
	Interval       tiles.Interval `json:"interval"`
	FrameOffset    int            `json:"frame_offset"`
	FrameCount     int            `json:"frame_count"`
	StartTimestamp string         `json:"start_timestamp"`
	Framerate      int            `json:"framerate"`
	Codec          string         `json:"codec"`
	Strategy       Strategy       `json:"strategy"`

	Rows          int   `json:"rows"`
	Cols          int   `json:"cols"`
	Uniform       bool  `json:"uniform"`
	RowHeightsCTB []int `json:"row_heights_ctb,omitempty"`
	ColWidthsCTB  []int `json:"col_widths_ctb,omitempty"`

	Crops       []Crop   `json:"crops"`
	FilterGraph string   `json:"filter_graph"`
	Bitrates    []int    `json:"bitrates_kbps"`
	SegmentDir  string   `json:"segment_dir"`
	Outputs     []string `json:"outputs"`

	Stitch StitchDirective `json:"stitch"`
}

// NumberOfTiles returns rows x columns.
func (p *TileEncodePlan) NumberOfTiles() int {
	return p.Rows * p.Cols
}

// Args builds the encoder argument list that reads input, seeks to the
// segment start and writes one bitstream per tile.
func (p *TileEncodePlan) Args(input string) ([]string, error) {
	fps := strconv.Itoa(p.Framerate)
	frames := strconv.Itoa(p.FrameCount)

	args := []string{"-y", "-ss", p.StartTimestamp, "-i", input, "-filter_complex", p.FilterGraph}
	for i, out := range p.Outputs {
		flags, err := p.Strategy.Flags(p.Bitrates[i])
		if err != nil {
			return nil, fmt.Errorf("tile %d: %w", i, err)
		}
		args = append(args,
			"-map", "["+Label(i)+"]",
			"-c:v", p.Codec,
			"-g", fps,
			"-r", fps,
			"-frames", frames,
		)
		args = append(args, flags...)
		args = append(args, out)
	}
	return args, nil
}

// SynthesizerOptions configures plan generation.
type SynthesizerOptions struct {
	Alignment tiles.Alignment
	Strategy  Strategy
	Codec     string
	// OutputDir receives one "<start>-<end>" directory of tile bitstreams per
	// segment plus the stitched segment files.
	OutputDir string
	// Parallelism bounds how many segments PlanAll derives at once.
	Parallelism int
}

// Synthesizer turns resolved layouts into per-segment encode plans for one
// source video. It holds no mutable state.
type Synthesizer struct {
	stats     VideoStats
	opts      SynthesizerOptions
	allocator BitrateAllocator
}

// NewSynthesizer validates stats and opts and returns a Synthesizer.
func NewSynthesizer(stats VideoStats, opts SynthesizerOptions) (*Synthesizer, error) {
	if opts.Alignment.CTBSize <= 0 {
		opts.Alignment = tiles.DefaultAlignment()
	}
	if opts.Codec == "" {
		opts.Codec = DefaultCodec
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	if !opts.Strategy.valid() {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedEncodingStrategy, opts.Strategy)
	}
	if err := stats.Validate(opts.Alignment); err != nil {
		return nil, err
	}
	return &Synthesizer{
		stats:     stats,
		opts:      opts,
		allocator: BitrateAllocator{Alignment: opts.Alignment},
	}, nil
}

// Stats returns the video stats the synthesizer plans against.
func (s *Synthesizer) Stats() VideoStats {
	return s.stats
}

// PlanSegment derives the plan for one non-uniform segment from its layout.
func (s *Synthesizer) PlanSegment(seg tiles.IntervalLayout) (*TileEncodePlan, error) {
	if seg.Layout == nil {
		return nil, &SegmentError{Interval: seg.Interval, Stage: StagePending, Err: fmt.Errorf("%w: no layout", ErrInvalidGeometry)}
	}
	rowCTB, colCTB := seg.Layout.CTBSizes(s.opts.Alignment)
	return s.plan(seg.Interval, len(rowCTB), len(colCTB), rowCTB, colCTB)
}

// PlanUniform derives the plan for a segment divided evenly into rows x cols.
func (s *Synthesizer) PlanUniform(interval tiles.Interval, rows, cols int) (*TileEncodePlan, error) {
	return s.plan(interval, rows, cols, nil, nil)
}

func (s *Synthesizer) plan(interval tiles.Interval, rows, cols int, rowCTB, colCTB []int) (*TileEncodePlan, error) {
	stage := StagePending
	fail := func(err error) error {
		return &SegmentError{Interval: interval, Stage: stage, Err: err}
	}
	if interval.Start < 0 || interval.Start > interval.End {
		return nil, fail(fmt.Errorf("%w: interval %s", ErrInvalidGeometry, interval))
	}

	st := s.stats
	graph, err := BuildFilterGraph(FilterGraphRequest{
		Rows:          rows,
		Cols:          cols,
		CodedWidth:    st.CodedWidth,
		CodedHeight:   st.CodedHeight,
		DisplayWidth:  st.Width,
		DisplayHeight: st.Height,
		RowHeightsCTB: rowCTB,
		ColWidthsCTB:  colCTB,
	}, s.opts.Alignment)
	if err != nil {
		return nil, fail(err)
	}
	stage = StageGeometryDerived

	bitrates, err := s.allocator.Allocate(BitrateRequest{
		TotalKbps:     st.BitrateKbps,
		Rows:          rows,
		Cols:          cols,
		CodedHeight:   st.CodedHeight,
		CodedWidth:    st.CodedWidth,
		RowHeightsCTB: rowCTB,
		ColWidthsCTB:  colCTB,
	})
	if err != nil {
		return nil, fail(err)
	}
	stage = StageBitratesAssigned

	for i, b := range bitrates {
		if _, err := s.opts.Strategy.Flags(b); err != nil {
			return nil, fail(fmt.Errorf("tile %d: %w", i, err))
		}
	}

	uniform := rowCTB == nil && colCTB == nil
	segmentDir := filepath.Join(s.opts.OutputDir, interval.String())
	outputs := make([]string, rows*cols)
	for i := range outputs {
		outputs[i] = filepath.Join(segmentDir, fmt.Sprintf("tile_%d.hevc", i))
	}

	stitch := StitchDirective{
		TileCount:     rows * cols,
		TilePaths:     outputs,
		Rows:          rows,
		Cols:          cols,
		CodedHeight:   st.CodedHeight,
		CodedWidth:    st.CodedWidth,
		DisplayHeight: st.Height,
		DisplayWidth:  st.Width,
		Uniform:       uniform,
		Output:        filepath.Join(s.opts.OutputDir, fmt.Sprintf("stitched_%d_%d.hevc", interval.Start, interval.End)),
	}
	if !uniform {
		if stitch.NeedsStitcher() {
			stitch.PPSID = 1
		}
		stitch.RowBoundaries = boundaries(rowCTB)
		stitch.ColBoundaries = boundaries(colCTB)
	}

	return &TileEncodePlan{
		Interval:       interval,
		FrameOffset:    interval.Start,
		FrameCount:     interval.Frames(),
		StartTimestamp: FormatTimestamp(interval.Start, st.Framerate),
		Framerate:      st.Framerate,
		Codec:          s.opts.Codec,
		Strategy:       s.opts.Strategy,
		Rows:           rows,
		Cols:           cols,
		Uniform:        uniform,
		RowHeightsCTB:  rowCTB,
		ColWidthsCTB:   colCTB,
		Crops:          graph.Crops,
		FilterGraph:    graph.String(),
		Bitrates:       bitrates,
		SegmentDir:     segmentDir,
		Outputs:        outputs,
		Stitch:         stitch,
	}, nil
}

// SegmentResult is the outcome of planning one segment. Exactly one of Plan
// and Err is set.
type SegmentResult struct {
	Interval tiles.Interval
	Plan     *TileEncodePlan
	Err      error
}

// PlanSet holds PlanAll's results in ascending start-frame order. Skipped
// lists segments that start at or after the video's last frame.
type PlanSet struct {
	Results []SegmentResult
	Skipped []tiles.Interval
}

// Plans returns the successfully emitted plans in order.
func (ps PlanSet) Plans() []*TileEncodePlan {
	var out []*TileEncodePlan
	for _, r := range ps.Results {
		if r.Plan != nil {
			out = append(out, r.Plan)
		}
	}
	return out
}

// Failures returns the errors of segments that could not be planned.
func (ps PlanSet) Failures() []error {
	var out []error
	for _, r := range ps.Results {
		if r.Err != nil {
			out = append(out, r.Err)
		}
	}
	return out
}

// PlanAll plans every segment that starts inside the video, in ascending
// start-frame order. A failing segment is reported in its result and does
// not affect the others. Segments are derived concurrently; stitcher
// parameter set ids are handed out afterwards in frame order.
func (s *Synthesizer) PlanAll(ctx context.Context, segments []tiles.IntervalLayout) PlanSet {
	return s.planAll(ctx, segments, s.PlanSegment)
}

// PlanAllUniform is PlanAll for a fixed rows x cols uniform tiling.
func (s *Synthesizer) PlanAllUniform(ctx context.Context, intervals []tiles.Interval, rows, cols int) PlanSet {
	segs := make([]tiles.IntervalLayout, len(intervals))
	for i, iv := range intervals {
		segs[i] = tiles.IntervalLayout{Interval: iv}
	}
	return s.planAll(ctx, segs, func(seg tiles.IntervalLayout) (*TileEncodePlan, error) {
		return s.PlanUniform(seg.Interval, rows, cols)
	})
}

func (s *Synthesizer) planAll(ctx context.Context, segments []tiles.IntervalLayout, planOne func(tiles.IntervalLayout) (*TileEncodePlan, error)) PlanSet {
	sorted := append([]tiles.IntervalLayout(nil), segments...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Interval.Start < sorted[j].Interval.Start
	})

	var set PlanSet
	eligible := sorted
	for i, seg := range sorted {
		if seg.Interval.Start >= s.stats.NumFrames {
			eligible = sorted[:i]
			for _, rest := range sorted[i:] {
				set.Skipped = append(set.Skipped, rest.Interval)
			}
			break
		}
	}

	set.Results = make([]SegmentResult, len(eligible))
	var g errgroup.Group
	g.SetLimit(s.opts.Parallelism)
	for i, seg := range eligible {
		i, seg := i, seg
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				set.Results[i] = SegmentResult{Interval: seg.Interval, Err: &SegmentError{Interval: seg.Interval, Stage: StagePending, Err: err}}
				return nil
			}
			plan, err := planOne(seg)
			set.Results[i] = SegmentResult{Interval: seg.Interval, Plan: plan, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	pps := 1
	for _, r := range set.Results {
		if r.Plan == nil || r.Plan.Stitch.Uniform || !r.Plan.Stitch.NeedsStitcher() {
			continue
		}
		r.Plan.Stitch.PPSID = pps
		pps = nextPPSID(pps)
	}
	return set
}

// FormatTimestamp renders frame/framerate seconds as HH:MM:SS, with a
// microsecond fraction when the frame does not fall on a whole second.
func FormatTimestamp(frame, framerate int) string {
	if framerate <= 0 {
		return "00:00:00"
	}
	d := time.Duration(frame) * time.Second / time.Duration(framerate)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	sec := (d % time.Minute) / time.Second
	us := (d % time.Second) / time.Microsecond
	if us == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%06d", h, m, sec, us)
}
