package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"tile-orchestrator/internal/encoding"
	"tile-orchestrator/internal/platform/metrics"
	"tile-orchestrator/internal/tiles"
	"tile-orchestrator/internal/toolchain"
)

// DefaultInput is the input name used in rendered commands when a run does
// not name one.
const DefaultInput = "input.mp4"

// SegmentEncoder produces the tile bitstreams of one plan.
type SegmentEncoder interface {
	Encode(ctx context.Context, input string, plan *encoding.TileEncodePlan) error
}

// SegmentStitcher merges a plan's tile bitstreams.
type SegmentStitcher interface {
	Stitch(ctx context.Context, d encoding.StitchDirective) error
}

// StreamRemuxer wraps the concatenated bitstream in a container.
type StreamRemuxer interface {
	Remux(ctx context.Context, in, out string, framerate int) error
}

// Tools are the external steps Execute drives. A nil tool makes its phase
// unavailable.
type Tools struct {
	Encoder  SegmentEncoder
	Stitcher SegmentStitcher
	Remuxer  StreamRemuxer
}

// ServiceOptions configures planning and execution.
type ServiceOptions struct {
	Alignment   tiles.Alignment
	Strategy    encoding.Strategy
	Codec       string
	OutputDir   string
	Parallelism int
	Programs    toolchain.Paths
	Tools       Tools
}

// Service plans runs against the current layouts, executes them through the
// toolchain and keeps their state in a Repository.
type Service struct {
	repo    Repository
	layouts LayoutSource
	opts    ServiceOptions
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewService returns a Service. layouts may serve a nil manager when only
// uniform runs are planned; m may be nil to disable metric recording.
func NewService(repo Repository, layouts LayoutSource, opts ServiceOptions, log *slog.Logger, m *metrics.Metrics) *Service {
	if opts.Alignment.CTBSize <= 0 {
		opts.Alignment = tiles.DefaultAlignment()
	}
	return &Service{repo: repo, layouts: layouts, opts: opts, log: log, metrics: m}
}

// PlanRequest describes a run to plan.
type PlanRequest struct {
	Input    string              `json:"input,omitempty"`
	Video    encoding.VideoStats `json:"video"`
	Strategy *encoding.Strategy  `json:"strategy,omitempty"`
	Uniform  *UniformTiling      `json:"uniform,omitempty"`
}

// Segments returns the loaded layout segments, ordered by first frame.
func (s *Service) Segments() []tiles.IntervalLayout {
	m := s.currentLayouts()
	if m == nil {
		return nil
	}
	return m.Segments()
}

// LayoutForFrame resolves the segment whose interval contains frame.
func (s *Service) LayoutForFrame(frame int) (tiles.IntervalLayout, error) {
	m := s.currentLayouts()
	if m == nil {
		return tiles.IntervalLayout{}, fmt.Errorf("%w: no layouts loaded", tiles.ErrNoLayoutForFrame)
	}
	return m.EntryForFrame(frame)
}

func (s *Service) currentLayouts() *tiles.Manager {
	if s.layouts == nil {
		return nil
	}
	return s.layouts.Current()
}

// PlanRun creates a run and plans every segment of it. Segment failures are
// recorded in the run; only request-level problems return an error.
func (s *Service) PlanRun(ctx context.Context, req PlanRequest) (RunSnapshot, error) {
	strategy := s.opts.Strategy
	if req.Strategy != nil {
		strategy = *req.Strategy
	}
	syn, err := encoding.NewSynthesizer(req.Video, encoding.SynthesizerOptions{
		Alignment:   s.opts.Alignment,
		Strategy:    strategy,
		Codec:       s.opts.Codec,
		OutputDir:   s.opts.OutputDir,
		Parallelism: s.opts.Parallelism,
	})
	if err != nil {
		return RunSnapshot{}, err
	}

	var set encoding.PlanSet
	if u := req.Uniform; u != nil {
		if u.Rows <= 0 || u.Cols <= 0 {
			return RunSnapshot{}, fmt.Errorf("%w: uniform tiling %dx%d", encoding.ErrInvalidGeometry, u.Rows, u.Cols)
		}
		set = syn.PlanAllUniform(ctx, s.uniformIntervals(req.Video), u.Rows, u.Cols)
	} else {
		segs := s.Segments()
		if len(segs) == 0 {
			return RunSnapshot{}, fmt.Errorf("%w: no layouts loaded", tiles.ErrNoLayoutForFrame)
		}
		set = syn.PlanAll(ctx, segs)
	}

	input := req.Input
	if input == "" {
		input = DefaultInput
	}
	id := s.repo.CreateRun(RunState{Input: input, Video: req.Video, Strategy: strategy, Uniform: req.Uniform})
	s.refreshActiveRuns()
	log := s.log.With(slog.String("run_id", string(id)))

	failed := 0
	for _, res := range set.Results {
		rec := SegmentRecord{Interval: res.Interval}
		segLog := segmentLogger(log, res.Interval)
		if res.Err != nil {
			stage := encoding.StagePending
			var se *encoding.SegmentError
			if errors.As(res.Err, &se) {
				stage = se.Stage
			}
			rec.State = SegmentFailed
			rec.FailedAt = failedAt(stateForStage(stage))
			rec.Error = res.Err.Error()
			failed++
			segLog.Warn("segment planning failed", slog.String("stage", stage.String()), slog.String("error", res.Err.Error()))
			if s.metrics != nil {
				s.metrics.IncSegmentFailures(stage.String())
			}
		} else {
			rec.State = SegmentPlanEmitted
			rec.Plan = res.Plan
			segLog.Debug("plan emitted",
				slog.Int("tiles", res.Plan.NumberOfTiles()),
				slog.Int("pps_id", res.Plan.Stitch.PPSID))
			if s.metrics != nil {
				s.metrics.ObservePlan(res.Plan.NumberOfTiles())
			}
		}
		if err := s.repo.RecordSegment(id, rec); err != nil {
			return RunSnapshot{}, err
		}
	}
	if len(set.Skipped) > 0 {
		log.Info("segments past the last frame skipped", slog.Int("count", len(set.Skipped)))
		if err := s.repo.RecordSkipped(id, set.Skipped); err != nil {
			return RunSnapshot{}, err
		}
	}

	log.Info("run planned",
		slog.String("strategy", strategy.String()),
		slog.Int("segments", len(set.Results)),
		slog.Int("failed", failed))

	snap, _ := s.repo.GetRunSnapshot(id)
	return snap, nil
}

// uniformIntervals reuses the loaded segment boundaries, or covers the whole
// video with one segment when none are loaded.
func (s *Service) uniformIntervals(v encoding.VideoStats) []tiles.Interval {
	segs := s.Segments()
	if len(segs) == 0 {
		return []tiles.Interval{{Start: 0, End: v.NumFrames - 1}}
	}
	out := make([]tiles.Interval, len(segs))
	for i, seg := range segs {
		out[i] = seg.Interval
	}
	return out
}

// GetRun returns a snapshot of the run.
func (s *Service) GetRun(id RunID) (RunSnapshot, bool) {
	return s.repo.GetRunSnapshot(id)
}

// FinishRun marks the run finished.
func (s *Service) FinishRun(id RunID) error {
	if err := s.repo.FinishRun(id); err != nil {
		return err
	}
	s.refreshActiveRuns()
	return nil
}

// ActiveRunCount returns the number of unfinished runs.
func (s *Service) ActiveRunCount() int {
	return s.repo.ActiveRunCount()
}

// Command renders the encoder command line of the segment starting at
// firstFrame, followed by the stitcher command line when one is needed.
func (s *Service) Command(id RunID, firstFrame int) (string, error) {
	snap, ok := s.repo.GetRunSnapshot(id)
	if !ok {
		return "", ErrRunNotFound
	}
	rec, err := s.repo.GetSegment(id, firstFrame)
	if err != nil {
		return "", err
	}
	if rec.Plan == nil {
		return "", fmt.Errorf("%w: segment %s has no plan: %s", ErrSegmentNotFound, rec.Interval, rec.Error)
	}
	args, err := rec.Plan.Args(snap.Input)
	if err != nil {
		return "", err
	}

	progs := s.opts.Programs.WithDefaults()
	line := BuildCommandLine(progs.FFmpeg, args) + "\n"
	if rec.Plan.Stitch.NeedsStitcher() {
		line += BuildCommandLine(progs.Stitcher, rec.Plan.Stitch.Args()) + "\n"
	}
	return line, nil
}

// ExecuteOptions selects the phases Execute runs.
type ExecuteOptions struct {
	Encode    bool
	Stitch    bool
	KeepTiles bool
	// OutputName is the base name of the concatenated bitstream and its
	// container inside the output directory. Empty skips both.
	OutputName string
	// Progress, if set, is called after each segment.
	Progress func(done, total int)
}

// ExecuteResult summarizes an executed run.
type ExecuteResult struct {
	Stitched  []string
	Bitstream string
	Container string
	Failed    int
}

// Execute drives the toolchain over the run's plans in ascending frame
// order, then concatenates and remuxes the stitched segments when every
// segment succeeded. The run is finished when Execute returns.
func (s *Service) Execute(ctx context.Context, id RunID, opts ExecuteOptions) (res ExecuteResult, err error) {
	snap, ok := s.repo.GetRunSnapshot(id)
	if !ok {
		return res, ErrRunNotFound
	}
	if snap.Finished {
		return res, ErrRunFinished
	}
	defer func() {
		if ferr := s.FinishRun(id); err == nil {
			err = ferr
		}
	}()
	if opts.Encode && s.opts.Tools.Encoder == nil {
		return res, errors.New("encode requested without an encoder")
	}
	if opts.Stitch && s.opts.Tools.Stitcher == nil {
		return res, errors.New("stitch requested without a stitcher")
	}
	if err := os.MkdirAll(s.opts.OutputDir, 0o755); err != nil {
		return res, fmt.Errorf("create output directory: %w", err)
	}

	log := s.log.With(slog.String("run_id", string(id)))
	for _, seg := range snap.Segments {
		if seg.State == SegmentFailed {
			res.Failed++
		}
	}

	plans := snap.Plans()
	for i, p := range plans {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if out, ok := s.executeSegment(ctx, id, snap.Input, p, opts, segmentLogger(log, p.Interval)); ok {
			if out != "" {
				res.Stitched = append(res.Stitched, out)
			}
		} else {
			res.Failed++
		}
		if opts.Progress != nil {
			opts.Progress(i+1, len(plans))
		}
	}

	if opts.OutputName == "" || !opts.Stitch || len(res.Stitched) == 0 {
		return res, nil
	}
	if res.Failed > 0 {
		log.Error("segments failed, not assembling output", slog.Int("failed", res.Failed))
		return res, nil
	}

	res.Bitstream = filepath.Join(s.opts.OutputDir, opts.OutputName+".hevc")
	if err := toolchain.Concatenate(ctx, res.Bitstream, res.Stitched); err != nil {
		return res, fmt.Errorf("concatenate segments: %w", err)
	}
	if s.opts.Tools.Remuxer != nil {
		container := filepath.Join(s.opts.OutputDir, opts.OutputName+".mp4")
		if err := s.opts.Tools.Remuxer.Remux(ctx, res.Bitstream, container, snap.Video.Framerate); err != nil {
			return res, fmt.Errorf("remux: %w", err)
		}
		res.Container = container
	}
	log.Info("run executed",
		slog.Int("segments", len(res.Stitched)),
		slog.String("output", res.Bitstream))
	return res, nil
}

// executeSegment runs the enabled phases for one plan. It returns the
// stitched output, if any, and whether the segment succeeded.
func (s *Service) executeSegment(ctx context.Context, id RunID, input string, p *encoding.TileEncodePlan, opts ExecuteOptions, log *slog.Logger) (string, bool) {
	reached := SegmentPlanEmitted
	fail := func(phase string, err error) (string, bool) {
		log.Error(phase+" failed", slog.String("error", err.Error()))
		if s.metrics != nil {
			s.metrics.IncSegmentFailures(phase)
		}
		s.record(id, SegmentRecord{Interval: p.Interval, State: SegmentFailed, FailedAt: failedAt(reached), Error: err.Error(), Plan: p}, log)
		return "", false
	}

	if opts.Encode {
		// Tiles left by an earlier run would otherwise be stitched as this one's.
		if err := toolchain.RemoveTileDirectory(p.SegmentDir); err != nil {
			return fail("encode", err)
		}
		if err := s.opts.Tools.Encoder.Encode(ctx, input, p); err != nil {
			return fail("encode", err)
		}
		reached = SegmentEncoded
		s.record(id, SegmentRecord{Interval: p.Interval, State: reached, Plan: p}, log)
	}
	if !opts.Stitch {
		return "", true
	}

	if err := s.opts.Tools.Stitcher.Stitch(ctx, p.Stitch); err != nil {
		return fail("stitch", err)
	}
	s.record(id, SegmentRecord{Interval: p.Interval, State: SegmentStitched, Plan: p}, log)
	log.Info("segment stitched", slog.Int("tiles", p.NumberOfTiles()), slog.String("output", p.Stitch.Output))

	if !opts.KeepTiles {
		if err := toolchain.RemoveTileDirectory(p.SegmentDir); err != nil {
			log.Warn("tile cleanup failed", slog.String("dir", p.SegmentDir), slog.String("error", err.Error()))
		}
	}
	return p.Stitch.Output, true
}

func (s *Service) record(id RunID, rec SegmentRecord, log *slog.Logger) {
	if err := s.repo.RecordSegment(id, rec); err != nil {
		log.Error("record segment", slog.String("error", err.Error()))
	}
}

func (s *Service) refreshActiveRuns() {
	if s.metrics != nil {
		s.metrics.SetActiveRuns(s.repo.ActiveRunCount())
	}
}

func segmentLogger(log *slog.Logger, iv tiles.Interval) *slog.Logger {
	return log.With(slog.Int("first_frame", iv.Start), slog.Int("last_frame", iv.End))
}
