package toolchain

import (
	"context"
	"fmt"
	"os"

	"tile-orchestrator/internal/encoding"
)

// Encoder runs the per-tile encode for one segment plan.
type Encoder struct {
	Runner Runner
	Paths  Paths
}

// Encode creates the segment's tile directory and runs ffmpeg over input,
// producing one bitstream per tile at the plan's output paths.
func (e *Encoder) Encode(ctx context.Context, input string, plan *encoding.TileEncodePlan) error {
	args, err := plan.Args(input)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(plan.SegmentDir, 0o755); err != nil {
		return fmt.Errorf("create segment directory: %w", err)
	}
	if _, err := e.Runner.Run(ctx, e.Paths.ffmpeg(), args...); err != nil {
		return fmt.Errorf("encode segment %s: %w", plan.Interval, err)
	}
	return nil
}

// Stitcher merges a segment's tile bitstreams into one coded segment.
type Stitcher struct {
	Runner Runner
	Paths  Paths
}

// Stitch runs the external stitcher, or for a single tile copies its
// bitstream to the directive's output unchanged.
func (s *Stitcher) Stitch(ctx context.Context, d encoding.StitchDirective) error {
	if len(d.TilePaths) != d.TileCount || d.TileCount == 0 {
		return fmt.Errorf("%w: %d tile paths for %d tiles", encoding.ErrInvalidGeometry, len(d.TilePaths), d.TileCount)
	}
	if !d.NeedsStitcher() {
		return copyFile(d.TilePaths[0], d.Output)
	}
	if _, err := s.Runner.Run(ctx, s.Paths.stitcher(), d.Args()...); err != nil {
		return fmt.Errorf("stitch %s: %w", d.Output, err)
	}
	return nil
}
