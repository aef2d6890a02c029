package toolchain

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"tile-orchestrator/internal/encoding"
	"tile-orchestrator/internal/tiles"
)

// Prober reads stream metadata from a video file.
type Prober interface {
	Probe(ctx context.Context, path string) (encoding.VideoStats, error)
}

// FFprobe implements Prober with ffprobe's JSON output.
type FFprobe struct {
	Runner    Runner
	Paths     Paths
	Alignment tiles.Alignment
}

type probeOutput struct {
	Format struct {
		BitRate string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType   string `json:"codec_type"`
		Width       int    `json:"width"`
		Height      int    `json:"height"`
		CodedWidth  int    `json:"coded_width"`
		CodedHeight int    `json:"coded_height"`
		RFrameRate  string `json:"r_frame_rate"`
		NbFrames    string `json:"nb_frames"`
	} `json:"streams"`
}

// Probe implements Prober. The first stream must be the video stream.
func (p *FFprobe) Probe(ctx context.Context, path string) (encoding.VideoStats, error) {
	out, err := p.Runner.Run(ctx, p.Paths.ffprobe(),
		"-hide_banner",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return encoding.VideoStats{}, err
	}
	return ParseProbeOutput(out, p.Alignment)
}

// ParseProbeOutput converts ffprobe JSON into VideoStats. The coded height is
// rounded up to the CTB size and the bitrate converted to kbps, rounding up.
func ParseProbeOutput(out []byte, a tiles.Alignment) (encoding.VideoStats, error) {
	var res probeOutput
	if err := json.Unmarshal(out, &res); err != nil {
		return encoding.VideoStats{}, fmt.Errorf("%w: ffprobe: parse output: %v", ErrExternalToolFailure, err)
	}
	if len(res.Streams) == 0 {
		return encoding.VideoStats{}, fmt.Errorf("%w: ffprobe: no streams", ErrExternalToolFailure)
	}
	st := res.Streams[0]

	if st.CodedWidth != st.Width {
		return encoding.VideoStats{}, fmt.Errorf("%w: coded width %d differs from width %d",
			encoding.ErrInvalidVideoStats, st.CodedWidth, st.Width)
	}

	bps, err := strconv.ParseInt(res.Format.BitRate, 10, 64)
	if err != nil {
		return encoding.VideoStats{}, fmt.Errorf("%w: ffprobe: bit_rate %q", ErrExternalToolFailure, res.Format.BitRate)
	}

	fps, err := parseFrameRate(st.RFrameRate)
	if err != nil {
		return encoding.VideoStats{}, err
	}

	frames, err := strconv.Atoi(st.NbFrames)
	if err != nil {
		return encoding.VideoStats{}, fmt.Errorf("%w: ffprobe: nb_frames %q", ErrExternalToolFailure, st.NbFrames)
	}

	return encoding.VideoStats{
		Width:       st.Width,
		CodedWidth:  st.CodedWidth,
		Height:      st.Height,
		CodedHeight: a.AlignUp(st.CodedHeight),
		BitrateKbps: int(math.Ceil(float64(bps) / 1000)),
		Framerate:   fps,
		NumFrames:   frames,
	}, nil
}

// parseFrameRate accepts only whole frame rates written as "N/1".
func parseFrameRate(s string) (int, error) {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return 0, fmt.Errorf("%w: ffprobe: r_frame_rate %q", ErrExternalToolFailure, s)
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0, fmt.Errorf("%w: ffprobe: r_frame_rate %q", ErrExternalToolFailure, s)
	}
	d, err := strconv.Atoi(den)
	if err != nil {
		return 0, fmt.Errorf("%w: ffprobe: r_frame_rate %q", ErrExternalToolFailure, s)
	}
	if d != 1 {
		return 0, fmt.Errorf("%w: unexpected frame rate denominator %d in %q", encoding.ErrInvalidVideoStats, d, s)
	}
	return n, nil
}
