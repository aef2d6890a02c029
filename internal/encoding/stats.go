package encoding

import (
	"fmt"

	"tile-orchestrator/internal/tiles"
)

// VideoStats is the stream metadata the planner needs from the source video.
type VideoStats struct {
	Width       int `json:"width"`
	CodedWidth  int `json:"coded_width"`
	Height      int `json:"height"`
	CodedHeight int `json:"coded_height"`
	BitrateKbps int `json:"bitrate_kbps"`
	Framerate   int `json:"framerate"`
	NumFrames   int `json:"num_frames"`
}

// Validate checks the stats against the assumptions the geometry makes:
// coded width equals display width and coded height sits on a CTB boundary.
func (s VideoStats) Validate(a tiles.Alignment) error {
	switch {
	case s.Width <= 0 || s.Height <= 0:
		return fmt.Errorf("%w: display size %dx%d", ErrInvalidVideoStats, s.Width, s.Height)
	case s.CodedWidth != s.Width:
		return fmt.Errorf("%w: coded width %d differs from width %d", ErrInvalidVideoStats, s.CodedWidth, s.Width)
	case s.CodedHeight < s.Height:
		return fmt.Errorf("%w: coded height %d below height %d", ErrInvalidVideoStats, s.CodedHeight, s.Height)
	case a.AlignUp(s.CodedHeight) != s.CodedHeight:
		return fmt.Errorf("%w: coded height %d is not CTB aligned", ErrInvalidVideoStats, s.CodedHeight)
	case s.BitrateKbps <= 0:
		return fmt.Errorf("%w: bitrate %d kbps", ErrInvalidVideoStats, s.BitrateKbps)
	case s.Framerate <= 0:
		return fmt.Errorf("%w: framerate %d", ErrInvalidVideoStats, s.Framerate)
	case s.NumFrames < 0:
		return fmt.Errorf("%w: %d frames", ErrInvalidVideoStats, s.NumFrames)
	}
	return nil
}
