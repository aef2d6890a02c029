package tiles

// DefaultCTBSize is the coding-tree-block edge in pixels for the HEVC
// profile the stitcher targets.
const DefaultCTBSize = 32

// Alignment carries the codec's coding-tree-block size. Geometry and bitrate
// computations take it as a value so that nothing assumes a particular
// profile.
type Alignment struct {
	CTBSize int
}

// DefaultAlignment returns an Alignment using DefaultCTBSize.
func DefaultAlignment() Alignment {
	return Alignment{CTBSize: DefaultCTBSize}
}

func (a Alignment) size() int {
	if a.CTBSize <= 0 {
		return DefaultCTBSize
	}
	return a.CTBSize
}

// ToCTBUnits converts a pixel length to whole CTBs, rounding up.
func (a Alignment) ToCTBUnits(pixels int) int {
	if pixels <= 0 {
		return 0
	}
	s := a.size()
	return (pixels + s - 1) / s
}

// AlignUp rounds a pixel length up to the next CTB boundary.
func (a Alignment) AlignUp(pixels int) int {
	return a.ToCTBUnits(pixels) * a.size()
}

// ToPixels converts a CTB count back to pixels.
func (a Alignment) ToPixels(ctbs int) int {
	return ctbs * a.size()
}
