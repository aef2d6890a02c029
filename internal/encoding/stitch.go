package encoding

import "strconv"

// MaxPPSID bounds the picture parameter set ids handed to the stitcher;
// ids cycle through 1..MaxPPSID-1.
const MaxPPSID = 64

// StitchDirective is everything the external stitcher needs to merge one
// segment's tile bitstreams into a single coded segment.
type StitchDirective struct {
	TileCount     int      `json:"tile_count"`
	TilePaths     []string `json:"tile_paths"`
	Rows          int      `json:"rows"`
	Cols          int      `json:"cols"`
	CodedHeight   int      `json:"coded_height"`
	CodedWidth    int      `json:"coded_width"`
	DisplayHeight int      `json:"display_height"`
	DisplayWidth  int      `json:"display_width"`
	Uniform       bool     `json:"uniform"`
	PPSID         int      `json:"pps_id,omitempty"`
	// Row and column boundaries in CTBs, every entry but the last.
	RowBoundaries []int  `json:"row_boundaries,omitempty"`
	ColBoundaries []int  `json:"col_boundaries,omitempty"`
	Output        string `json:"output"`
}

// NeedsStitcher is false for single-tile segments, whose bitstream is used
// as is.
func (d StitchDirective) NeedsStitcher() bool {
	return d.TileCount > 1
}

// Args renders the stitcher's positional arguments.
func (d StitchDirective) Args() []string {
	args := make([]string, 0, 10+len(d.TilePaths)+len(d.RowBoundaries)+len(d.ColBoundaries))
	args = append(args, strconv.Itoa(d.TileCount))
	args = append(args, d.TilePaths...)
	args = append(args,
		strconv.Itoa(d.Rows), strconv.Itoa(d.Cols),
		strconv.Itoa(d.CodedHeight), strconv.Itoa(d.CodedWidth),
		strconv.Itoa(d.DisplayHeight), strconv.Itoa(d.DisplayWidth),
		d.Output,
	)
	if d.Uniform {
		return append(args, "1")
	}
	args = append(args, "0", strconv.Itoa(d.PPSID))
	args = append(args, itoaAll(d.RowBoundaries)...)
	return append(args, itoaAll(d.ColBoundaries)...)
}

// nextPPSID advances a parameter set id, wrapping back to 1.
func nextPPSID(id int) int {
	id++
	if id >= MaxPPSID {
		return 1
	}
	return id
}

func itoaAll(v []int) []string {
	out := make([]string, len(v))
	for i, x := range v {
		out[i] = strconv.Itoa(x)
	}
	return out
}

func boundaries(sizes []int) []int {
	if len(sizes) <= 1 {
		return nil
	}
	return append([]int(nil), sizes[:len(sizes)-1]...)
}
