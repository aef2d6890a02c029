package encoding

import (
	"fmt"
	"strings"

	"tile-orchestrator/internal/tiles"
)

// Crop is one tile's region of the decoded frame.
type Crop struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	X      int `json:"x"`
	Y      int `json:"y"`
}

// FilterGraphRequest describes the frame to cut into tiles. RowHeightsCTB and
// ColWidthsCTB, when set, give explicit per-row and per-column sizes in CTBs;
// when both are empty the frame is divided evenly.
type FilterGraphRequest struct {
	Rows          int
	Cols          int
	CodedWidth    int
	CodedHeight   int
	DisplayWidth  int
	DisplayHeight int

	RowHeightsCTB []int
	ColWidthsCTB  []int
}

func (r FilterGraphRequest) uniform() bool {
	return len(r.RowHeightsCTB) == 0 && len(r.ColWidthsCTB) == 0
}

// FilterGraph is the ordered set of tile crops for one frame geometry.
type FilterGraph struct {
	Crops      []Crop
	RowHeights []int
	ColWidths  []int
}

// BuildFilterGraph computes the tile crops, row-major. Row heights and column
// widths are resolved once each; a size that would run past the display edge
// is cut to what remains, so the rows sum to the display height and the
// columns to the display width even when the coded frame is larger.
func BuildFilterGraph(req FilterGraphRequest, a tiles.Alignment) (*FilterGraph, error) {
	if req.Rows <= 0 || req.Cols <= 0 {
		return nil, fmt.Errorf("%w: %d rows x %d columns", ErrInvalidGeometry, req.Rows, req.Cols)
	}
	if req.DisplayWidth <= 0 || req.DisplayHeight <= 0 {
		return nil, fmt.Errorf("%w: display size %dx%d", ErrInvalidGeometry, req.DisplayWidth, req.DisplayHeight)
	}
	if !req.uniform() && (len(req.RowHeightsCTB) != req.Rows || len(req.ColWidthsCTB) != req.Cols) {
		return nil, fmt.Errorf("%w: %d row heights and %d column widths for %dx%d tiles",
			ErrInvalidGeometry, len(req.RowHeightsCTB), len(req.ColWidthsCTB), req.Rows, req.Cols)
	}

	rows, err := partition(req.Rows, a.ToCTBUnits(req.CodedHeight), req.DisplayHeight, req.RowHeightsCTB, a)
	if err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	cols, err := partition(req.Cols, a.ToCTBUnits(req.CodedWidth), req.DisplayWidth, req.ColWidthsCTB, a)
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	crops := make([]Crop, 0, req.Rows*req.Cols)
	y := 0
	for row := 0; row < req.Rows; row++ {
		x := 0
		for col := 0; col < req.Cols; col++ {
			crops = append(crops, Crop{Width: cols[col], Height: rows[row], X: x, Y: y})
			x += cols[col]
		}
		y += rows[row]
	}
	return &FilterGraph{Crops: crops, RowHeights: rows, ColWidths: cols}, nil
}

// partition resolves count sizes in pixels along one axis. Uniform sizes use
// floor((i+1)*N/count) - floor(i*N/count) CTBs so the rounding error stays
// within one CTB.
func partition(count, picSizeInCtbs, display int, explicitCTB []int, a tiles.Alignment) ([]int, error) {
	sizes := make([]int, 0, count)
	used := 0
	for i := 0; i < count; i++ {
		var ctbs int
		if len(explicitCTB) == 0 {
			ctbs = (i+1)*picSizeInCtbs/count - i*picSizeInCtbs/count
		} else {
			ctbs = explicitCTB[i]
		}
		size := a.ToPixels(ctbs)
		if used+size > display {
			size = display - used
		}
		if size <= 0 {
			return nil, fmt.Errorf("%w: entry %d has no pixels left (display %d)", ErrInvalidGeometry, i, display)
		}
		sizes = append(sizes, size)
		used += size
	}
	return sizes, nil
}

// NumberOfTiles returns the number of crops.
func (g *FilterGraph) NumberOfTiles() int {
	return len(g.Crops)
}

// Label is the filter output pad name for tile i.
func Label(i int) string {
	return fmt.Sprintf("tile%d", i)
}

// String renders the graph for ffmpeg's -filter_complex.
func (g *FilterGraph) String() string {
	var b strings.Builder
	for i, c := range g.Crops {
		if i > 0 {
			b.WriteString(";")
		}
		fmt.Fprintf(&b, "[0:v]crop=%d:%d:%d:%d[%s]", c.Width, c.Height, c.X, c.Y, Label(i))
	}
	return b.String()
}
