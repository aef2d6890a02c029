package encoding

import (
	"fmt"

	"tile-orchestrator/internal/tiles"
)

// BitrateRequest describes the frame whose bitrate is being split. When both
// RowHeightsCTB and ColWidthsCTB are empty the tiling is uniform.
type BitrateRequest struct {
	TotalKbps   int
	Rows        int
	Cols        int
	CodedHeight int
	CodedWidth  int

	RowHeightsCTB []int
	ColWidthsCTB  []int
}

func (r BitrateRequest) uniform() bool {
	return len(r.RowHeightsCTB) == 0 && len(r.ColWidthsCTB) == 0
}

// BitrateAllocator splits a source bitrate across tiles.
type BitrateAllocator struct {
	Alignment tiles.Alignment
}

// Allocate returns one target bitrate in kbps per tile, row-major.
//
// Uniform tilings give every tile ceil(total/tiles). Otherwise each tile gets
// its share of the frame area in CTBs, rounded up, but never less than the
// uniform share. The allocations may sum to more than TotalKbps; each tile is
// encoded against its own cap.
func (a BitrateAllocator) Allocate(req BitrateRequest) ([]int, error) {
	if req.TotalKbps <= 0 {
		return nil, fmt.Errorf("%w: total bitrate %d kbps", ErrInvalidGeometry, req.TotalKbps)
	}
	if req.Rows <= 0 || req.Cols <= 0 {
		return nil, fmt.Errorf("%w: %d rows x %d columns", ErrInvalidGeometry, req.Rows, req.Cols)
	}

	numTiles := req.Rows * req.Cols
	uniformShare := ceilDiv(int64(req.TotalKbps), int64(numTiles))

	out := make([]int, numTiles)
	if req.uniform() {
		for i := range out {
			out[i] = int(uniformShare)
		}
		return out, nil
	}

	if len(req.RowHeightsCTB) != req.Rows || len(req.ColWidthsCTB) != req.Cols {
		return nil, fmt.Errorf("%w: %d row heights and %d column widths for %dx%d tiles",
			ErrInvalidGeometry, len(req.RowHeightsCTB), len(req.ColWidthsCTB), req.Rows, req.Cols)
	}
	totalArea := int64(a.Alignment.ToCTBUnits(req.CodedHeight)) * int64(a.Alignment.ToCTBUnits(req.CodedWidth))
	if totalArea <= 0 {
		return nil, fmt.Errorf("%w: coded size %dx%d", ErrInvalidGeometry, req.CodedWidth, req.CodedHeight)
	}

	for i := range out {
		row := i / req.Cols
		col := i % req.Cols
		area := int64(req.RowHeightsCTB[row]) * int64(req.ColWidthsCTB[col])
		share := ceilDiv(int64(req.TotalKbps)*area, totalArea)
		out[i] = int(max(share, uniformShare))
	}
	return out, nil
}

func ceilDiv(n, d int64) int64 {
	return (n + d - 1) / d
}
