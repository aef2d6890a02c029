package tiles

import (
	"fmt"
	"os"
)

// Layout is an immutable partition of a frame into rows and columns of tiles.
// Row heights and column widths are in pixels. Tiles are indexed row-major.
type Layout struct {
	rows            int
	cols            int
	heightsOfRows   []int
	widthsOfColumns []int
}

// NewLayout validates and returns a Layout. The size slices are copied.
func NewLayout(rows, cols int, heightsOfRows, widthsOfColumns []int) (*Layout, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %d rows x %d columns", ErrMalformedLayout, rows, cols)
	}
	if len(heightsOfRows) != rows {
		return nil, fmt.Errorf("%w: %d rows but %d row heights", ErrMalformedLayout, rows, len(heightsOfRows))
	}
	if len(widthsOfColumns) != cols {
		return nil, fmt.Errorf("%w: %d columns but %d column widths", ErrMalformedLayout, cols, len(widthsOfColumns))
	}
	for i, h := range heightsOfRows {
		if h <= 0 {
			return nil, fmt.Errorf("%w: row %d has height %d", ErrMalformedLayout, i, h)
		}
	}
	for i, w := range widthsOfColumns {
		if w <= 0 {
			return nil, fmt.Errorf("%w: column %d has width %d", ErrMalformedLayout, i, w)
		}
	}
	return &Layout{
		rows:            rows,
		cols:            cols,
		heightsOfRows:   append([]int(nil), heightsOfRows...),
		widthsOfColumns: append([]int(nil), widthsOfColumns...),
	}, nil
}

// FromBytes decodes a serialized TileConfiguration message.
func FromBytes(serialized []byte) (*Layout, error) {
	cfg, err := decodeTileConfiguration(serialized)
	if err != nil {
		return nil, err
	}
	return NewLayout(cfg.numberOfRows, cfg.numberOfColumns, cfg.heightsOfRows, cfg.widthsOfColumns)
}

// ReadLayoutFile reads and decodes the layout stored at path.
func ReadLayoutFile(path string) (*Layout, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout %s: %w", path, err)
	}
	l, err := FromBytes(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// MarshalBinary encodes the layout as a TileConfiguration message.
func (l *Layout) MarshalBinary() ([]byte, error) {
	return encodeTileConfiguration(tileConfiguration{
		version:         tileConfigurationVersion,
		numberOfRows:    l.rows,
		numberOfColumns: l.cols,
		heightsOfRows:   l.heightsOfRows,
		widthsOfColumns: l.widthsOfColumns,
	}), nil
}

// NumberOfRows returns the number of tile rows.
func (l *Layout) NumberOfRows() int { return l.rows }

// NumberOfColumns returns the number of tile columns.
func (l *Layout) NumberOfColumns() int { return l.cols }

// NumberOfTiles returns rows x columns.
func (l *Layout) NumberOfTiles() int {
	return l.rows * l.cols
}

// HeightsOfRows returns a copy of the row heights in pixels.
func (l *Layout) HeightsOfRows() []int {
	return append([]int(nil), l.heightsOfRows...)
}

// WidthsOfColumns returns a copy of the column widths in pixels.
func (l *Layout) WidthsOfColumns() []int {
	return append([]int(nil), l.widthsOfColumns...)
}

// TotalWidth is the sum of the column widths.
func (l *Layout) TotalWidth() int {
	return sum(l.widthsOfColumns)
}

// TotalHeight is the sum of the row heights.
func (l *Layout) TotalHeight() int {
	return sum(l.heightsOfRows)
}

// RectangleForTile returns the pixel rectangle covered by tile. The tile's
// row is tile / columns and its column is tile % columns.
func (l *Layout) RectangleForTile(tile int) (Rectangle, error) {
	if tile < 0 || tile >= l.NumberOfTiles() {
		return Rectangle{}, fmt.Errorf("%w: tile %d of %d", ErrIndexOutOfRange, tile, l.NumberOfTiles())
	}
	row := tile / l.cols
	col := tile % l.cols
	return Rectangle{
		X:      sum(l.widthsOfColumns[:col]),
		Y:      sum(l.heightsOfRows[:row]),
		Width:  l.widthsOfColumns[col],
		Height: l.heightsOfRows[row],
	}, nil
}

// CTBSizes converts the row heights and column widths to CTB units.
func (l *Layout) CTBSizes(a Alignment) (rowHeights, colWidths []int) {
	rowHeights = make([]int, len(l.heightsOfRows))
	for i, h := range l.heightsOfRows {
		rowHeights[i] = a.ToCTBUnits(h)
	}
	colWidths = make([]int, len(l.widthsOfColumns))
	for i, w := range l.widthsOfColumns {
		colWidths[i] = a.ToCTBUnits(w)
	}
	return rowHeights, colWidths
}

// Equal reports whether two layouts describe the same partition.
func (l *Layout) Equal(o *Layout) bool {
	if l == nil || o == nil {
		return l == o
	}
	if l.rows != o.rows || l.cols != o.cols {
		return false
	}
	for i := range l.heightsOfRows {
		if l.heightsOfRows[i] != o.heightsOfRows[i] {
			return false
		}
	}
	for i := range l.widthsOfColumns {
		if l.widthsOfColumns[i] != o.widthsOfColumns[i] {
			return false
		}
	}
	return true
}

func sum(v []int) int {
	n := 0
	for _, x := range v {
		n += x
	}
	return n
}
