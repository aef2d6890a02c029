package encoding

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"tile-orchestrator/internal/tiles"
)

func sumInts(v []int) int {
	n := 0
	for _, x := range v {
		n += x
	}
	return n
}

func TestBuildFilterGraph_uniform_rows_clamped_to_display(t *testing.T) {
	g, err := BuildFilterGraph(FilterGraphRequest{
		Rows:          3,
		Cols:          1,
		CodedWidth:    1920,
		CodedHeight:   1024,
		DisplayWidth:  1920,
		DisplayHeight: 1000,
	}, tiles.DefaultAlignment())
	if err != nil {
		t.Fatalf("BuildFilterGraph: %v", err)
	}

	// 32 CTBs over 3 rows: 10, 11, 11 CTBs; the last row absorbs the clamp.
	if diff := cmp.Diff([]int{320, 352, 328}, g.RowHeights); diff != "" {
		t.Errorf("row heights (-want +got):\n%s", diff)
	}
	if got := sumInts(g.RowHeights); got != 1000 {
		t.Errorf("row heights sum to %d, want 1000", got)
	}
	for i, h := range g.RowHeights {
		if h <= 0 {
			t.Errorf("row %d has height %d", i, h)
		}
	}
	want := []Crop{
		{Width: 1920, Height: 320, X: 0, Y: 0},
		{Width: 1920, Height: 352, X: 0, Y: 320},
		{Width: 1920, Height: 328, X: 0, Y: 672},
	}
	if diff := cmp.Diff(want, g.Crops); diff != "" {
		t.Errorf("crops (-want +got):\n%s", diff)
	}
}

func TestBuildFilterGraph_non_uniform(t *testing.T) {
	g, err := BuildFilterGraph(FilterGraphRequest{
		Rows:          2,
		Cols:          3,
		CodedWidth:    1280,
		CodedHeight:   736,
		DisplayWidth:  1280,
		DisplayHeight: 720,
		RowHeightsCTB: []int{10, 13},
		ColWidthsCTB:  []int{10, 20, 10},
	}, tiles.DefaultAlignment())
	if err != nil {
		t.Fatalf("BuildFilterGraph: %v", err)
	}

	// Second row is cut to the display height.
	if diff := cmp.Diff([]int{320, 400}, g.RowHeights); diff != "" {
		t.Errorf("row heights (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{320, 640, 320}, g.ColWidths); diff != "" {
		t.Errorf("column widths (-want +got):\n%s", diff)
	}
	if len(g.Crops) != 6 {
		t.Fatalf("expected 6 crops, got %d", len(g.Crops))
	}
	if diff := cmp.Diff(Crop{Width: 640, Height: 320, X: 320, Y: 0}, g.Crops[1]); diff != "" {
		t.Errorf("crop 1 (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Crop{Width: 320, Height: 400, X: 960, Y: 320}, g.Crops[5]); diff != "" {
		t.Errorf("crop 5 (-want +got):\n%s", diff)
	}
	want := "[0:v]crop=320:320:0:0[tile0];[0:v]crop=640:320:320:0[tile1];[0:v]crop=320:320:960:0[tile2];" +
		"[0:v]crop=320:400:0:320[tile3];[0:v]crop=640:400:320:320[tile4];[0:v]crop=320:400:960:320[tile5]"
	if got := g.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestBuildFilterGraph_tiles_cover_display(t *testing.T) {
	for _, dims := range [][2]int{{1, 1}, {2, 3}, {4, 4}, {5, 7}} {
		rows, cols := dims[0], dims[1]
		g, err := BuildFilterGraph(FilterGraphRequest{
			Rows: rows, Cols: cols,
			CodedWidth: 1920, CodedHeight: 1088,
			DisplayWidth: 1920, DisplayHeight: 1080,
		}, tiles.DefaultAlignment())
		if err != nil {
			t.Fatalf("%dx%d: %v", rows, cols, err)
		}

		area := 0
		for i, c := range g.Crops {
			if c.X+c.Width > 1920 || c.Y+c.Height > 1080 {
				t.Errorf("%dx%d: tile %d %+v leaves the frame", rows, cols, i, c)
			}
			area += c.Width * c.Height
		}
		if area != 1920*1080 {
			t.Errorf("%dx%d tiles cover %d pixels, want %d", rows, cols, area, 1920*1080)
		}
	}
}

func TestBuildFilterGraph_zero_sized_row(t *testing.T) {
	_, err := BuildFilterGraph(FilterGraphRequest{
		Rows:          3,
		Cols:          1,
		CodedWidth:    64,
		CodedHeight:   64,
		DisplayWidth:  64,
		DisplayHeight: 64,
		RowHeightsCTB: []int{1, 1, 1},
		ColWidthsCTB:  []int{2},
	}, tiles.DefaultAlignment())
	if !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("expected ErrInvalidGeometry, got %v", err)
	}
}

func TestBuildFilterGraph_mismatched_sizes(t *testing.T) {
	_, err := BuildFilterGraph(FilterGraphRequest{
		Rows: 2, Cols: 1,
		CodedWidth: 64, CodedHeight: 64, DisplayWidth: 64, DisplayHeight: 64,
		RowHeightsCTB: []int{1},
		ColWidthsCTB:  []int{2},
	}, tiles.DefaultAlignment())
	if !errors.Is(err, ErrInvalidGeometry) {
		t.Errorf("expected ErrInvalidGeometry, got %v", err)
	}
}
