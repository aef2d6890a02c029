package encoding

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStitchDirective_Args_non_uniform(t *testing.T) {
	d := StitchDirective{
		TileCount:     4,
		TilePaths:     []string{"t0", "t1", "t2", "t3"},
		Rows:          2,
		Cols:          2,
		CodedHeight:   736,
		CodedWidth:    1280,
		DisplayHeight: 720,
		DisplayWidth:  1280,
		PPSID:         3,
		RowBoundaries: []int{10},
		ColBoundaries: []int{15},
		Output:        "out.hevc",
	}
	if !d.NeedsStitcher() {
		t.Error("4 tiles should need the stitcher")
	}
	want := []string{"4", "t0", "t1", "t2", "t3", "2", "2", "736", "1280", "720", "1280", "out.hevc", "0", "3", "10", "15"}
	if diff := cmp.Diff(want, d.Args()); diff != "" {
		t.Errorf("Args (-want +got):\n%s", diff)
	}
}

func TestStitchDirective_Args_uniform(t *testing.T) {
	d := StitchDirective{
		TileCount: 2, TilePaths: []string{"a", "b"}, Rows: 1, Cols: 2,
		CodedHeight: 64, CodedWidth: 128, DisplayHeight: 64, DisplayWidth: 128,
		Uniform: true, Output: "o",
	}
	want := []string{"2", "a", "b", "1", "2", "64", "128", "64", "128", "o", "1"}
	if diff := cmp.Diff(want, d.Args()); diff != "" {
		t.Errorf("Args (-want +got):\n%s", diff)
	}
}

func TestStitchDirective_single_tile(t *testing.T) {
	if (StitchDirective{TileCount: 1}).NeedsStitcher() {
		t.Error("a single tile should bypass the stitcher")
	}
}

func TestNextPPSID_wraps(t *testing.T) {
	for id, want := range map[int]int{1: 2, 62: 63, 63: 1} {
		if got := nextPPSID(id); got != want {
			t.Errorf("nextPPSID(%d) = %d, want %d", id, got, want)
		}
	}
}
