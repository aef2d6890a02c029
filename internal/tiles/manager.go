package tiles

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// Interval is an inclusive range of frame numbers.
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether start <= frame <= end.
func (i Interval) Contains(frame int) bool {
	return i.Start <= frame && frame <= i.End
}

// Frames is the number of frames covered by the interval.
func (i Interval) Frames() int {
	return i.End - i.Start + 1
}

func (i Interval) String() string {
	return fmt.Sprintf("%d-%d", i.Start, i.End)
}

// IntervalLayout pairs a frame interval with the layout active over it.
type IntervalLayout struct {
	Interval Interval
	Layout   *Layout
	// Dir is the directory the layout was loaded from, empty for in-memory sets.
	Dir string
}

// Manager resolves the tile layout that applies to a frame. It is safe for
// concurrent reads; entries are never mutated after construction.
type Manager struct {
	entries []IntervalLayout
}

var intervalDirPattern = regexp.MustCompile(`^(\d+)-(\d+)$`)

// ParseInterval parses a "<start>-<end>" directory name.
func ParseInterval(name string) (Interval, error) {
	m := intervalDirPattern.FindStringSubmatch(name)
	if m == nil {
		return Interval{}, fmt.Errorf("%w: %q is not <start>-<end>", ErrInvalidDirectoryLayout, name)
	}
	start, err := strconv.Atoi(m[1])
	if err != nil {
		return Interval{}, fmt.Errorf("%w: %q: %v", ErrInvalidDirectoryLayout, name, err)
	}
	end, err := strconv.Atoi(m[2])
	if err != nil {
		return Interval{}, fmt.Errorf("%w: %q: %v", ErrInvalidDirectoryLayout, name, err)
	}
	if start > end {
		return Interval{}, fmt.Errorf("%w: %q starts after it ends", ErrInvalidDirectoryLayout, name)
	}
	return Interval{Start: start, End: end}, nil
}

// Load reads every "<start>-<end>" subdirectory of dir. Each must contain
// exactly one file holding a serialized layout. Entries that are not
// directories are ignored.
func Load(dir string) (*Manager, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDirectoryLayout, err)
	}

	entries := make([]IntervalLayout, 0, len(dirEntries))
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		interval, err := ParseInterval(de.Name())
		if err != nil {
			return nil, err
		}

		sub := filepath.Join(dir, de.Name())
		file, err := singleLayoutFile(sub)
		if err != nil {
			return nil, err
		}
		layout, err := ReadLayoutFile(file)
		if err != nil {
			return nil, err
		}
		entries = append(entries, IntervalLayout{Interval: interval, Layout: layout, Dir: sub})
	}
	return NewManager(entries)
}

func singleLayoutFile(dir string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDirectoryLayout, err)
	}
	if len(files) != 1 || files[0].IsDir() {
		return "", fmt.Errorf("%w: %s must contain exactly one layout file, found %d entries",
			ErrInvalidDirectoryLayout, dir, len(files))
	}
	return filepath.Join(dir, files[0].Name()), nil
}

// NewManager validates an in-memory set of interval layouts. Intervals must be
// well formed and pairwise disjoint.
func NewManager(entries []IntervalLayout) (*Manager, error) {
	sorted := append([]IntervalLayout(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Interval.Start < sorted[j].Interval.Start
	})

	for i, e := range sorted {
		if e.Layout == nil {
			return nil, fmt.Errorf("%w: interval %s has no layout", ErrInvalidDirectoryLayout, e.Interval)
		}
		if e.Interval.Start < 0 || e.Interval.Start > e.Interval.End {
			return nil, fmt.Errorf("%w: interval %s is invalid", ErrInvalidDirectoryLayout, e.Interval)
		}
		if i > 0 && e.Interval.Start <= sorted[i-1].Interval.End {
			return nil, fmt.Errorf("%w: interval %s overlaps %s",
				ErrInvalidDirectoryLayout, e.Interval, sorted[i-1].Interval)
		}
	}
	return &Manager{entries: sorted}, nil
}

// EntryForFrame returns the interval layout containing frame.
func (m *Manager) EntryForFrame(frame int) (IntervalLayout, error) {
	var (
		found IntervalLayout
		n     int
	)
	for _, e := range m.entries {
		if e.Interval.Contains(frame) {
			found = e
			n++
		}
	}
	switch n {
	case 0:
		return IntervalLayout{}, fmt.Errorf("%w: frame %d", ErrNoLayoutForFrame, frame)
	case 1:
		return found, nil
	default:
		return IntervalLayout{}, fmt.Errorf("%w: frame %d matches %d intervals", ErrAmbiguousLayoutForFrame, frame, n)
	}
}

// LayoutForFrame returns the layout whose interval contains frame.
func (m *Manager) LayoutForFrame(frame int) (*Layout, error) {
	e, err := m.EntryForFrame(frame)
	if err != nil {
		return nil, err
	}
	return e.Layout, nil
}

// Segments returns the loaded entries in ascending start-frame order.
func (m *Manager) Segments() []IntervalLayout {
	return append([]IntervalLayout(nil), m.entries...)
}

// Len returns the number of loaded intervals.
func (m *Manager) Len() int {
	return len(m.entries)
}

// MaxFrame returns the largest frame covered, or -1 when empty.
func (m *Manager) MaxFrame() int {
	if len(m.entries) == 0 {
		return -1
	}
	return m.entries[len(m.entries)-1].Interval.End
}
