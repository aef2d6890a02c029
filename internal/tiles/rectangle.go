package tiles

import "fmt"

// Rectangle is an axis-aligned region of a frame in pixels.
type Rectangle struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rectangle) String() string {
	return fmt.Sprintf("x: %d, y: %d, width: %d, height: %d", r.X, r.Y, r.Width, r.Height)
}
