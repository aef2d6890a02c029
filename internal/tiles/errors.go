package tiles

import "errors"

var (
	// ErrMalformedLayout is returned when a persisted layout cannot be decoded
	// or its row/column counts disagree with its size lists.
	ErrMalformedLayout = errors.New("malformed tile layout")

	// ErrInvalidDirectoryLayout is returned when a layouts directory violates
	// the "<start>-<end>/<single layout file>" convention.
	ErrInvalidDirectoryLayout = errors.New("invalid layout directory")

	// ErrNoLayoutForFrame is returned when no loaded interval contains a frame.
	ErrNoLayoutForFrame = errors.New("no tile layout for frame")

	// ErrAmbiguousLayoutForFrame is returned when more than one loaded interval
	// contains a frame.
	ErrAmbiguousLayoutForFrame = errors.New("ambiguous tile layout for frame")

	// ErrIndexOutOfRange is returned for a tile index outside the layout.
	ErrIndexOutOfRange = errors.New("tile index out of range")
)
