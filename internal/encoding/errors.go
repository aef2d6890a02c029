package encoding

import "errors"

var (
	// ErrUnsupportedEncodingStrategy is returned for rate-control profile names
	// or values outside the strategy table.
	ErrUnsupportedEncodingStrategy = errors.New("unsupported encoding strategy")

	// ErrBitrateRequired is returned when a rate-based strategy is given a
	// non-positive bitrate.
	ErrBitrateRequired = errors.New("encoding strategy requires a positive bitrate")

	// ErrInvalidGeometry is returned when tile counts or sizes cannot describe
	// a frame partition.
	ErrInvalidGeometry = errors.New("invalid tile geometry")

	// ErrInvalidVideoStats is returned when probed stream metadata cannot be
	// used for tiling.
	ErrInvalidVideoStats = errors.New("invalid video stats")
)
