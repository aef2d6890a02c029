package orchestrator

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"tile-orchestrator/internal/encoding"
	"tile-orchestrator/internal/tiles"
)

// RunID uniquely identifies a planning run.
type RunID string

// NewRunID returns a random run id.
func NewRunID() RunID {
	return RunID(uuid.NewString())
}

// SegmentState tracks a segment through the pipeline. A segment only moves
// forward, or to SegmentFailed.
type SegmentState int

const (
	SegmentPending SegmentState = iota
	SegmentGeometryDerived
	SegmentBitratesAssigned
	SegmentPlanEmitted
	SegmentEncoded
	SegmentStitched
	SegmentFailed
)

var segmentStateNames = [...]string{
	SegmentPending:          "pending",
	SegmentGeometryDerived:  "geometry-derived",
	SegmentBitratesAssigned: "bitrates-assigned",
	SegmentPlanEmitted:      "plan-emitted",
	SegmentEncoded:          "encoded",
	SegmentStitched:         "stitched",
	SegmentFailed:           "failed",
}

func (s SegmentState) String() string {
	if s < 0 || int(s) >= len(segmentStateNames) {
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
	return segmentStateNames[s]
}

// MarshalText renders the state by name in JSON snapshots.
func (s SegmentState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// stateForStage maps the last planning stage a segment reached.
func stateForStage(st encoding.Stage) SegmentState {
	switch st {
	case encoding.StageGeometryDerived:
		return SegmentGeometryDerived
	case encoding.StageBitratesAssigned:
		return SegmentBitratesAssigned
	case encoding.StagePlanEmitted:
		return SegmentPlanEmitted
	default:
		return SegmentPending
	}
}

// failedAt returns a FailedAt value for a segment that stopped at reached.
func failedAt(reached SegmentState) *SegmentState {
	return &reached
}

// SegmentRecord is what a run remembers about one segment.
type SegmentRecord struct {
	Interval tiles.Interval `json:"interval"`
	State    SegmentState   `json:"state"`
	// FailedAt is the state the segment had reached when it failed, nil
	// unless State is SegmentFailed.
	FailedAt *SegmentState            `json:"failed_at,omitempty"`
	Error    string                   `json:"error,omitempty"`
	Plan     *encoding.TileEncodePlan `json:"plan,omitempty"`

	UpdatedAt time.Time `json:"-"`
}

func (rec *SegmentRecord) clone() SegmentRecord {
	out := *rec
	if rec.FailedAt != nil {
		out.FailedAt = failedAt(*rec.FailedAt)
	}
	return out
}

// UniformTiling requests an even rows x cols split instead of the loaded layouts.
type UniformTiling struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// RunState is the in-memory representation of one run.
type RunState struct {
	ID        RunID
	Input     string
	Video     encoding.VideoStats
	Strategy  encoding.Strategy
	Uniform   *UniformTiling
	Segments  map[int]*SegmentRecord
	Skipped   []tiles.Interval
	Finished  bool
	CreatedAt time.Time
}

// RunSnapshot is a copy of a run with segments ordered by first frame.
type RunSnapshot struct {
	ID        RunID               `json:"run_id"`
	Input     string              `json:"input"`
	Video     encoding.VideoStats `json:"video"`
	Strategy  encoding.Strategy   `json:"strategy"`
	Uniform   *UniformTiling      `json:"uniform,omitempty"`
	Segments  []SegmentRecord     `json:"segments"`
	Skipped   []tiles.Interval    `json:"skipped,omitempty"`
	Finished  bool                `json:"finished"`
	CreatedAt time.Time           `json:"created_at"`
}

// Plans returns the emitted plans of segments that have not failed.
func (s RunSnapshot) Plans() []*encoding.TileEncodePlan {
	var out []*encoding.TileEncodePlan
	for _, seg := range s.Segments {
		if seg.Plan != nil && seg.State != SegmentFailed {
			out = append(out, seg.Plan)
		}
	}
	return out
}
