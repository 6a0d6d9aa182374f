// Package store persists pipeline result sets as immutable, versioned
// snapshots. Each run writes into rows keyed by a fresh run id; Publish
// atomically repoints the current-run pointer, so readers always see a
// complete, consistent snapshot and never a run being written.
package store

import (
	"context"
	"time"
)

// SegmentRecord is one durable row per scored road segment.
type SegmentRecord struct {
	SegmentID        string
	RoadID           int64
	Sequence         int
	Name             string
	Class            string
	DistanceToMarked *float64
	NearestIsMarked  bool
	SpeedMPH         *float64
	LaneCount        *int
	DifficultyIndex  float64
	DifficultyLabel  string
	GeometryWKT      string
}

// CrossingRecord is one durable row per enriched unmarked crossing.
// The road attribute fields are nil when no segment was within the
// enrichment tolerance.
type CrossingRecord struct {
	CrossingID       int64
	SegmentID        *string
	Name             *string
	Class            *string
	SpeedMPH         *float64
	LaneCount        *int
	DistanceToMarked *float64
	DifficultyIndex  *float64
	DifficultyLabel  *string
	GeometryWKT      string
}

// RunInfo summarizes a stored pipeline run.
type RunInfo struct {
	ID        string
	CreatedAt time.Time
	Published bool
	Current   bool
}

// Store is the durable snapshot store behind the pipeline.
type Store interface {
	// Migrate creates the schema if it does not exist.
	Migrate(ctx context.Context) error

	// CreateRun registers a new unpublished run and returns its id.
	CreateRun(ctx context.Context) (string, error)

	// WriteSegments appends segment rows to an unpublished run.
	WriteSegments(ctx context.Context, runID string, records []SegmentRecord) error

	// WriteCrossings appends unmarked-crossing rows to an unpublished run.
	WriteCrossings(ctx context.Context, runID string, records []CrossingRecord) error

	// Publish marks the run published and atomically makes it the
	// current snapshot.
	Publish(ctx context.Context, runID string) error

	// CurrentRunID returns the published run readers should use, or ""
	// when no run has been published yet.
	CurrentRunID(ctx context.Context) (string, error)

	// ListRuns returns all runs, newest first.
	ListRuns(ctx context.Context) ([]RunInfo, error)

	// PruneRuns deletes old runs, keeping the current one plus the keep
	// most recent others. It returns the number of runs deleted.
	PruneRuns(ctx context.Context, keep int) (int, error)

	Close() error
}
