package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/safestreets/crossing-cli/internal/db"
)

const pgSchemaName = "crossing"

const pgSchema = `
CREATE SCHEMA IF NOT EXISTS crossing;

CREATE TABLE IF NOT EXISTS crossing.runs (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	published  BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS crossing.segment_scores (
	run_id             TEXT NOT NULL REFERENCES crossing.runs(id) ON DELETE CASCADE,
	segment_id         TEXT NOT NULL,
	road_id            BIGINT NOT NULL,
	sequence           INTEGER NOT NULL,
	name               TEXT NOT NULL,
	class              TEXT NOT NULL,
	distance_to_marked DOUBLE PRECISION,
	nearest_is_marked  BOOLEAN NOT NULL,
	speed_mph          DOUBLE PRECISION,
	lane_count         INTEGER,
	difficulty_index   DOUBLE PRECISION NOT NULL,
	difficulty_label   TEXT NOT NULL,
	geometry_wkt       TEXT NOT NULL,
	PRIMARY KEY (run_id, segment_id)
);

CREATE TABLE IF NOT EXISTS crossing.unmarked_crossings (
	run_id             TEXT NOT NULL REFERENCES crossing.runs(id) ON DELETE CASCADE,
	crossing_id        BIGINT NOT NULL,
	segment_id         TEXT,
	name               TEXT,
	class              TEXT,
	speed_mph          DOUBLE PRECISION,
	lane_count         INTEGER,
	distance_to_marked DOUBLE PRECISION,
	difficulty_index   DOUBLE PRECISION,
	difficulty_label   TEXT,
	geometry_wkt       TEXT NOT NULL,
	PRIMARY KEY (run_id, crossing_id)
);

CREATE TABLE IF NOT EXISTS crossing.current_run (
	id     INTEGER PRIMARY KEY CHECK (id = 1),
	run_id TEXT NOT NULL REFERENCES crossing.runs(id)
);
`

// PostgresStore keeps snapshots in a "crossing" schema. Bulk writes go
// through COPY, which matters for city-scale segment counts.
type PostgresStore struct {
	pool   db.Pool
	logger *zap.Logger
}

// NewPostgres wraps an already-connected pool.
func NewPostgres(pool db.Pool) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		logger: zap.L().With(zap.String("component", "postgres_store")),
	}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, pgSchema); err != nil {
		return eris.Wrap(err, "store: create schema")
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context) (string, error) {
	runID := uuid.NewString()
	_, err := s.pool.Exec(ctx,
		"INSERT INTO crossing.runs (id, created_at, published) VALUES ($1, $2, FALSE)",
		runID, time.Now().UTC())
	if err != nil {
		return "", eris.Wrap(err, "store: create run")
	}
	s.logger.Info("created run", zap.String("run_id", runID))
	return runID, nil
}

var segmentColumns = []string{
	"run_id", "segment_id", "road_id", "sequence", "name", "class",
	"distance_to_marked", "nearest_is_marked", "speed_mph", "lane_count",
	"difficulty_index", "difficulty_label", "geometry_wkt",
}

func (s *PostgresStore) WriteSegments(ctx context.Context, runID string, records []SegmentRecord) error {
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []any{
			runID, rec.SegmentID, rec.RoadID, rec.Sequence, rec.Name, rec.Class,
			rec.DistanceToMarked, rec.NearestIsMarked, rec.SpeedMPH, rec.LaneCount,
			rec.DifficultyIndex, rec.DifficultyLabel, rec.GeometryWKT,
		})
	}
	count, err := db.CopyFromSchema(ctx, s.pool, pgSchemaName, "segment_scores", segmentColumns, rows)
	if err != nil {
		return eris.Wrap(err, "store: copy segments")
	}
	s.logger.Debug("wrote segments", zap.String("run_id", runID), zap.Int64("count", count))
	return nil
}

var crossingColumns = []string{
	"run_id", "crossing_id", "segment_id", "name", "class", "speed_mph",
	"lane_count", "distance_to_marked", "difficulty_index",
	"difficulty_label", "geometry_wkt",
}

func (s *PostgresStore) WriteCrossings(ctx context.Context, runID string, records []CrossingRecord) error {
	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []any{
			runID, rec.CrossingID, rec.SegmentID, rec.Name, rec.Class,
			rec.SpeedMPH, rec.LaneCount, rec.DistanceToMarked,
			rec.DifficultyIndex, rec.DifficultyLabel, rec.GeometryWKT,
		})
	}
	count, err := db.CopyFromSchema(ctx, s.pool, pgSchemaName, "unmarked_crossings", crossingColumns, rows)
	if err != nil {
		return eris.Wrap(err, "store: copy crossings")
	}
	s.logger.Debug("wrote crossings", zap.String("run_id", runID), zap.Int64("count", count))
	return nil
}

func (s *PostgresStore) Publish(ctx context.Context, runID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "store: begin publish")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, "UPDATE crossing.runs SET published = TRUE WHERE id = $1", runID)
	if err != nil {
		return eris.Wrap(err, "store: mark run published")
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("store: run %s not found", runID)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO crossing.current_run (id, run_id) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET run_id = EXCLUDED.run_id`, runID)
	if err != nil {
		return eris.Wrap(err, "store: update current run pointer")
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "store: commit publish")
	}
	s.logger.Info("published run", zap.String("run_id", runID))
	return nil
}

func (s *PostgresStore) CurrentRunID(ctx context.Context) (string, error) {
	var runID string
	err := s.pool.QueryRow(ctx, "SELECT run_id FROM crossing.current_run WHERE id = 1").Scan(&runID)
	if eris.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "store: read current run pointer")
	}
	return runID, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context) ([]RunInfo, error) {
	current, err := s.CurrentRunID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		"SELECT id, created_at, published FROM crossing.runs ORDER BY created_at DESC, id")
	if err != nil {
		return nil, eris.Wrap(err, "store: list runs")
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var info RunInfo
		if err := rows.Scan(&info.ID, &info.CreatedAt, &info.Published); err != nil {
			return nil, eris.Wrap(err, "store: scan run row")
		}
		info.Current = info.ID == current
		runs = append(runs, info)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate run rows")
	}
	return runs, nil
}

func (s *PostgresStore) PruneRuns(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	runs, err := s.ListRuns(ctx)
	if err != nil {
		return 0, err
	}

	kept := 0
	var victims []string
	for _, run := range runs {
		if run.Current {
			continue
		}
		if kept < keep {
			kept++
			continue
		}
		victims = append(victims, run.ID)
	}
	if len(victims) == 0 {
		return 0, nil
	}

	for _, id := range victims {
		if _, err := s.pool.Exec(ctx, "DELETE FROM crossing.runs WHERE id = $1", id); err != nil {
			return 0, eris.Wrapf(err, "store: prune run %s", id)
		}
	}
	s.logger.Info("pruned runs", zap.Int("deleted", len(victims)))
	return len(victims), nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
