package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	published  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS segment_scores (
	run_id             TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	segment_id         TEXT NOT NULL,
	road_id            INTEGER NOT NULL,
	sequence           INTEGER NOT NULL,
	name               TEXT NOT NULL,
	class              TEXT NOT NULL,
	distance_to_marked REAL,
	nearest_is_marked  INTEGER NOT NULL,
	speed_mph          REAL,
	lane_count         INTEGER,
	difficulty_index   REAL NOT NULL,
	difficulty_label   TEXT NOT NULL,
	geometry_wkt       TEXT NOT NULL,
	PRIMARY KEY (run_id, segment_id)
);

CREATE TABLE IF NOT EXISTS unmarked_crossings (
	run_id             TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	crossing_id        INTEGER NOT NULL,
	segment_id         TEXT,
	name               TEXT,
	class              TEXT,
	speed_mph          REAL,
	lane_count         INTEGER,
	distance_to_marked REAL,
	difficulty_index   REAL,
	difficulty_label   TEXT,
	geometry_wkt       TEXT NOT NULL,
	PRIMARY KEY (run_id, crossing_id)
);

CREATE TABLE IF NOT EXISTS current_run (
	id     INTEGER PRIMARY KEY CHECK (id = 1),
	run_id TEXT NOT NULL REFERENCES runs(id)
);
`

// SQLiteStore keeps snapshots in a single SQLite file. It is the
// default backend and needs no external service.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLite opens (creating if needed) the SQLite database at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "store: open sqlite database")
	}

	// WAL keeps readers of the current snapshot unblocked while a new
	// run is being written.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "store: apply %q", pragma)
		}
	}

	return &SQLiteStore{
		db:     db,
		logger: zap.L().With(zap.String("component", "sqlite_store")),
	}, nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return eris.Wrap(err, "store: create schema")
	}
	return nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context) (string, error) {
	runID := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, created_at, published) VALUES (?, ?, 0)",
		runID, time.Now().UTC())
	if err != nil {
		return "", eris.Wrap(err, "store: create run")
	}
	s.logger.Info("created run", zap.String("run_id", runID))
	return runID, nil
}

func (s *SQLiteStore) WriteSegments(ctx context.Context, runID string, records []SegmentRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin segment write")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO segment_scores (
			run_id, segment_id, road_id, sequence, name, class,
			distance_to_marked, nearest_is_marked, speed_mph, lane_count,
			difficulty_index, difficulty_label, geometry_wkt
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "store: prepare segment insert")
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			runID, rec.SegmentID, rec.RoadID, rec.Sequence, rec.Name, rec.Class,
			rec.DistanceToMarked, rec.NearestIsMarked, rec.SpeedMPH, rec.LaneCount,
			rec.DifficultyIndex, rec.DifficultyLabel, rec.GeometryWKT)
		if err != nil {
			return eris.Wrapf(err, "store: insert segment %s", rec.SegmentID)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "store: commit segment write")
	}
	s.logger.Debug("wrote segments", zap.String("run_id", runID), zap.Int("count", len(records)))
	return nil
}

func (s *SQLiteStore) WriteCrossings(ctx context.Context, runID string, records []CrossingRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin crossing write")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO unmarked_crossings (
			run_id, crossing_id, segment_id, name, class, speed_mph,
			lane_count, distance_to_marked, difficulty_index,
			difficulty_label, geometry_wkt
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "store: prepare crossing insert")
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			runID, rec.CrossingID, rec.SegmentID, rec.Name, rec.Class,
			rec.SpeedMPH, rec.LaneCount, rec.DistanceToMarked,
			rec.DifficultyIndex, rec.DifficultyLabel, rec.GeometryWKT)
		if err != nil {
			return eris.Wrapf(err, "store: insert crossing %d", rec.CrossingID)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "store: commit crossing write")
	}
	s.logger.Debug("wrote crossings", zap.String("run_id", runID), zap.Int("count", len(records)))
	return nil
}

func (s *SQLiteStore) Publish(ctx context.Context, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin publish")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "UPDATE runs SET published = 1 WHERE id = ?", runID)
	if err != nil {
		return eris.Wrap(err, "store: mark run published")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "store: check publish result")
	}
	if affected == 0 {
		return eris.Errorf("store: run %s not found", runID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO current_run (id, run_id) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET run_id = excluded.run_id`, runID)
	if err != nil {
		return eris.Wrap(err, "store: update current run pointer")
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "store: commit publish")
	}
	s.logger.Info("published run", zap.String("run_id", runID))
	return nil
}

func (s *SQLiteStore) CurrentRunID(ctx context.Context) (string, error) {
	var runID string
	err := s.db.QueryRowContext(ctx, "SELECT run_id FROM current_run WHERE id = 1").Scan(&runID)
	if eris.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "store: read current run pointer")
	}
	return runID, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]RunInfo, error) {
	current, err := s.CurrentRunID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, created_at, published FROM runs ORDER BY created_at DESC, id")
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

func (s *SQLiteStore) PruneRuns(ctx context.Context, keep int) (int, error) {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "store: begin prune")
	}
	defer tx.Rollback()

	for _, id := range victims {
		if _, err := tx.ExecContext(ctx, "DELETE FROM segment_scores WHERE run_id = ?", id); err != nil {
			return 0, eris.Wrapf(err, "store: prune segments of run %s", id)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM unmarked_crossings WHERE run_id = ?", id); err != nil {
			return 0, eris.Wrapf(err, "store: prune crossings of run %s", id)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id); err != nil {
			return 0, eris.Wrapf(err, "store: prune run %s", id)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "store: commit prune")
	}
	s.logger.Info("pruned runs", zap.Int("deleted", len(victims)))
	return len(victims), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
