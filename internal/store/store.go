// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/keystress/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for monitor history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL DEFAULT '',
			user TEXT NOT NULL,
			window_ms INTEGER NOT NULL,
			interval_ms INTEGER NOT NULL,
			endpoint TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY,
			session_id INTEGER NOT NULL,
			taken_at TEXT NOT NULL,
			ks_event_count INTEGER NOT NULL,
			ks_keydowns INTEGER NOT NULL,
			ks_keyups INTEGER NOT NULL,
			ks_unique_keys INTEGER NOT NULL,
			ks_mean_dwell_ms REAL NOT NULL,
			ks_median_dwell_ms REAL NOT NULL,
			ks_p95_dwell_ms REAL NOT NULL,
			ks_mean_ikg_ms REAL NOT NULL,
			ks_median_ikg_ms REAL NOT NULL,
			ks_p95_ikg_ms REAL NOT NULL,
			mouse_move_count INTEGER NOT NULL,
			mouse_click_count INTEGER NOT NULL,
			mouse_scroll_count INTEGER NOT NULL,
			mouse_total_distance_px REAL NOT NULL,
			mouse_mean_speed_px_s REAL NOT NULL,
			mouse_max_speed_px_s REAL NOT NULL,
			active_seconds_fraction REAL NOT NULL,
			stress_prob REAL NOT NULL DEFAULT 0,
			stress_smoothed REAL NOT NULL DEFAULT 0,
			signal_quality TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_session ON snapshots(session_id);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_taken_at ON snapshots(taken_at);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// StartSession records the beginning of a monitor run.
func (s *Store) StartSession(ctx context.Context, rec model.SessionRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (started_at, ended_at, user, window_ms, interval_ms, endpoint)
		 VALUES (?, '', ?, ?, ?, ?)`,
		rec.StartedAt.Format(time.RFC3339Nano),
		rec.User,
		rec.WindowMs,
		rec.IntervalMs,
		rec.Endpoint,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// EndSession stamps the session's end time.
func (s *Store) EndSession(ctx context.Context, sessionID int64, endedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE id = ?`,
		endedAt.Format(time.RFC3339Nano), sessionID)
	return err
}

// InsertSnapshot stores one feature snapshot with its prediction fields.
func (s *Store) InsertSnapshot(ctx context.Context, rec model.SnapshotRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (
			session_id, taken_at,
			ks_event_count, ks_keydowns, ks_keyups, ks_unique_keys,
			ks_mean_dwell_ms, ks_median_dwell_ms, ks_p95_dwell_ms,
			ks_mean_ikg_ms, ks_median_ikg_ms, ks_p95_ikg_ms,
			mouse_move_count, mouse_click_count, mouse_scroll_count,
			mouse_total_distance_px, mouse_mean_speed_px_s, mouse_max_speed_px_s,
			active_seconds_fraction,
			stress_prob, stress_smoothed, signal_quality
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID,
		rec.TakenAt.Format(time.RFC3339Nano),
		rec.EventCount, rec.KeyDowns, rec.KeyUps, rec.UniqueKeys,
		rec.MeanDwellMs, rec.MedianDwellMs, rec.P95DwellMs,
		rec.MeanIKGMs, rec.MedianIKGMs, rec.P95IKGMs,
		rec.MouseMoves, rec.MouseClicks, rec.MouseScrolls,
		rec.DistancePx, rec.MeanSpeedPxS, rec.MaxSpeedPxS,
		rec.ActiveSeconds,
		rec.StressProb, rec.StressSmoothed, rec.SignalQuality,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListSessions returns session aggregates filtered by stats config, oldest first.
func (s *Store) ListSessions(ctx context.Context, cfg model.StatsConfig) ([]model.SessionAggregate, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.SessionID > 0 {
		clauses = append(clauses, "s.id = ?")
		args = append(args, cfg.SessionID)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "s.started_at >= ?")
		args = append(args, cfg.Since.Format(time.RFC3339Nano))
	}
	query := fmt.Sprintf(`SELECT s.id, s.started_at, s.ended_at, s.window_ms,
			COUNT(sn.id),
			COALESCE(SUM(sn.ks_keydowns), 0),
			COALESCE(SUM(sn.mouse_move_count), 0),
			COALESCE(AVG(sn.stress_smoothed), 0),
			COALESCE(MAX(sn.stress_smoothed), 0),
			COALESCE(AVG(sn.active_seconds_fraction), 0)
		FROM sessions s
		LEFT JOIN snapshots sn ON sn.session_id = s.id
		WHERE %s
		GROUP BY s.id
		ORDER BY s.started_at ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var sessions []model.SessionAggregate
	for rows.Next() {
		var agg model.SessionAggregate
		var startedAt, endedAt string
		if err := rows.Scan(&agg.SessionID, &startedAt, &endedAt, &agg.WindowMs,
			&agg.Snapshots, &agg.KeyDowns, &agg.MouseMoves,
			&agg.MeanStress, &agg.MaxStress, &agg.MeanActive); err != nil {
			return nil, err
		}
		agg.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, err
		}
		if endedAt != "" {
			agg.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt)
			if err != nil {
				return nil, err
			}
		}
		sessions = append(sessions, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListSnapshots returns snapshot records filtered by stats config, oldest
// first. Last limits to the most recent N.
func (s *Store) ListSnapshots(ctx context.Context, cfg model.StatsConfig) ([]model.SnapshotRecord, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.SessionID > 0 {
		clauses = append(clauses, "session_id = ?")
		args = append(args, cfg.SessionID)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "taken_at >= ?")
		args = append(args, cfg.Since.Format(time.RFC3339Nano))
	}
	query := fmt.Sprintf(`SELECT id, session_id, taken_at,
			ks_event_count, ks_keydowns, ks_keyups, ks_unique_keys,
			ks_mean_dwell_ms, ks_median_dwell_ms, ks_p95_dwell_ms,
			ks_mean_ikg_ms, ks_median_ikg_ms, ks_p95_ikg_ms,
			mouse_move_count, mouse_click_count, mouse_scroll_count,
			mouse_total_distance_px, mouse_mean_speed_px_s, mouse_max_speed_px_s,
			active_seconds_fraction,
			stress_prob, stress_smoothed, signal_quality
		FROM snapshots
		WHERE %s
		ORDER BY taken_at ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var records []model.SnapshotRecord
	for rows.Next() {
		var rec model.SnapshotRecord
		var takenAt string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &takenAt,
			&rec.EventCount, &rec.KeyDowns, &rec.KeyUps, &rec.UniqueKeys,
			&rec.MeanDwellMs, &rec.MedianDwellMs, &rec.P95DwellMs,
			&rec.MeanIKGMs, &rec.MedianIKGMs, &rec.P95IKGMs,
			&rec.MouseMoves, &rec.MouseClicks, &rec.MouseScrolls,
			&rec.DistancePx, &rec.MeanSpeedPxS, &rec.MaxSpeedPxS,
			&rec.ActiveSeconds,
			&rec.StressProb, &rec.StressSmoothed, &rec.SignalQuality); err != nil {
			return nil, err
		}
		rec.TakenAt, err = time.Parse(time.RFC3339Nano, takenAt)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if cfg.Last > 0 && len(records) > cfg.Last {
		records = records[len(records)-cfg.Last:]
	}
	return records, nil
}
