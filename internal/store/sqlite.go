// Package store records simulation runs hour by hour in SQLite.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"citypulse/internal/models"
)

type Store struct {
	conn *sqlx.DB
}

// HourRow is one recorded simulated hour.
type HourRow struct {
	RunID        string  `db:"run_id" json:"run_id"`
	T            int     `db:"t" json:"t"`
	Hour         int     `db:"hour" json:"hour"`
	Day          int     `db:"day" json:"day"`
	Liveability  float64 `db:"liveability" json:"liveability_score"`
	Environment  float64 `db:"environment" json:"environment_score"`
	CostScore    float64 `db:"cost_score" json:"cost_score"`
	AvgBusLoad   float64 `db:"avg_bus_load" json:"avg_bus_load"`
	AvgRailLoad  float64 `db:"avg_rail_load" json:"avg_rail_load"`
	AvgStation   float64 `db:"avg_station" json:"avg_station"`
	AvgTraffic   float64 `db:"avg_traffic" json:"avg_traffic"`
	AvgAir       float64 `db:"avg_air" json:"avg_air"`
	CostThisHour float64 `db:"cost_this_hour" json:"cost_this_hour"`
	Emissions    float64 `db:"emissions" json:"hourly_emissions"`
	ActionCount  int     `db:"action_count" json:"action_count"`
}

type ActionRow struct {
	RunID   string  `db:"run_id" json:"run_id"`
	T       int     `db:"t" json:"t"`
	Hour    int     `db:"hour" json:"hour"`
	Scope   string  `db:"scope" json:"type"`
	Target  string  `db:"target" json:"target"`
	Actions string  `db:"actions_json" json:"-"`
	Urgency float64 `db:"urgency" json:"urgency"`
}

// ActionList decodes the stored action names.
func (r ActionRow) ActionList() []string {
	var out []string
	_ = json.Unmarshal([]byte(r.Actions), &out)
	return out
}

type RunSummary struct {
	RunID       string  `db:"run_id" json:"run_id"`
	Hours       int     `db:"hours" json:"hours"`
	LastT       int     `db:"last_t" json:"last_t"`
	TotalCost   float64 `db:"total_cost" json:"total_cost"`
	Escalations int     `db:"escalations" json:"escalations"`
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS hours (
		run_id TEXT NOT NULL,
		t INTEGER NOT NULL,
		hour INTEGER NOT NULL,
		day INTEGER NOT NULL,
		liveability REAL NOT NULL,
		environment REAL NOT NULL,
		cost_score REAL NOT NULL,
		avg_bus_load REAL NOT NULL,
		avg_rail_load REAL NOT NULL,
		avg_station REAL NOT NULL,
		avg_traffic REAL NOT NULL,
		avg_air REAL NOT NULL,
		cost_this_hour REAL NOT NULL,
		emissions REAL NOT NULL,
		action_count INTEGER NOT NULL,
		PRIMARY KEY (run_id, t)
	);

	CREATE TABLE IF NOT EXISTS actions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		t INTEGER NOT NULL,
		hour INTEGER NOT NULL,
		scope TEXT NOT NULL,
		target TEXT NOT NULL,
		actions_json TEXT NOT NULL,
		urgency REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS escalations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		t INTEGER NOT NULL,
		hour INTEGER NOT NULL,
		scope TEXT NOT NULL,
		target TEXT NOT NULL,
		reason TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_actions_run ON actions(run_id, t);
	CREATE INDEX IF NOT EXISTS idx_escalations_run ON escalations(run_id, t);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// RecordHour writes one simulated hour and the actions and escalations it produced.
func (s *Store) RecordHour(ctx context.Context, runID string, snap models.HistorySnapshot, actions []models.ActionRecord, escalations []models.Escalation) error {
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO hours
		(run_id, t, hour, day, liveability, environment, cost_score,
		 avg_bus_load, avg_rail_load, avg_station, avg_traffic, avg_air,
		 cost_this_hour, emissions, action_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, snap.T, snap.Hour, snap.Day, snap.Scores.Liveability, snap.Scores.Environment, snap.Scores.Cost,
		snap.Metrics.AvgBusLoad, snap.Metrics.AvgRail, snap.Metrics.AvgStation, snap.Metrics.AvgTraffic, snap.Metrics.AvgAir,
		snap.CostThisHour, snap.Emissions, len(actions))
	if err != nil {
		return fmt.Errorf("insert hour: %w", err)
	}

	for _, a := range actions {
		names, _ := json.Marshal(a.Actions)
		if _, err := tx.ExecContext(ctx, `INSERT INTO actions (run_id, t, hour, scope, target, actions_json, urgency)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, a.T, a.Hour, string(a.Scope), a.Target, string(names), a.Urgency); err != nil {
			return fmt.Errorf("insert action: %w", err)
		}
	}
	for _, e := range escalations {
		if _, err := tx.ExecContext(ctx, `INSERT INTO escalations (run_id, t, hour, scope, target, reason)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, e.T, e.Hour, string(e.Scope), e.Target, e.Reason); err != nil {
			return fmt.Errorf("insert escalation: %w", err)
		}
	}
	return tx.Commit()
}

// History returns the most recent hours of a run, oldest first.
func (s *Store) History(ctx context.Context, runID string, limit int) ([]HourRow, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []HourRow
	err := s.conn.SelectContext(ctx, &rows, `SELECT * FROM (
		SELECT run_id, t, hour, day, liveability, environment, cost_score,
		       avg_bus_load, avg_rail_load, avg_station, avg_traffic, avg_air,
		       cost_this_hour, emissions, action_count
		FROM hours WHERE run_id = ? ORDER BY t DESC LIMIT ?) ORDER BY t ASC`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	return rows, nil
}

func (s *Store) Actions(ctx context.Context, runID string, fromT int) ([]ActionRow, error) {
	var rows []ActionRow
	err := s.conn.SelectContext(ctx, &rows, `SELECT run_id, t, hour, scope, target, actions_json, urgency
		FROM actions WHERE run_id = ? AND t >= ? ORDER BY id`, runID, fromT)
	if err != nil {
		return nil, fmt.Errorf("select actions: %w", err)
	}
	return rows, nil
}

// Runs summarises every recorded run, most recent activity first.
func (s *Store) Runs(ctx context.Context) ([]RunSummary, error) {
	var rows []RunSummary
	err := s.conn.SelectContext(ctx, &rows, `SELECT h.run_id AS run_id,
		       COUNT(*) AS hours,
		       MAX(h.t) AS last_t,
		       COALESCE(SUM(h.cost_this_hour), 0) AS total_cost,
		       (SELECT COUNT(*) FROM escalations e WHERE e.run_id = h.run_id) AS escalations
		FROM hours h GROUP BY h.run_id ORDER BY MAX(h.rowid) DESC`)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	return rows, nil
}
