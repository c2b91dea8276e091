package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ResultStore 管理 plan_runs/plan_decisions/plan_snapshots 表。
type ResultStore struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

func NewResultStore(path string) (*ResultStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("result store 路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureResultSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &ResultStore{db: db, path: path}, nil
}

func (s *ResultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureResultSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS plan_runs (
			id TEXT PRIMARY KEY,
			route_name TEXT NOT NULL DEFAULT '',
			symbol TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL,
			status TEXT NOT NULL,
			stops INTEGER NOT NULL DEFAULT 0,
			selected INTEGER NOT NULL DEFAULT 0,
			final_balance INTEGER NOT NULL DEFAULT 0,
			config_json TEXT NOT NULL,
			stats_json TEXT,
			selected_json TEXT,
			message TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			completed_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS plan_decisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			apply_order INTEGER NOT NULL,
			stop_index INTEGER NOT NULL,
			value INTEGER NOT NULL,
			committed INTEGER NOT NULL,
			balance INTEGER NOT NULL,
			FOREIGN KEY(run_id) REFERENCES plan_runs(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS plan_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			balance INTEGER NOT NULL,
			FOREIGN KEY(run_id) REFERENCES plan_runs(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_run ON plan_decisions(run_id, apply_order);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_run ON plan_snapshots(run_id, step);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertRun 写入一条 run 记录。
func (s *ResultStore) InsertRun(ctx context.Context, run Run) error {
	cfgJSON, err := json.Marshal(run.Config)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plan_runs
			(id, route_name, symbol, source, status, stops, selected, final_balance,
			config_json, stats_json, selected_json, message, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.RouteName, run.Symbol, run.Source, run.Status, run.Stops, run.Selected,
		run.FinalBal, string(cfgJSON), nil, nil, run.Message, now, now, nullableTime(run.CompletedAt))
	return err
}

// UpdateRunStatus 仅更新状态与提示。
func (s *ResultStore) UpdateRunStatus(ctx context.Context, id, status, message string) error {
	now := time.Now().UnixMilli()
	var completed interface{}
	if status == RunStatusDone || status == RunStatusFailed {
		completed = now
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE plan_runs
		SET status=?, message=?, updated_at=?, completed_at=CASE WHEN ? IS NULL THEN completed_at ELSE ? END
		WHERE id=?`, status, message, now, completed, completed, id)
	return err
}

// UpdateRunSummary 更新状态与结果指标。
func (s *ResultStore) UpdateRunSummary(ctx context.Context, id, status string, stats RunStats, selectedIdx []int, message string) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	selectedJSON, err := json.Marshal(selectedIdx)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	var completed interface{}
	if status == RunStatusDone || status == RunStatusFailed {
		completed = now
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE plan_runs
		SET status=?, stops=?, selected=?, final_balance=?, stats_json=?, selected_json=?,
		    message=?, updated_at=?, completed_at=CASE WHEN ? IS NULL THEN completed_at ELSE ? END
		WHERE id=?`,
		status, stats.Stops, stats.Selected, stats.FinalBalance, string(statsJSON),
		string(selectedJSON), message, now, completed, completed, id)
	return err
}

// InsertDecisions 批量写入取舍轨迹。
func (s *ResultStore) InsertDecisions(ctx context.Context, runID string, decisions []Decision) error {
	if len(decisions) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO plan_decisions (run_id, apply_order, stop_index, value, committed, balance)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, d := range decisions {
		if _, err := stmt.ExecContext(ctx, runID, d.ApplyOrder, d.StopIndex, d.Value, boolToInt(d.Committed), d.Balance); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// InsertSnapshots 批量写入余额曲线。
func (s *ResultStore) InsertSnapshots(ctx context.Context, runID string, snapshots []Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO plan_snapshots (run_id, step, balance) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, snap := range snapshots {
		if _, err := stmt.ExecContext(ctx, runID, snap.Step, snap.Balance); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *ResultStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, route_name, symbol, source, status, stops, selected, final_balance,
		       config_json, stats_json, selected_json, message, created_at, updated_at, completed_at
		FROM plan_runs
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, run)
	}
	return list, rows.Err()
}

func (s *ResultStore) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, route_name, symbol, source, status, stops, selected, final_balance,
		       config_json, stats_json, selected_json, message, created_at, updated_at, completed_at
		FROM plan_runs WHERE id=?`, id)
	return scanRun(row)
}

func (s *ResultStore) ListDecisions(ctx context.Context, runID string, limit int) ([]Decision, error) {
	if limit <= 0 || limit > 2000 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, apply_order, stop_index, value, committed, balance
		FROM plan_decisions
		WHERE run_id=?
		ORDER BY apply_order ASC
		LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Decision
	for rows.Next() {
		var d Decision
		var committed int
		if err := rows.Scan(&d.ID, &d.ApplyOrder, &d.StopIndex, &d.Value, &committed, &d.Balance); err != nil {
			return nil, err
		}
		d.RunID = runID
		d.Committed = committed != 0
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *ResultStore) ListSnapshots(ctx context.Context, runID string, limit int) ([]Snapshot, error) {
	if limit <= 0 || limit > 2000 {
		limit = 400
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, step, balance
		FROM plan_snapshots
		WHERE run_id=?
		ORDER BY step ASC
		LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.Step, &snap.Balance); err != nil {
			return nil, err
		}
		snap.RunID = runID
		out = append(out, snap)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var cfgStr string
	var statsStr, selectedStr sql.NullString
	var createdAt, updatedAt int64
	var completedAt sql.NullInt64
	if err := row.Scan(&run.ID, &run.RouteName, &run.Symbol, &run.Source, &run.Status,
		&run.Stops, &run.Selected, &run.FinalBal, &cfgStr, &statsStr, &selectedStr,
		&run.Message, &createdAt, &updatedAt, &completedAt); err != nil {
		return Run{}, err
	}
	run.CreatedAt = timeFromMillis(createdAt)
	run.UpdatedAt = timeFromMillis(updatedAt)
	if completedAt.Valid {
		run.CompletedAt = timeFromMillis(completedAt.Int64)
	}
	if err := json.Unmarshal([]byte(cfgStr), &run.Config); err != nil {
		return Run{}, err
	}
	if statsStr.Valid && statsStr.String != "" {
		if err := json.Unmarshal([]byte(statsStr.String), &run.Stats); err != nil {
			return Run{}, err
		}
	}
	if selectedStr.Valid && selectedStr.String != "" {
		if err := json.Unmarshal([]byte(selectedStr.String), &run.SelectedIdx); err != nil {
			return Run{}, err
		}
	}
	return run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func timeFromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.Unix(0, ms*int64(time.Millisecond))
}
