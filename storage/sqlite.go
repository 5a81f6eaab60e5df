package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"dealwatch/models"
)

// SQLiteStore holds operational data: search run records, their logs, and
// the command queue an operator process can push work through. The monitor
// registry itself lives in the JSON file, not here.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS search_runs (
		id INTEGER PRIMARY KEY,
		keyword TEXT NOT NULL,
		category TEXT,
		monitor_id TEXT,
		strategy TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		fragments_found INTEGER DEFAULT 0,
		products_parsed INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS run_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		FOREIGN KEY (run_id) REFERENCES search_runs(id)
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT NOT NULL,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON search_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON run_logs(run_id);
	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.SearchRun) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO search_runs (keyword, category, monitor_id, strategy, started_at, status, fragments_found, products_parsed, errors_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Keyword, run.Category, run.MonitorID, run.Strategy, run.StartedAt,
		run.Status, run.FragmentsFound, run.ProductsParsed, run.ErrorsCount)
	if err != nil {
		return 0, fmt.Errorf("create run: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.SearchRun) error {
	_, err := s.db.Exec(`
		UPDATE search_runs
		SET strategy = ?, finished_at = ?, status = ?, fragments_found = ?, products_parsed = ?, errors_count = ?
		WHERE id = ?`,
		run.Strategy, run.FinishedAt, run.Status, run.FragmentsFound,
		run.ProductsParsed, run.ErrorsCount, run.ID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetRecentRuns(limit int) ([]models.SearchRun, error) {
	rows, err := s.db.Query(`
		SELECT id, keyword, COALESCE(category, ''), COALESCE(monitor_id, ''), COALESCE(strategy, ''),
		       started_at, finished_at, status, fragments_found, products_parsed, errors_count
		FROM search_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.SearchRun
	for rows.Next() {
		var run models.SearchRun
		if err := rows.Scan(&run.ID, &run.Keyword, &run.Category, &run.MonitorID, &run.Strategy,
			&run.StartedAt, &run.FinishedAt, &run.Status,
			&run.FragmentsFound, &run.ProductsParsed, &run.ErrorsCount); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message string) {
	s.db.Exec(`INSERT INTO run_logs (run_id, timestamp, level, message) VALUES (?, ?, ?, ?)`,
		runID, time.Now(), level, message)
}

func (s *SQLiteStore) EnqueueCommand(cmd models.CommandType, params *models.CommandParams) error {
	var raw []byte
	if params != nil {
		var err error
		raw, err = json.Marshal(params)
		if err != nil {
			return err
		}
	}
	_, err := s.db.Exec(`INSERT INTO commands (command, params) VALUES (?, ?)`, cmd, raw)
	return err
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, COALESCE(params, '{}'), created_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params []byte
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt); err != nil {
			return nil, err
		}
		cmd.Params = params
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *SQLiteStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	params := &models.CommandParams{}
	if len(cmd.Params) == 0 {
		return params, nil
	}
	if err := json.Unmarshal(cmd.Params, params); err != nil {
		return nil, fmt.Errorf("parse command params: %w", err)
	}
	return params, nil
}
