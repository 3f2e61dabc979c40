package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sol-analytics-sync/pkg/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS protocol_stats (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    protocol TEXT NOT NULL,
    chain TEXT NOT NULL DEFAULT 'solana',
    date TEXT NOT NULL,
    total_volume_usd REAL DEFAULT 0,
    daily_users INTEGER DEFAULT 0,
    new_users INTEGER DEFAULT 0,
    daily_trades INTEGER DEFAULT 0,
    total_fees_usd REAL DEFAULT 0,
    imported_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(protocol, date)
);

CREATE TABLE IF NOT EXISTS sync_state (
    key TEXT PRIMARY KEY,
    last_sync TIMESTAMP NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sync_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL,
    status TEXT NOT NULL,
    csv_files_fetched INTEGER DEFAULT 0,
    rows_imported INTEGER DEFAULT 0,
    error TEXT DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_stats_protocol ON protocol_stats(protocol);
CREATE INDEX IF NOT EXISTS idx_stats_date ON protocol_stats(date);
CREATE INDEX IF NOT EXISTS idx_stats_chain ON protocol_stats(chain);
CREATE INDEX IF NOT EXISTS idx_runs_started ON sync_runs(started_at);
`

type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ---- Protocol Stats ----

func (s *Store) UpsertProtocolStat(ps ProtocolStat) error {
	_, err := s.db.Exec(`
		INSERT INTO protocol_stats (protocol, chain, date, total_volume_usd, daily_users, new_users, daily_trades, total_fees_usd)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(protocol, date) DO UPDATE SET
			chain = excluded.chain,
			total_volume_usd = excluded.total_volume_usd,
			daily_users = excluded.daily_users,
			new_users = excluded.new_users,
			daily_trades = excluded.daily_trades,
			total_fees_usd = excluded.total_fees_usd,
			imported_at = CURRENT_TIMESTAMP`,
		ps.Protocol, string(ps.Chain), ps.Date, ps.VolumeUSD, ps.Users, ps.NewUsers, ps.Trades, ps.FeesUSD)
	return err
}

const statCols = "id, protocol, chain, date, total_volume_usd, daily_users, new_users, daily_trades, total_fees_usd"

func (s *Store) scanStats(rows *sql.Rows) []ProtocolStat {
	defer rows.Close()

	var stats []ProtocolStat
	for rows.Next() {
		var ps ProtocolStat
		var chain string
		if err := rows.Scan(&ps.ID, &ps.Protocol, &chain, &ps.Date, &ps.VolumeUSD, &ps.Users, &ps.NewUsers, &ps.Trades, &ps.FeesUSD); err != nil {
			continue
		}
		ps.Chain = config.Chain(chain)
		stats = append(stats, ps)
	}
	return stats
}

// GetProtocolStats returns a protocol's daily rows, newest first. Empty
// from/to bounds are ignored; bounds are inclusive YYYY-MM-DD strings.
func (s *Store) GetProtocolStats(protocol, from, to string) ([]ProtocolStat, error) {
	q := "SELECT " + statCols + " FROM protocol_stats WHERE protocol=?"
	args := []interface{}{protocol}
	if from != "" {
		q += " AND date >= ?"
		args = append(args, from)
	}
	if to != "" {
		q += " AND date <= ?"
		args = append(args, to)
	}
	q += " ORDER BY date DESC"

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	return s.scanStats(rows), nil
}

// GetAllStats returns every daily row in the given range across all protocols.
func (s *Store) GetAllStats(from, to string) ([]ProtocolStat, error) {
	q := "SELECT " + statCols + " FROM protocol_stats WHERE 1=1"
	var args []interface{}
	if from != "" {
		q += " AND date >= ?"
		args = append(args, from)
	}
	if to != "" {
		q += " AND date <= ?"
		args = append(args, to)
	}
	q += " ORDER BY date ASC, protocol ASC"

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	return s.scanStats(rows), nil
}

func (s *Store) ListProtocols() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT protocol FROM protocol_stats ORDER BY protocol")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			continue
		}
		names = append(names, n)
	}
	return names, nil
}

// ---- Sync State ----

func (s *Store) GetSyncState(key string) (time.Time, error) {
	var t time.Time
	err := s.db.QueryRow("SELECT last_sync FROM sync_state WHERE key=?", key).Scan(&t)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

func (s *Store) SetSyncState(key string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO sync_state (key, last_sync, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET last_sync=excluded.last_sync, updated_at=CURRENT_TIMESTAMP`,
		key, t.UTC())
	return err
}

// ---- Sync Runs ----

func (s *Store) InsertSyncRun(run SyncRun) error {
	_, err := s.db.Exec(`
		INSERT INTO sync_runs (started_at, finished_at, status, csv_files_fetched, rows_imported, error)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Status, run.CSVFilesFetched, run.RowsImported, run.Error)
	return err
}

func (s *Store) GetRecentSyncRuns(limit int) ([]SyncRun, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, status, csv_files_fetched, rows_imported, COALESCE(error,'')
		FROM sync_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		var r SyncRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status, &r.CSVFilesFetched, &r.RowsImported, &r.Error); err != nil {
			continue
		}
		runs = append(runs, r)
	}
	return runs, nil
}

// ---- Stats ----

func (s *Store) GetStats() (map[string]int64, error) {
	stats := map[string]int64{}
	tables := []string{"protocol_stats", "sync_runs"}

	for _, t := range tables {
		var count int64
		if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", t)).Scan(&count); err == nil {
			stats[t] = count
		}
	}

	var protocols int64
	s.db.QueryRow("SELECT COUNT(DISTINCT protocol) FROM protocol_stats").Scan(&protocols)
	stats["protocols"] = protocols

	return stats, nil
}
