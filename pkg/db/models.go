package db

import (
	"time"

	"github.com/sol-analytics-sync/pkg/config"
)

// ---- Core Models ----

// ProtocolStat is one protocol's metrics for one calendar day,
// as produced by the backend CSV export.
type ProtocolStat struct {
	ID        int64        `json:"id"`
	Protocol  string       `json:"protocol"`
	Chain     config.Chain `json:"chain"`
	Date      string       `json:"date"` // YYYY-MM-DD
	VolumeUSD float64      `json:"total_volume_usd"`
	Users     int64        `json:"daily_users"`
	NewUsers  int64        `json:"new_users"`
	Trades    int64        `json:"daily_trades"`
	FeesUSD   float64      `json:"total_fees_usd"`
}

// SyncRun records one refresh attempt, successful or not.
type SyncRun struct {
	ID              int64     `json:"id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Status          string    `json:"status"` // "success","failed"
	CSVFilesFetched int       `json:"csv_files_fetched"`
	RowsImported    int       `json:"rows_imported"`
	Error           string    `json:"error"`
}
