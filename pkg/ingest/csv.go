package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sol-analytics-sync/pkg/config"
	"github.com/sol-analytics-sync/pkg/db"
)

// The backend's CSV exporter occasionally emits "<nil>" for missing
// values and scientific notation for large volumes. Both get
// normalized before import.
var numericColumns = map[string]bool{
	"total_volume_usd": true,
	"daily_users":      true,
	"numberOfNewUsers": true,
	"daily_trades":     true,
	"total_fees_usd":   true,
}

// Importer parses protocol metric CSVs and upserts them into the store.
type Importer struct {
	store *db.Store
}

func NewImporter(store *db.Store) *Importer {
	return &Importer{store: store}
}

// ImportReader parses one protocol's CSV and upserts its daily rows.
// Returns the number of rows imported. Rows without a parsable date
// are skipped with a warning rather than failing the whole file.
func (im *Importer) ImportReader(r io.Reader, protocol string, chain config.Chain) (int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("read csv header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	if _, ok := col["date"]; !ok {
		return 0, fmt.Errorf("csv for %s has no date column", protocol)
	}

	imported := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read csv row: %w", err)
		}

		date, ok := normalizeDate(field(record, col, "date"))
		if !ok {
			log.Warn().Str("protocol", protocol).Str("date", field(record, col, "date")).Msg("skipping row with bad date")
			continue
		}

		ps := db.ProtocolStat{
			Protocol:  protocol,
			Chain:     chain,
			Date:      date,
			VolumeUSD: parseNumeric(field(record, col, "total_volume_usd")),
			Users:     int64(parseNumeric(field(record, col, "daily_users"))),
			NewUsers:  int64(parseNumeric(field(record, col, "numberOfNewUsers"))),
			Trades:    int64(parseNumeric(field(record, col, "daily_trades"))),
			FeesUSD:   parseNumeric(field(record, col, "total_fees_usd")),
		}
		if err := im.store.UpsertProtocolStat(ps); err != nil {
			return imported, fmt.Errorf("upsert %s %s: %w", protocol, date, err)
		}
		imported++
	}
	return imported, nil
}

func (im *Importer) ImportFile(path, protocol string, chain config.Chain) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return im.ImportReader(f, protocol, chain)
}

func field(record []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// sanitize converts "<nil>" to "0" and scientific notation to plain
// decimals, mirroring the backend's historical CSV quirks.
func sanitize(v string) string {
	if v == "" || v == "<nil>" {
		return "0"
	}
	if strings.Contains(strings.ToLower(v), "e+") {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return strconv.FormatFloat(f, 'f', 2, 64)
		}
	}
	return v
}

func parseNumeric(v string) float64 {
	f, err := strconv.ParseFloat(sanitize(v), 64)
	if err != nil {
		return 0
	}
	return f
}

var dateLayouts = []string{"2006-01-02", "02-01-2006", "01/02/2006"}

// normalizeDate canonicalizes the CSV date column to YYYY-MM-DD.
func normalizeDate(v string) (string, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}
