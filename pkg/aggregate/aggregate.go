package aggregate

import (
	"sort"

	"github.com/sol-analytics-sync/pkg/config"
	"github.com/sol-analytics-sync/pkg/db"
)

// DailyTotal is one calendar day's metrics summed across protocols.
type DailyTotal struct {
	Date      string  `json:"date"`
	VolumeUSD float64 `json:"total_volume_usd"`
	Users     int64   `json:"daily_users"`
	NewUsers  int64   `json:"new_users"`
	Trades    int64   `json:"daily_trades"`
	FeesUSD   float64 `json:"total_fees_usd"`
}

// DailyTotals groups daily rows by date across all protocols, sorted by
// date ascending. This is the series behind the combined volume chart.
func DailyTotals(rows []db.ProtocolStat) []DailyTotal {
	byDate := map[string]*DailyTotal{}
	for _, r := range rows {
		dt, ok := byDate[r.Date]
		if !ok {
			dt = &DailyTotal{Date: r.Date}
			byDate[r.Date] = dt
		}
		dt.VolumeUSD += r.VolumeUSD
		dt.Users += r.Users
		dt.NewUsers += r.NewUsers
		dt.Trades += r.Trades
		dt.FeesUSD += r.FeesUSD
	}

	totals := make([]DailyTotal, 0, len(byDate))
	for _, dt := range byDate {
		totals = append(totals, *dt)
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Date < totals[j].Date })
	return totals
}

// MarketShare returns each protocol's share of total volume, 0..1.
// An empty or zero-volume input yields an empty map.
func MarketShare(rows []db.ProtocolStat) map[string]float64 {
	volumes := map[string]float64{}
	total := 0.0
	for _, r := range rows {
		volumes[r.Protocol] += r.VolumeUSD
		total += r.VolumeUSD
	}
	if total <= 0 {
		return map[string]float64{}
	}

	share := make(map[string]float64, len(volumes))
	for p, v := range volumes {
		share[p] = v / total
	}
	return share
}

// ChainVolume breaks total volume down by chain.
func ChainVolume(rows []db.ProtocolStat) map[config.Chain]float64 {
	out := map[config.Chain]float64{}
	for _, r := range rows {
		out[r.Chain] += r.VolumeUSD
	}
	return out
}

// Totals sums every metric over the given rows.
func Totals(rows []db.ProtocolStat) DailyTotal {
	var t DailyTotal
	for _, r := range rows {
		t.VolumeUSD += r.VolumeUSD
		t.Users += r.Users
		t.NewUsers += r.NewUsers
		t.Trades += r.Trades
		t.FeesUSD += r.FeesUSD
	}
	return t
}

// TopProtocols returns the n highest-volume protocols, descending.
func TopProtocols(rows []db.ProtocolStat, n int) []string {
	volumes := map[string]float64{}
	for _, r := range rows {
		volumes[r.Protocol] += r.VolumeUSD
	}

	names := make([]string, 0, len(volumes))
	for p := range volumes {
		names = append(names, p)
	}
	sort.Slice(names, func(i, j int) bool {
		if volumes[names[i]] != volumes[names[j]] {
			return volumes[names[i]] > volumes[names[j]]
		}
		return names[i] < names[j]
	})
	if n > 0 && len(names) > n {
		names = names[:n]
	}
	return names
}
