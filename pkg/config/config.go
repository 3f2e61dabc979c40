package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Chain string

const (
	ChainSolana   Chain = "solana"
	ChainEthereum Chain = "ethereum"
	ChainBase     Chain = "base"
	ChainBSC      Chain = "bsc"
)

func AllEVMChains() []Chain {
	return []Chain{ChainEthereum, ChainBase, ChainBSC}
}

func AllChains() []Chain {
	return []Chain{ChainSolana, ChainEthereum, ChainBase, ChainBSC}
}

// Protocol is one tracked trading application whose daily metrics
// arrive as a backend-generated CSV file.
type Protocol struct {
	Name  string
	Chain Chain
}

type Config struct {
	// Backend API
	APIBaseURL string
	APIKey     string
	APITimeout time.Duration

	// Tracked protocols
	Protocols []Protocol

	// Sync availability rule
	TimezoneName string // reference zone for the daily cutoff
	CutoffHour   int    // wall-clock hour after which a new sync is eligible
	TickInterval time.Duration
	AutoSync     bool // trigger a sync automatically at the cutoff

	// Storage
	DBPath  string
	DataDir string // downloaded CSV files land here

	// Dashboard
	DashboardPort int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		APIBaseURL: envOr("API_BASE_URL", "http://localhost:3000"),
		APIKey:     os.Getenv("API_KEY"),
		APITimeout: time.Duration(envInt("API_TIMEOUT_SECONDS", 120)) * time.Second,

		TimezoneName: envOr("SYNC_TIMEZONE", "Europe/Berlin"),
		CutoffHour:   envInt("SYNC_CUTOFF_HOUR", 10),
		TickInterval: time.Duration(envInt("SYNC_TICK_MS", 1000)) * time.Millisecond,
		AutoSync:     envOr("AUTO_SYNC", "true") == "true",

		DBPath:  envOr("DB_PATH", "sol_analytics.db"),
		DataDir: envOr("DATA_DIR", "data"),

		DashboardPort: envInt("DASHBOARD_PORT", 8080),
	}

	// Parse protocols: "name:chain,name:chain" (chain defaults to solana)
	for _, p := range splitTrim(envOr("PROTOCOLS", defaultProtocols)) {
		parts := strings.SplitN(p, ":", 2)
		proto := Protocol{Name: parts[0], Chain: ChainSolana}
		if len(parts) == 2 && parts[1] != "" {
			proto.Chain = Chain(parts[1])
		}
		cfg.Protocols = append(cfg.Protocols, proto)
	}

	return cfg, nil
}

// defaultProtocols mirrors the trading apps the dashboard ships with.
const defaultProtocols = "bullx:solana,photon:solana,trojan:solana,bonkbot:solana,maestro:ethereum,banana:ethereum,sigma:bsc"

// ReferenceZone resolves the fixed zone used for every cutoff and
// day-boundary computation, independent of the host's local zone.
// Falls back to a fixed CET offset when the host has no tzdata.
func (c *Config) ReferenceZone() *time.Location {
	loc, err := time.LoadLocation(c.TimezoneName)
	if err != nil {
		return time.FixedZone("CET", 60*60)
	}
	return loc
}

func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL must be set")
	}
	if len(c.Protocols) == 0 {
		return fmt.Errorf("no protocols configured — set PROTOCOLS (name:chain,...)")
	}
	if c.CutoffHour < 0 || c.CutoffHour > 23 {
		return fmt.Errorf("SYNC_CUTOFF_HOUR must be 0-23, got %d", c.CutoffHour)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("SYNC_TICK_MS must be positive")
	}
	return nil
}

// helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
