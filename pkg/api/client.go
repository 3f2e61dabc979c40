package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the dashboard backend. The backend owns the Supabase
// store and the CSV export jobs; this client only triggers refreshes,
// reads sync status, and downloads the exported per-protocol CSVs.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// SyncResult is the backend's report for one completed refresh job.
type SyncResult struct {
	CSVFilesFetched  int    `json:"csv_files_fetched"`
	ProtocolsUpdated int    `json:"protocols_updated"`
	Message          string `json:"message"`
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 50<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("api %s %s: status %d: %s", method, path, resp.StatusCode, excerpt(data))
	}
	return data, nil
}

// RefreshData triggers the backend job that re-pulls protocol metrics
// and regenerates the CSV exports. Blocks until the job reports back.
func (c *Client) RefreshData(ctx context.Context) (*SyncResult, error) {
	data, err := c.do(ctx, "POST", "/api/sync/refresh", nil)
	if err != nil {
		return nil, err
	}
	var res SyncResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("refresh response: %w", err)
	}
	return &res, nil
}

// LastSync reports the server-side last successful sync. Returns the
// zero time when the server has never synced.
func (c *Client) LastSync(ctx context.Context) (time.Time, error) {
	data, err := c.do(ctx, "GET", "/api/sync/status", nil)
	if err != nil {
		return time.Time{}, err
	}
	var res struct {
		LastSync *string `json:"lastSync"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return time.Time{}, fmt.Errorf("status response: %w", err)
	}
	if res.LastSync == nil || *res.LastSync == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, *res.LastSync)
	if err != nil {
		return time.Time{}, fmt.Errorf("status response: bad lastSync %q: %w", *res.LastSync, err)
	}
	return t, nil
}

// DownloadCSV fetches one protocol's exported daily metrics file.
func (c *Client) DownloadCSV(ctx context.Context, protocol string) ([]byte, error) {
	return c.do(ctx, "GET", "/data/"+protocol+".csv", nil)
}

func excerpt(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
