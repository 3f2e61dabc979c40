package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sol-analytics-sync/pkg/config"
	"github.com/sol-analytics-sync/pkg/db"
	"github.com/sol-analytics-sync/pkg/syncer"
)

type stubRemote struct {
	calls  int
	err    error
	result syncer.Result
}

func (r *stubRemote) Refresh(ctx context.Context) (*syncer.Result, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	res := r.result
	return &res, nil
}

func (r *stubRemote) LastSync(ctx context.Context) (time.Time, error) {
	return time.Time{}, nil
}

func testServer(t *testing.T, remote syncer.Remote, at time.Time) (*db.Store, *httptest.Server) {
	t.Helper()
	store, err := db.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	rule := syncer.Rule{Loc: loc, CutoffHour: 10}
	controller := syncer.NewController(rule, remote, store.SyncSlot("last-sync"), time.Second)
	controller.SetClock(func() time.Time { return at })

	srv := httptest.NewServer(New(store, controller, 0).Handler())
	t.Cleanup(func() {
		srv.Close()
		store.Close()
	})
	return store, srv
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestSyncStatusEndpoint(t *testing.T) {
	loc, _ := time.LoadLocation("Europe/Berlin")
	at := time.Date(2024, 3, 1, 8, 0, 0, 0, loc)
	_, srv := testServer(t, &stubRemote{}, at)

	var state syncer.State
	code := getJSON(t, srv.URL+"/api/sync/status", &state)

	assert.Equal(t, 200, code)
	assert.False(t, state.CanSync)
	assert.Equal(t, "2h 0m 0s", state.TimeUntilNext)
}

func TestTriggerEndpoint_Ineligible(t *testing.T) {
	loc, _ := time.LoadLocation("Europe/Berlin")
	at := time.Date(2024, 3, 1, 8, 0, 0, 0, loc) // before cutoff
	remote := &stubRemote{}
	_, srv := testServer(t, remote, at)

	resp, err := http.Post(srv.URL+"/api/sync/trigger", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Accepted bool         `json:"accepted"`
		State    syncer.State `json:"state"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, 200, resp.StatusCode)
	assert.False(t, body.Accepted)
	assert.Equal(t, 0, remote.calls, "ineligible trigger must not reach the backend")
}

func TestTriggerEndpoint_Success(t *testing.T) {
	loc, _ := time.LoadLocation("Europe/Berlin")
	at := time.Date(2024, 3, 1, 11, 0, 0, 0, loc)
	remote := &stubRemote{result: syncer.Result{CSVFilesFetched: 5}}
	_, srv := testServer(t, remote, at)

	resp, err := http.Post(srv.URL+"/api/sync/trigger", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Accepted bool         `json:"accepted"`
		State    syncer.State `json:"state"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, body.Accepted)
	assert.Equal(t, 1, remote.calls)
	require.NotNil(t, body.State.LastSync)
	assert.False(t, body.State.CanSync, "window consumed for today")
}

func TestTriggerEndpoint_Failure(t *testing.T) {
	loc, _ := time.LoadLocation("Europe/Berlin")
	at := time.Date(2024, 3, 1, 11, 0, 0, 0, loc)
	remote := &stubRemote{err: errors.New("backend unreachable")}
	_, srv := testServer(t, remote, at)

	resp, err := http.Post(srv.URL+"/api/sync/trigger", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Accepted bool         `json:"accepted"`
		State    syncer.State `json:"state"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "backend unreachable", body.State.Error)
	assert.Nil(t, body.State.LastSync)
}

func TestTriggerEndpoint_GetRejected(t *testing.T) {
	loc, _ := time.LoadLocation("Europe/Berlin")
	_, srv := testServer(t, &stubRemote{}, time.Date(2024, 3, 1, 11, 0, 0, 0, loc))

	resp, err := http.Get(srv.URL + "/api/sync/trigger")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 405, resp.StatusCode)
}

func TestMetricsEndpoints(t *testing.T) {
	loc, _ := time.LoadLocation("Europe/Berlin")
	store, srv := testServer(t, &stubRemote{}, time.Date(2024, 3, 1, 11, 0, 0, 0, loc))

	for _, ps := range []db.ProtocolStat{
		{Protocol: "bullx", Chain: config.ChainSolana, Date: "2024-03-01", VolumeUSD: 1000},
		{Protocol: "maestro", Chain: config.ChainEthereum, Date: "2024-03-01", VolumeUSD: 3000},
	} {
		require.NoError(t, store.UpsertProtocolStat(ps))
	}

	var protocols []string
	assert.Equal(t, 200, getJSON(t, srv.URL+"/api/protocols", &protocols))
	assert.Equal(t, []string{"bullx", "maestro"}, protocols)

	var stats []db.ProtocolStat
	assert.Equal(t, 200, getJSON(t, srv.URL+"/api/protocol-stats?protocol=bullx", &stats))
	require.Len(t, stats, 1)
	assert.Equal(t, 1000.0, stats[0].VolumeUSD)

	resp, err := http.Get(srv.URL + "/api/protocol-stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode, "protocol param required")

	var totals []map[string]interface{}
	assert.Equal(t, 200, getJSON(t, srv.URL+"/api/daily-totals", &totals))
	require.Len(t, totals, 1)
	assert.Equal(t, 4000.0, totals[0]["total_volume_usd"])

	var share map[string]float64
	assert.Equal(t, 200, getJSON(t, srv.URL+"/api/market-share", &share))
	assert.InDelta(t, 0.25, share["bullx"], 1e-9)
	assert.InDelta(t, 0.75, share["maestro"], 1e-9)

	var byChain map[string]float64
	assert.Equal(t, 200, getJSON(t, srv.URL+"/api/chain-volume", &byChain))
	assert.Equal(t, 1000.0, byChain["solana"])
	assert.Equal(t, 3000.0, byChain["ethereum"])

	var health map[string]string
	assert.Equal(t, 200, getJSON(t, srv.URL+"/api/health", &health))
	assert.Equal(t, "ok", health["status"])
}
