package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sol-analytics-sync/pkg/api"
	"github.com/sol-analytics-sync/pkg/config"
	"github.com/sol-analytics-sync/pkg/db"
	"github.com/sol-analytics-sync/pkg/syncer"
)

// Pipeline is the full refresh operation behind the sync button: ask
// the backend to regenerate its exports, download the CSV for every
// tracked protocol, import the rows, and record the run. It implements
// syncer.Remote.
type Pipeline struct {
	api       *api.Client
	importer  *Importer
	store     *db.Store
	dataDir   string
	protocols []config.Protocol
}

func NewPipeline(client *api.Client, store *db.Store, dataDir string, protocols []config.Protocol) *Pipeline {
	return &Pipeline{
		api:       client,
		importer:  NewImporter(store),
		store:     store,
		dataDir:   dataDir,
		protocols: protocols,
	}
}

// Refresh runs one sync end to end. Per-protocol download or import
// failures are logged and skipped; the run fails only when the backend
// refresh itself fails or no protocol file could be imported.
func (p *Pipeline) Refresh(ctx context.Context) (*syncer.Result, error) {
	started := time.Now().UTC()

	res, err := p.api.RefreshData(ctx)
	if err != nil {
		p.recordRun(started, 0, 0, err)
		return nil, fmt.Errorf("backend refresh: %w", err)
	}
	log.Info().
		Int("csv_files", res.CSVFilesFetched).
		Int("protocols", res.ProtocolsUpdated).
		Str("message", res.Message).
		Msg("backend refresh done, importing exports")

	files, rows := 0, 0
	for _, proto := range p.protocols {
		if ctx.Err() != nil {
			break
		}
		data, err := p.api.DownloadCSV(ctx, proto.Name)
		if err != nil {
			log.Warn().Err(err).Str("protocol", proto.Name).Msg("csv download failed")
			continue
		}
		p.saveLocal(proto.Name, data)

		n, err := p.importer.ImportReader(bytes.NewReader(data), proto.Name, proto.Chain)
		if err != nil {
			log.Warn().Err(err).Str("protocol", proto.Name).Msg("csv import failed")
			continue
		}
		files++
		rows += n
	}

	if files == 0 {
		err := fmt.Errorf("no protocol files imported (backend reported %d fetched)", res.CSVFilesFetched)
		p.recordRun(started, 0, 0, err)
		return nil, err
	}

	p.recordRun(started, files, rows, nil)
	return &syncer.Result{CSVFilesFetched: files, RowsImported: rows}, nil
}

// LastSync passes the server-side sync status through to the controller.
func (p *Pipeline) LastSync(ctx context.Context) (time.Time, error) {
	return p.api.LastSync(ctx)
}

// saveLocal keeps a copy of the downloaded export on disk so the data
// dir can be re-imported offline. Failures only cost the local copy.
func (p *Pipeline) saveLocal(protocol string, data []byte) {
	if p.dataDir == "" {
		return
	}
	if err := os.MkdirAll(p.dataDir, 0755); err != nil {
		log.Warn().Err(err).Msg("data dir unavailable")
		return
	}
	path := filepath.Join(p.dataDir, protocol+".csv")
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not save csv copy")
	}
}

func (p *Pipeline) recordRun(started time.Time, files, rows int, runErr error) {
	run := db.SyncRun{
		StartedAt:       started,
		FinishedAt:      time.Now().UTC(),
		Status:          "success",
		CSVFilesFetched: files,
		RowsImported:    rows,
	}
	if runErr != nil {
		run.Status = "failed"
		run.Error = runErr.Error()
	}
	if err := p.store.InsertSyncRun(run); err != nil {
		log.Warn().Err(err).Msg("could not record sync run")
	}
}

// Reimport loads whatever CSV copies are already in the data dir,
// without touching the backend. Used at startup so the dashboard has
// data before the first sync of the day.
func (p *Pipeline) Reimport() (int, int) {
	files, rows := 0, 0
	for _, proto := range p.protocols {
		path := filepath.Join(p.dataDir, proto.Name+".csv")
		n, err := p.importer.ImportFile(path, proto.Name, proto.Chain)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Debug().Err(err).Str("protocol", proto.Name).Msg("local csv not importable")
			}
			continue
		}
		files++
		rows += n
	}
	return files, rows
}
