package db

import (
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"
)

// SyncSlot is a durable single-value slot holding the last successful
// sync's timestamp. Storage failures degrade to session-only memory:
// Load reports absent and Save becomes a no-op, never an error.
type SyncSlot struct {
	store *Store
	key   string
}

func (s *Store) SyncSlot(key string) *SyncSlot {
	return &SyncSlot{store: s, key: key}
}

func (sl *SyncSlot) Load() (time.Time, bool) {
	t, err := sl.store.GetSyncState(sl.key)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Warn().Err(err).Str("key", sl.key).Msg("sync slot read failed, starting without local state")
		}
		return time.Time{}, false
	}
	return t, true
}

func (sl *SyncSlot) Save(t time.Time) {
	if err := sl.store.SetSyncState(sl.key, t); err != nil {
		log.Warn().Err(err).Str("key", sl.key).Msg("sync slot write failed, keeping in-memory value only")
	}
}
