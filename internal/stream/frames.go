// Package stream keeps connected dashboard clients in sync with the beads
// store. Each subscription independently polls the store's change counter
// and fans deltas out to its own sink, so one slow client can never delay
// another; heartbeats and a staleness sweep guarantee dead channels are
// evicted rather than accumulated.
package stream

import "github.com/beadboard/beadboard/internal/models"

// Frame type tags on the wire.
const (
	FrameInit   = "init"
	FrameUpdate = "update"
)

// InitFrame is the first payload every subscription receives: the full
// current snapshot and the version it was computed from.
type InitFrame struct {
	Type        string        `json:"type"`
	Issues      []models.Bead `json:"issues"`
	DataVersion int64         `json:"data_version"`
}

// UpdateFrame carries one detected change: the full refreshed issue set,
// the ids whose updated_at moved (what the UI highlights), and the audit
// events that arrived since the subscription's cursor.
type UpdateFrame struct {
	Type        string         `json:"type"`
	Issues      []models.Bead  `json:"issues"`
	ChangedIDs  []string       `json:"changed_ids"`
	Events      []models.Event `json:"events"`
	DataVersion int64          `json:"data_version"`
}
