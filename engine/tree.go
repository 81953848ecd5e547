package engine

import (
	"fmt"
	"time"

	"github.com/duogrove/server/dates"
	"github.com/duogrove/server/models"
	"github.com/duogrove/server/progression"
)

// SyncResult reports a tree stage transition. NewStage is only set when
// Updated is true.
type SyncResult struct {
	Updated  bool             `json:"updated"`
	NewStage models.TreeStage `json:"newStage,omitempty"`
}

// SyncTreeStage compares the duo's stored stage with the stage its trust
// score implies and, on mismatch, patches the connection and the tree in one
// transaction and logs the transition under the current day. Runs after
// every trust credit and also stands alone as a reconciliation pass.
func (e *Engine) SyncTreeStage(duoID string, now time.Time) (*SyncResult, error) {
	conn, err := e.store.Connection(duoID)
	if err != nil {
		return nil, fmt.Errorf("load duo %s: %w", duoID, err)
	}

	expected := progression.StageOf(progression.LevelOf(conn.TrustScore))
	if expected == conn.TreeStage {
		return &SyncResult{Updated: false}, nil
	}

	entry := models.GrowthEntry{
		Day:   dates.DayKey(now),
		Stage: expected,
		Note:  fmt.Sprintf("evolved to %s", expected),
	}
	if err := e.store.SetTreeStage(duoID, expected, entry); err != nil {
		return nil, fmt.Errorf("evolve tree for duo %s: %w", duoID, err)
	}

	return &SyncResult{Updated: true, NewStage: expected}, nil
}
