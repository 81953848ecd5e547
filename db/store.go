package db

import "github.com/duogrove/server/models"

// Store is the transactional record store the progression engine runs
// against. Point lookups return ErrNotFound for missing records. The
// Update* methods apply their closure as a single atomic read-modify-write
// against the underlying record(s): concurrent callers observe either the
// state before or after, never a torn write. UpdateConnection in particular
// carries the streak/trust credit and must not lose increments or
// double-credit a period under concurrent invocation; implementations
// return ErrConflict when contention cannot be resolved.
type Store interface {
	Connection(id string) (*models.DuoConnection, error)
	Habit(id string) (*models.DuoHabit, error)
	HabitsByDuo(duoID string) ([]*models.DuoHabit, error)
	TreeByDuo(duoID string) (*models.Tree, error)
	ConnectionIDs() ([]string, error)

	InsertConnection(conn *models.DuoConnection) error
	InsertHabit(habit *models.DuoHabit) error
	InsertTree(tree *models.Tree) error

	UpdateHabit(id string, apply func(*models.DuoHabit) error) (*models.DuoHabit, error)
	UpdateConnection(id string, apply func(*models.DuoConnection) error) (*models.DuoConnection, error)

	// RecordCheckinDay upserts the habit's history entry for one calendar day.
	RecordCheckinDay(habitID, day string, rec models.CheckinDay) error

	// SetTreeStage patches DuoConnection.TreeStage and Tree.Stage in one
	// transaction and upserts the growth-log entry for the entry's day.
	// The two fields are never written independently.
	SetTreeStage(duoID string, stage models.TreeStage, entry models.GrowthEntry) error
}
