// Package engine implements the duo progression rules: paired check-ins
// accrue trust, distinct periods of mutual completion extend the streak, and
// the accumulated trust drives the shared tree through its growth stages.
package engine

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/duogrove/server/db"
	"github.com/duogrove/server/models"
)

const seededHabitName = "Daily check-in"

type Engine struct {
	store db.Store
}

func New(store db.Store) *Engine {
	return &Engine{store: store}
}

// CreateDuo inserts the records a freshly paired duo owns: the connection,
// its tree, and one seeded daily habit. Called when an invite is accepted;
// the invite flow itself lives in the surrounding application.
func (e *Engine) CreateDuo(memberAID, memberBID string, now time.Time) (*models.DuoConnection, error) {
	err := validation.Errors{
		"memberAId": validation.Validate(memberAID, validation.Required),
		"memberBId": validation.Validate(memberBID, validation.Required),
	}.Filter()
	if err != nil {
		return nil, err
	}

	conn := &models.DuoConnection{
		ID:         uuid.NewString(),
		MemberAID:  memberAID,
		MemberBID:  memberBID,
		TrustScore: 0,
		Streak:     0,
		TreeStage:  models.StageSprout,
		CreatedAt:  now,
	}
	if err := e.store.InsertConnection(conn); err != nil {
		return nil, fmt.Errorf("create duo: %w", err)
	}

	tree := &models.Tree{
		ID:        uuid.NewString(),
		DuoID:     conn.ID,
		Stage:     models.StageSprout,
		CreatedAt: now,
	}
	if err := e.store.InsertTree(tree); err != nil {
		return nil, fmt.Errorf("create tree for duo %s: %w", conn.ID, err)
	}

	if _, err := e.CreateHabit(conn.ID, seededHabitName, models.FrequencyDaily, now); err != nil {
		return nil, err
	}

	return conn, nil
}

// CreateHabit adds a habit to an existing duo.
func (e *Engine) CreateHabit(duoID, name string, frequency models.Frequency, now time.Time) (*models.DuoHabit, error) {
	err := validation.Errors{
		"duoId":     validation.Validate(duoID, validation.Required),
		"name":      validation.Validate(name, validation.Required, validation.Length(1, 80)),
		"frequency": validation.Validate(frequency, validation.Required, validation.In(models.FrequencyDaily, models.FrequencyWeekly)),
	}.Filter()
	if err != nil {
		return nil, err
	}

	if _, err := e.store.Connection(duoID); err != nil {
		return nil, fmt.Errorf("load duo %s: %w", duoID, err)
	}

	habit := &models.DuoHabit{
		ID:        uuid.NewString(),
		DuoID:     duoID,
		Name:      name,
		Frequency: frequency,
		CreatedAt: now,
	}
	if err := e.store.InsertHabit(habit); err != nil {
		return nil, fmt.Errorf("create habit for duo %s: %w", duoID, err)
	}

	return habit, nil
}
