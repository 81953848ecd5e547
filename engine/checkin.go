package engine

import (
	"fmt"
	"time"

	"github.com/duogrove/server/dates"
	"github.com/duogrove/server/models"
)

// CheckinResult reports whether the check-in completed the pair for the
// period and was credited.
type CheckinResult struct {
	Updated bool `json:"updated"`
}

// RecordCheckin writes the calling member's check-in and, when the partner
// already checked in within the habit's window, credits the duo once for the
// period, records the period in the habit history, and synchronizes the tree
// stage. The history entry marks both members credited, so the partner's
// next check-in in the same period does not credit again.
func (e *Engine) RecordCheckin(habitID string, isMemberA bool, now time.Time) (*CheckinResult, error) {
	habit, err := e.store.UpdateHabit(habitID, func(h *models.DuoHabit) error {
		if isMemberA {
			h.LastCheckinA = &now
		} else {
			h.LastCheckinB = &now
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record check-in for habit %s: %w", habitID, err)
	}

	partner := habit.LastCheckinB
	if !isMemberA {
		partner = habit.LastCheckinA
	}
	if partner == nil || !withinWindow(*partner, now, habit.Frequency) {
		return &CheckinResult{Updated: false}, nil
	}

	// Already credited for this period; the partner's check-in closed it.
	key := periodKey(now, habit.Frequency)
	if _, done := habit.History[key]; done {
		return &CheckinResult{Updated: false}, nil
	}

	conn, err := e.store.Connection(habit.DuoID)
	if err != nil {
		return nil, fmt.Errorf("load duo %s for habit %s: %w", habit.DuoID, habitID, err)
	}

	if _, err := e.creditPeriod(conn.ID, habit.Frequency, now); err != nil {
		return nil, err
	}

	rec := models.CheckinDay{TriggeredByA: isMemberA, MemberA: true, MemberB: true}
	if err := e.store.RecordCheckinDay(habit.ID, key, rec); err != nil {
		return nil, fmt.Errorf("record history for habit %s: %w", habitID, err)
	}

	if _, err := e.SyncTreeStage(conn.ID, now); err != nil {
		return nil, err
	}

	return &CheckinResult{Updated: true}, nil
}

// withinWindow reports whether the partner's check-in falls inside the
// habit's rolling completion window. The boundary is inclusive: a partner
// exactly 24h away still completes the pair, one millisecond past does not.
func withinWindow(partner, now time.Time, frequency models.Frequency) bool {
	window := 24 * time.Hour
	if frequency == models.FrequencyWeekly {
		window = 7 * 24 * time.Hour
	}

	diff := now.Sub(partner)
	if diff < 0 {
		diff = -diff
	}

	return diff <= window
}

// periodKey is the history key for the period containing now: the calendar
// day for daily habits, the week's first day for weekly ones.
func periodKey(now time.Time, frequency models.Frequency) string {
	if frequency == models.FrequencyWeekly {
		return dates.DayKey(dates.StartOfWeek(now))
	}
	return dates.DayKey(now)
}
