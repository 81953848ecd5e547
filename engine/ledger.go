package engine

import (
	"fmt"
	"time"

	"github.com/duogrove/server/dates"
	"github.com/duogrove/server/models"
)

// creditPeriod applies one mutual-completion credit to the duo as a single
// atomic update. Trust accrues on every mutual completion; the streak only
// on the first one in a given period, so a concurrent second credit for the
// same day bumps trust but leaves the streak alone.
func (e *Engine) creditPeriod(duoID string, frequency models.Frequency, now time.Time) (*models.DuoConnection, error) {
	period := dates.StartOfDay(now)
	if frequency == models.FrequencyWeekly {
		period = dates.StartOfWeek(now)
	}

	conn, err := e.store.UpdateConnection(duoID, func(c *models.DuoConnection) error {
		if c.StreakCreditedAt == nil || !c.StreakCreditedAt.Equal(period) {
			c.Streak++
			at := period
			c.StreakCreditedAt = &at
		}

		c.TrustScore++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("credit duo %s: %w", duoID, err)
	}

	return conn, nil
}
