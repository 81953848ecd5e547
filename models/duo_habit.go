package models

import "time"

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// DuoHabit belongs to one DuoConnection. The two last-check-in slots are
// fixed because a duo is always exactly two members.
type DuoHabit struct {
	ID           string                `json:"id"`
	DuoID        string                `json:"duoId"`
	Name         string                `json:"name"`
	Frequency    Frequency             `json:"frequency"`
	LastCheckinA *time.Time            `json:"lastCheckinA"`
	LastCheckinB *time.Time            `json:"lastCheckinB"`
	History      map[string]CheckinDay `json:"history"`
	CreatedAt    time.Time             `json:"createdAt"`
}

// CheckinDay records, for one period, that the duo reached mutual
// completion and which member's check-in closed the loop.
type CheckinDay struct {
	TriggeredByA bool `json:"triggeredByA"`
	MemberA      bool `json:"memberA"`
	MemberB      bool `json:"memberB"`
}
