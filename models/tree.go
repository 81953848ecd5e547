package models

import "time"

// Tree mirrors its DuoConnection's stage; the two fields are always patched
// together. Leaves, Fruits and Decay are decorative counters owned by the
// rendering layer.
type Tree struct {
	ID        string        `json:"id"`
	DuoID     string        `json:"duoId"`
	Stage     TreeStage     `json:"stage"`
	GrowthLog []GrowthEntry `json:"growthLog"`
	Leaves    int           `json:"leaves"`
	Fruits    int           `json:"fruits"`
	Decay     int           `json:"decay"`
	CreatedAt time.Time     `json:"createdAt"`
}

// GrowthEntry is keyed by calendar day; a second transition on the same day
// replaces that day's entry rather than appending.
type GrowthEntry struct {
	Day   string    `json:"day"`
	Stage TreeStage `json:"stage"`
	Note  string    `json:"note"`
}
