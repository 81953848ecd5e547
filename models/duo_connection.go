package models

import "time"

type TreeStage string

const (
	StageSprout     TreeStage = "sprout"
	StageSmallTree  TreeStage = "smallTree"
	StageMediumTree TreeStage = "mediumTree"
	StageGrownTree  TreeStage = "grownTree"
)

// DuoConnection pairs exactly two members. TrustScore only ever goes up;
// Streak is credited at most once per period, tracked by StreakCreditedAt
// (the start of the last credited day or week, nil for a fresh duo).
type DuoConnection struct {
	ID               string     `json:"id"`
	MemberAID        string     `json:"memberAId"`
	MemberBID        string     `json:"memberBId"`
	TrustScore       int        `json:"trustScore"`
	Streak           int        `json:"streak"`
	StreakCreditedAt *time.Time `json:"streakCreditedAt"`
	TreeStage        TreeStage  `json:"treeStage"`
	CreatedAt        time.Time  `json:"createdAt"`
}
