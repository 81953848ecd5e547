// Package progression maps a duo's accumulated trust score to a level and a
// tree growth stage. The curve and the stage thresholds are fixed design
// constants shared with the client.
package progression

import "github.com/duogrove/server/models"

const curveConstant = 5

// CurveFloor is the minimum trust score required to reach level.
func CurveFloor(level int) int {
	if level < 0 {
		return 0
	}
	return curveConstant * level * level
}

// LevelOf is the greatest level whose floor the score has reached. Scores
// below CurveFloor(1) are level 0; a fresh duo starts there.
func LevelOf(trustScore int) int {
	if trustScore < 0 {
		trustScore = 0
	}

	level := 0
	for CurveFloor(level+1) <= trustScore {
		level++
	}

	return level
}

// LevelData describes progress within the current level.
type LevelData struct {
	Level       int     `json:"level"`
	XPIntoLevel int     `json:"xpIntoLevel"`
	XPNeeded    int     `json:"xpNeeded"`
	Progress    float64 `json:"progress"`
}

// GetLevelData computes the level breakdown for a trust score. Pure; no
// storage access.
func GetLevelData(trustScore int) LevelData {
	level := LevelOf(trustScore)
	into := trustScore - CurveFloor(level)
	needed := CurveFloor(level+1) - CurveFloor(level)

	return LevelData{
		Level:       level,
		XPIntoLevel: into,
		XPNeeded:    needed,
		Progress:    float64(into) / float64(needed),
	}
}

// StageOf maps a level to its growth stage.
func StageOf(level int) models.TreeStage {
	switch {
	case level < 10:
		return models.StageSprout
	case level < 20:
		return models.StageSmallTree
	case level < 30:
		return models.StageMediumTree
	default:
		return models.StageGrownTree
	}
}
