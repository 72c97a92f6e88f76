package catalog

import (
	"fmt"
	"sort"
)

// DefaultLevelThresholds are the point floors of levels 1..15.
var DefaultLevelThresholds = []int{
	0, 100, 250, 500, 1000, 2000, 3500, 5500, 8000, 12000, 17000, 25000, 35000, 50000, 75000,
}

// Levels maps total points to a level. Index 0 holds level 1's floor.
type Levels struct {
	thresholds []int
}

// NewLevels validates thresholds: non-empty, starting at 0, strictly increasing.
func NewLevels(thresholds []int) (Levels, error) {
	if len(thresholds) == 0 {
		return Levels{}, fmt.Errorf("level thresholds are empty")
	}
	if thresholds[0] != 0 {
		return Levels{}, fmt.Errorf("first level threshold must be 0, got %d", thresholds[0])
	}
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i] <= thresholds[i-1] {
			return Levels{}, fmt.Errorf("level thresholds must increase: %d after %d", thresholds[i], thresholds[i-1])
		}
	}
	return Levels{thresholds: append([]int(nil), thresholds...)}, nil
}

// Level returns the level for points and the floor of the next level.
// next is 0 at the maximum level.
func (l Levels) Level(points int) (level, next int) {
	// Count of thresholds <= points.
	level = sort.SearchInts(l.thresholds, points+1)
	if level < len(l.thresholds) {
		next = l.thresholds[level]
	}
	return level, next
}

// Max returns the highest attainable level.
func (l Levels) Max() int {
	return len(l.thresholds)
}

// Thresholds returns a copy of the level floors.
func (l Levels) Thresholds() []int {
	return append([]int(nil), l.thresholds...)
}
