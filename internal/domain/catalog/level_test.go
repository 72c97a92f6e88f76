package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevels_Level(t *testing.T) {
	levels, err := NewLevels(DefaultLevelThresholds)
	require.NoError(t, err)

	tests := []struct {
		points    int
		wantLevel int
		wantNext  int
	}{
		{0, 1, 100},
		{99, 1, 100},
		{100, 2, 250},
		{249, 2, 250},
		{250, 3, 500},
		{74999, 14, 75000},
		{75000, 15, 0},
		{1_000_000, 15, 0},
	}

	for _, tt := range tests {
		level, next := levels.Level(tt.points)
		assert.Equal(t, tt.wantLevel, level, "points=%d", tt.points)
		assert.Equal(t, tt.wantNext, next, "points=%d", tt.points)
	}
	assert.Equal(t, 15, levels.Max())
}

func TestNewLevels_Validation(t *testing.T) {
	_, err := NewLevels(nil)
	assert.Error(t, err)

	_, err = NewLevels([]int{10, 20})
	assert.ErrorContains(t, err, "must be 0")

	_, err = NewLevels([]int{0, 100, 100})
	assert.ErrorContains(t, err, "must increase")
}
