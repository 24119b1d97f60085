package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestNextPercentThreshold(t *testing.T) {
	thresholds := []float64{20, 10, 5}

	// 19.92% remaining crosses the 20 threshold first.
	level, fire := nextPercentThreshold(19.92, nil, thresholds)
	assert.True(t, fire)
	assert.Equal(t, 20.0, level)

	// After 20 fired, 9.18% fires 10 but never 20 again.
	level, fire = nextPercentThreshold(9.18, floatPtr(20), thresholds)
	assert.True(t, fire)
	assert.Equal(t, 10.0, level)

	// Same remaining with 10 already sent fires nothing.
	_, fire = nextPercentThreshold(9.18, floatPtr(10), thresholds)
	assert.False(t, fire)

	// Plenty of quota left fires nothing.
	_, fire = nextPercentThreshold(55, nil, thresholds)
	assert.False(t, fire)

	// Deep drop fires the most severe unfired level directly.
	level, fire = nextPercentThreshold(3, floatPtr(10), thresholds)
	assert.True(t, fire)
	assert.Equal(t, 5.0, level)
}

func TestNextDayThreshold(t *testing.T) {
	thresholds := []int{7, 3, 1}

	days, fire := nextDayThreshold(6, nil, thresholds)
	assert.True(t, fire)
	assert.Equal(t, 7, days)

	days, fire = nextDayThreshold(2, intPtr(7), thresholds)
	assert.True(t, fire)
	assert.Equal(t, 3, days)

	_, fire = nextDayThreshold(2, intPtr(3), thresholds)
	assert.False(t, fire)

	_, fire = nextDayThreshold(-1, nil, thresholds)
	assert.False(t, fire, "already expired uses the status notification instead")

	_, fire = nextDayThreshold(30, nil, thresholds)
	assert.False(t, fire)
}
