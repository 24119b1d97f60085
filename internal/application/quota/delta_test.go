package quota

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUsageDelta(t *testing.T) {
	tests := []struct {
		name    string
		current uint64
		last    uint64
		hasLast bool
		want    uint64
	}{
		{"no prior sample contributes zero", 5000, 0, false, 0},
		{"normal growth", 8000, 5000, true, 3000},
		{"unchanged counter", 5000, 5000, true, 0},
		{"counter reset contributes current value", 1200, 900000, true, 1200},
		{"reset to zero", 0, 900000, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, usageDelta(tt.current, tt.last, tt.hasLast))
		})
	}
}

func TestBytesToMB(t *testing.T) {
	assert.InDelta(t, 1.5, bytesToMB(1048576+524288), 0.0001)
	assert.Zero(t, bytesToMB(0))
}
