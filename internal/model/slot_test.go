package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOverlaps(t *testing.T) {
	at := func(hour, min int) time.Time {
		return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
	}

	tests := []struct {
		name     string
		aStart   time.Time
		aEnd     time.Time
		bStart   time.Time
		bEnd     time.Time
		overlaps bool
	}{
		{"identical intervals", at(9, 0), at(9, 30), at(9, 0), at(9, 30), true},
		{"contained interval", at(9, 0), at(10, 0), at(9, 15), at(9, 45), true},
		{"partial overlap at start", at(9, 0), at(9, 30), at(9, 15), at(9, 45), true},
		{"partial overlap at end", at(9, 15), at(9, 45), at(9, 0), at(9, 30), true},
		{"touching boundaries do not overlap", at(9, 0), at(9, 30), at(9, 30), at(10, 0), false},
		{"touching boundaries reversed", at(9, 30), at(10, 0), at(9, 0), at(9, 30), false},
		{"disjoint intervals", at(9, 0), at(9, 30), at(11, 0), at(11, 30), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.overlaps, Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd))
		})
	}
}
