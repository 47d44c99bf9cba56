package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound(t *testing.T) {
	tests := []struct {
		in     float64
		places int32
		want   float64
	}{
		{3.8000000000000003, 2, 3.8},
		{4.125, 2, 4.13},
		{-12.345, 1, -12.3},
		{4.666666, 2, 4.67},
		{0, 2, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round(tt.in, tt.places), "Round(%v, %d)", tt.in, tt.places)
	}
}

func TestRoundAll(t *testing.T) {
	in := map[string]float64{"nps": 33.33333, "overall_rating": 4.2049}
	got := RoundAll(in)
	assert.Equal(t, map[string]float64{"nps": 33.33, "overall_rating": 4.2}, got)
	assert.Equal(t, 33.33333, in["nps"], "input is not modified")
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "4.50", Format(4.5, 2))
	assert.Equal(t, "-20.0", Format(-20, 1))
	assert.Equal(t, "5", Format(4.6, 0))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0.0, Percent(3, 0))
	assert.Equal(t, 66.67, Percent(2, 3))
	assert.Equal(t, 100.0, Percent(5, 5))
}
