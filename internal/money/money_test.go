package money

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound(t *testing.T) {
	tests := []struct {
		name   string
		value  float64
		places int32
		want   float64
	}{
		{"cents", 12.345, 2, 12.35},
		{"negative cents", -12.345, 2, -12.35},
		{"one place", 66.66666, 1, 66.7},
		{"nan", math.NaN(), 2, 0},
		{"inf", math.Inf(1), 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Round(tt.value, tt.places))
		})
	}
}

func TestSum(t *testing.T) {
	assert.Equal(t, 0.3, Sum(0.1, 0.2))
	assert.Equal(t, 0.0, Sum())
	assert.Equal(t, 1.5, Sum(1, math.NaN(), 0.5))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 125.0, Percent(500, 400))
	assert.Equal(t, 0.0, Percent(10, 0))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "$0.00", Format(0))
	assert.Equal(t, "$999.10", Format(999.1))
	assert.Equal(t, "$1,234.50", Format(1234.5))
	assert.Equal(t, "-$1,234,567.89", Format(-1234567.891))
}
