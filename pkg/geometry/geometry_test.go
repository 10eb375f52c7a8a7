package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAngleDelta(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		want float64
	}{
		{name: "simple", a: 100, b: 130, want: 30},
		{name: "wraps around north", a: 350, b: 10, want: 20},
		{name: "opposite", a: 0, b: 180, want: 180},
		{name: "identical", a: 45, b: 45, want: 0},
		{name: "order independent", a: 10, b: 350, want: 20},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, AngleDelta(tc.a, tc.b), 1e-9)
		})
	}
}

func TestNormalizeAzimuth(t *testing.T) {
	assert.InDelta(t, 270, NormalizeAzimuth(-90), 1e-9)
	assert.InDelta(t, 90, NormalizeAzimuth(450), 1e-9)
	assert.InDelta(t, 0, NormalizeAzimuth(360), 1e-9)
}

func TestProjections(t *testing.T) {
	assert.InDelta(t, 10, HorizontalDistance(0, 10), 1e-9)
	assert.InDelta(t, 5, HorizontalDistance(60, 10), 1e-9)
	assert.InDelta(t, 5, VerticalDistance(30, 10), 1e-9)
	assert.InDelta(t, -5, VerticalDistance(-30, 10), 1e-9)
	assert.InDelta(t, 0, VerticalDistance(0, 10), 1e-9)
}

func TestUnitConversion(t *testing.T) {
	assert.InDelta(t, 1, MetersToFeet(0.3048), 1e-9)
	assert.InDelta(t, 0.3048, FeetToMeters(1), 1e-9)
}
