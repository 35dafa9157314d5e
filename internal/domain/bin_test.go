package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBinDistance(t *testing.T) {
	tests := []struct {
		name     string
		from     string
		to       string
		expected int
	}{
		{name: "same bin", from: "A1-B2-C3", to: "A1-B2-C3", expected: 0},
		{name: "aisle only", from: "A1-B2-C3", to: "C1-B2-C3", expected: 20},
		{name: "rack only", from: "A1-B2", to: "A1-B7", expected: 10},
		{name: "aisle and rack", from: "B4-R10-S1", to: "A9-R3", expected: 10 + 14},
		{name: "lower case accepted", from: "a1-b2", to: "b1-b2", expected: 10},
		{name: "missing rack segment", from: "A1", to: "A1-B2", expected: DefaultBinDistance},
		{name: "non numeric rack", from: "A1-BX", to: "A1-B2", expected: DefaultBinDistance},
		{name: "leading digit", from: "11-B2", to: "A1-B2", expected: DefaultBinDistance},
		{name: "empty", from: "", to: "A1-B2", expected: DefaultBinDistance},
		{name: "empty second segment", from: "A1--C3", to: "A1-B2", expected: DefaultBinDistance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BinDistance(tt.from, tt.to))
		})
	}
}

func TestEstimateTravel(t *testing.T) {
	estimate := EstimateTravel(40)

	assert.Equal(t, 40, estimate.Distance)
	assert.Equal(t, 120, estimate.Seconds)
	assert.InDelta(t, 2.0, estimate.Minutes, 0.0001)
}
