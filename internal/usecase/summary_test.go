package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	testCases := []struct {
		name     string
		counter  map[string]int
		expected Distribution
	}{
		{
			name:     "empty case",
			counter:  map[string]int{},
			expected: Distribution{},
		},
		{
			name:     "single value",
			counter:  map[string]int{"alice": 3},
			expected: Distribution{Total: 3, Mean: 3, Median: 3, P90: 3, Max: 3},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Summarize(tc.counter)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestSummarize_Spread(t *testing.T) {
	got, err := Summarize(map[string]int{"a": 1, "b": 2, "c": 3, "d": 4})
	require.NoError(t, err)

	assert.Equal(t, 10, got.Total)
	assert.InDelta(t, 2.5, got.Mean, 1e-9)
	assert.InDelta(t, 2.5, got.Median, 1e-9)
	assert.InDelta(t, 4.0, got.Max, 1e-9)
	assert.GreaterOrEqual(t, got.P90, got.Median)
	assert.LessOrEqual(t, got.P90, got.Max)
}
