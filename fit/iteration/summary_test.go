package iteration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize_Empty_ZeroValues(t *testing.T) {
	// GIVEN no rows
	// WHEN summarized
	s := Summarize(nil)

	// THEN all fields are zero
	assert.Equal(t, Summary{}, s)
}

func TestSummarize_PicksMinimumAndLast(t *testing.T) {
	// GIVEN rows whose best likelihood is in the middle
	rows := []Row{
		{Iteration: 0, TotalLikelihood: 12},
		{Iteration: 1, TotalLikelihood: 3},
		{Iteration: 2, TotalLikelihood: 5},
	}

	// WHEN summarized
	s := Summarize(rows)

	// THEN best is iteration 1 and last is 5
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 1, s.BestIteration)
	assert.Equal(t, 3.0, s.BestLikelihood)
	assert.Equal(t, 5.0, s.LastLikelihood)
}
