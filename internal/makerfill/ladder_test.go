package makerfill

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLadderSurvivesWhenAllProfilesPassAndSignStable(t *testing.T) {
	t.Parallel()
	report := EvaluateLadder([]ProfileResult{
		{Profile: Conservative, PnL: 100, Passed: true},
		{Profile: Neutral, PnL: 150, Passed: true},
		{Profile: MeasuredLive, PnL: 200, Passed: true},
	}, 0)
	assert.True(t, report.Survived)
	assert.Empty(t, report.FragileFlags)
}

func TestLadderFailsWhenConservativeBelowThreshold(t *testing.T) {
	t.Parallel()
	report := EvaluateLadder([]ProfileResult{
		{Profile: Conservative, PnL: -10, Passed: false},
	}, 0)
	assert.False(t, report.Survived)
}

func TestLadderFlagsSignFlipAsFragile(t *testing.T) {
	t.Parallel()
	report := EvaluateLadder([]ProfileResult{
		{Profile: Conservative, PnL: 50, Passed: true},
		{Profile: Neutral, PnL: -50, Passed: true},
	}, 0)
	assert.False(t, report.Survived)
	assert.NotEmpty(t, report.FragileFlags)
}

func TestLadderEmptyResultsNotSurvived(t *testing.T) {
	t.Parallel()
	report := EvaluateLadder(nil, 0)
	assert.False(t, report.Survived)
}
