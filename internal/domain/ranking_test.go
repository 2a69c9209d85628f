package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scored(name string, mape float64) BackendResult {
	return BackendResult{Backend: name, Evaluation: Evaluation{MAPE: Score(mape)}, Scored: true}
}

func names(rs []BackendResult) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Backend
	}
	return out
}

func TestRank_AscendingByScore(t *testing.T) {
	results := []BackendResult{
		scored("A", 0.012),
		scored("B", 0.008),
		scored("C", 0.020),
	}
	assert.Equal(t, []string{"B", "A", "C"}, names(Rank(results)))
}

func TestRank_TiesKeepInputOrder(t *testing.T) {
	results := []BackendResult{
		scored("first", 0.01),
		scored("second", 0.01),
		scored("best", 0.001),
		scored("third", 0.01),
	}
	assert.Equal(t, []string{"best", "first", "second", "third"}, names(Rank(results)))
}

func TestRank_ExcludesFailedAndUnscored(t *testing.T) {
	results := []BackendResult{
		scored("ok", 0.05),
		{Backend: "failed", Err: errors.New("boom")},
		{Backend: "unscored"},
	}
	ranked := Rank(results)
	assert.Equal(t, []string{"ok"}, names(ranked))
	assert.Equal(t, []string{"failed"}, names(Failures(results)))
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	results := []BackendResult{scored("A", 0.3), scored("B", 0.1)}
	_ = Rank(results)
	assert.Equal(t, []string{"A", "B"}, names(results))
}

func TestRunReport_Best(t *testing.T) {
	r := RunReport{Results: []BackendResult{scored("A", 0.3), scored("B", 0.1)}}
	_, ok := r.Best()
	assert.False(t, ok)

	r.Ranking = Rank(r.Results)
	best, ok := r.Best()
	require.True(t, ok)
	assert.Equal(t, "B", best.Backend)
	assert.False(t, r.HasTruth())
}
