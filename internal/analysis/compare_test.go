package analysis_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utakatalp/rank-stability/internal/analysis"
	"github.com/utakatalp/rank-stability/internal/league"
)

func TestSpearman(t *testing.T) {
	tests := []struct {
		name     string
		partial  []int
		final    []int
		wantCorr float64
	}{
		{"identical", []int{1, 2, 3, 4, 5}, []int{1, 2, 3, 4, 5}, 1},
		{"reversed", []int{1, 2, 3, 4, 5}, []int{5, 4, 3, 2, 1}, -1},
		{"one swap", []int{1, 2, 3, 4, 5}, []int{2, 1, 3, 4, 5}, 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			corr, p, err := analysis.Spearman(tt.partial, tt.final, analysis.TwoSided)
			require.NoError(t, err)
			assert.InDelta(t, tt.wantCorr, corr, 1e-9)
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
		})
	}
}

func TestSpearman_PerfectAgreementIsSignificant(t *testing.T) {
	ranks := make([]int, 20)
	for i := range ranks {
		ranks[i] = i + 1
	}
	_, p, err := analysis.Spearman(ranks, ranks, analysis.TwoSided)
	require.NoError(t, err)
	assert.InDelta(t, 0, p, 1e-9)
}

func TestSpearman_Alternatives(t *testing.T) {
	partial := []int{1, 2, 3, 4, 5, 6}
	final := []int{2, 1, 3, 4, 6, 5}

	_, two, err := analysis.Spearman(partial, final, analysis.TwoSided)
	require.NoError(t, err)
	_, greater, err := analysis.Spearman(partial, final, analysis.Greater)
	require.NoError(t, err)
	_, less, err := analysis.Spearman(partial, final, analysis.Less)
	require.NoError(t, err)

	assert.Less(t, greater, less)
	assert.InDelta(t, two, 2*greater, 1e-12)
	assert.InDelta(t, 1, greater+less, 1e-12)
}

func TestSpearman_Degenerate(t *testing.T) {
	corr, p, err := analysis.Spearman([]int{1, 1, 1}, []int{1, 2, 3}, analysis.TwoSided)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(corr))
	assert.True(t, math.IsNaN(p))

	corr, p, err = analysis.Spearman([]int{1, 2}, []int{2, 1}, analysis.TwoSided)
	require.NoError(t, err)
	assert.InDelta(t, -1, corr, 1e-9)
	assert.True(t, math.IsNaN(p), "two points leave no degrees of freedom")
}

func TestSpearman_LengthMismatch(t *testing.T) {
	_, _, err := analysis.Spearman([]int{1, 2, 3, 4, 5}, []int{1, 2, 3, 4, 5, 6}, analysis.TwoSided)
	assert.ErrorIs(t, err, analysis.ErrLengthMismatch)
}

func TestTauDistance(t *testing.T) {
	tests := []struct {
		name    string
		partial []int
		final   []int
		want    analysis.TauDistance
	}{
		{"identical", []int{1, 2, 3, 4, 5}, []int{1, 2, 3, 4, 5}, analysis.TauDistance{Normalized: 0, Raw: 0, Tau: 1}},
		{"reversed", []int{1, 2, 3, 4, 5}, []int{5, 4, 3, 2, 1}, analysis.TauDistance{Normalized: 1, Raw: 10, Tau: -1}},
		{"one swap", []int{1, 2, 3, 4, 5}, []int{2, 1, 3, 4, 5}, analysis.TauDistance{Normalized: 0.1, Raw: 1, Tau: 0.8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := analysis.TauDistanceFull(tt.partial, tt.final)
			require.NoError(t, err)
			assert.InDelta(t, tt.want.Normalized, got.Normalized, 1e-12)
			assert.InDelta(t, tt.want.Raw, got.Raw, 1e-12)
			assert.InDelta(t, tt.want.Tau, got.Tau, 1e-12)

			norm, err := analysis.NormalizedTauDistance(tt.partial, tt.final)
			require.NoError(t, err)
			assert.InDelta(t, got.Normalized, norm, 1e-12)
		})
	}
}

func TestTauDistance_Errors(t *testing.T) {
	_, err := analysis.NormalizedTauDistance([]int{1, 2, 3, 4, 5}, []int{1, 2, 3, 4, 5, 6})
	assert.ErrorIs(t, err, analysis.ErrLengthMismatch)

	d, err := analysis.TauDistanceFull([]int{2, 2, 2}, []int{1, 2, 3})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(d.Tau))
	assert.True(t, math.IsNaN(d.Normalized))
}

func TestCompare(t *testing.T) {
	partial := map[string]int{"Arsenal": 2, "Chelsea": 1, "Everton": 3, "Fulham": 4}
	final := map[string]int{"Arsenal": 1, "Chelsea": 2, "Everton": 3, "Fulham": 4}

	got, err := analysis.Compare(partial, final, analysis.TwoSided)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, got.Correlation, 1e-9)
	assert.InDelta(t, 1.0/6, got.Distance.Normalized, 1e-12)

	_, err = analysis.Compare(partial, map[string]int{"Arsenal": 1, "Chelsea": 2, "Everton": 3, "Leeds": 4}, analysis.TwoSided)
	assert.ErrorIs(t, err, league.ErrTeamNotFound)

	_, err = analysis.Compare(partial, map[string]int{"Arsenal": 1}, analysis.TwoSided)
	assert.ErrorIs(t, err, analysis.ErrLengthMismatch)
}

func TestParseAlternative(t *testing.T) {
	for in, want := range map[string]analysis.Alternative{
		"":          analysis.TwoSided,
		"two-sided": analysis.TwoSided,
		"less":      analysis.Less,
		"greater":   analysis.Greater,
	} {
		got, err := analysis.ParseAlternative(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		if in != "" {
			assert.Equal(t, in, got.String())
		}
	}

	_, err := analysis.ParseAlternative("sideways")
	assert.ErrorIs(t, err, analysis.ErrUnknownAlternative)
}

func TestCorpusCurves(t *testing.T) {
	corpus, err := league.SimulateCorpus(context.Background(), league.CorpusConfig{
		Season:   league.SeasonConfig{Teams: 8, GoalRate: 1.3},
		Seasons:  5,
		BaseSeed: 7,
		Workers:  2,
	}, nil)
	require.NoError(t, err)

	curves, err := analysis.CorpusCurves(corpus, analysis.TwoSided)
	require.NoError(t, err)
	require.Len(t, curves.Distance, 14)
	require.Len(t, curves.Correlation, 14)
	require.Len(t, curves.PValue, 14)

	last := len(curves.Distance) - 1
	assert.InDelta(t, 0, curves.Distance[last], 1e-12)
	assert.InDelta(t, 1, curves.Correlation[last], 1e-9)

	for _, d := range curves.Distance {
		assert.GreaterOrEqual(t, d, 0.0)
		assert.LessOrEqual(t, d, 1.0)
	}

	single, err := analysis.SeasonCurves(corpus[0], analysis.TwoSided)
	require.NoError(t, err)
	assert.InDelta(t, 0, single.Distance[last], 1e-12)
}

func TestCorpusCurves_Errors(t *testing.T) {
	_, err := analysis.CorpusCurves(nil, analysis.TwoSided)
	assert.ErrorIs(t, err, analysis.ErrEmptyCorpus)

	short, err := league.SimulateSeason(league.SeasonConfig{Teams: 4, GoalRate: 1}, 1)
	require.NoError(t, err)
	long, err := league.SimulateSeason(league.SeasonConfig{Teams: 6, GoalRate: 1}, 1)
	require.NoError(t, err)

	_, err = analysis.CorpusCurves([]*league.RankHistory{short, long}, analysis.TwoSided)
	assert.ErrorIs(t, err, analysis.ErrLengthMismatch)
}

func TestRoundTable(t *testing.T) {
	h, err := league.NewRankHistory([]string{"A", "B", "C"})
	require.NoError(t, err)
	require.NoError(t, h.AppendRound(map[string]int{"A": 3, "B": 1, "C": 2}))

	table, err := analysis.RoundTable(h, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"A": 3, "B": 1, "C": 2}, table)

	_, err = analysis.RoundTable(h, 2)
	assert.ErrorIs(t, err, league.ErrRoundOutOfRange)

	_, err = analysis.RoundTable(h, 0)
	assert.ErrorIs(t, err, league.ErrRoundOutOfRange)
}
