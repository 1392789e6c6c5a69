package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/utakatalp/rank-stability/internal/league"
)

var (
	ErrLengthMismatch     = errors.New("length mismatch")
	ErrEmptyCorpus        = errors.New("empty corpus")
	ErrInsufficientData   = errors.New("insufficient data")
	ErrUnknownAlternative = errors.New("unknown alternative hypothesis")
)

// Alternative selects the hypothesis for the rank correlation p-value.
type Alternative int

const (
	TwoSided Alternative = iota
	Less
	Greater
)

func (a Alternative) String() string {
	switch a {
	case Less:
		return "less"
	case Greater:
		return "greater"
	default:
		return "two-sided"
	}
}

// ParseAlternative accepts "two-sided", "less" and "greater". Empty means two-sided.
func ParseAlternative(s string) (Alternative, error) {
	switch s {
	case "", "two-sided":
		return TwoSided, nil
	case "less":
		return Less, nil
	case "greater":
		return Greater, nil
	}
	return TwoSided, fmt.Errorf("%q: %w", s, ErrUnknownAlternative)
}

// Spearman returns the rank correlation between a partial and a final ranking
// and the p-value of the t-test against no correlation. Zero-variance input
// yields NaN.
func Spearman(partial, final []int, alt Alternative) (corr, pValue float64, err error) {
	if len(partial) != len(final) {
		return 0, 0, fmt.Errorf("spearman: %d vs %d positions: %w", len(partial), len(final), ErrLengthMismatch)
	}

	corr = stat.Correlation(rankData(partial), rankData(final), nil)
	if corr > 1 {
		corr = 1
	} else if corr < -1 {
		corr = -1
	}

	df := float64(len(partial) - 2)
	if math.IsNaN(corr) || df < 1 {
		return corr, math.NaN(), nil
	}

	t := corr * math.Sqrt(df/((corr+1)*(1-corr)))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	switch alt {
	case Less:
		pValue = dist.CDF(t)
	case Greater:
		pValue = dist.Survival(t)
	default:
		pValue = 2 * dist.Survival(math.Abs(t))
	}
	return corr, pValue, nil
}

// TauDistance is the pairwise disagreement between two rankings.
type TauDistance struct {
	// Normalized is in [0, 1]: 0 for identical order, 1 for reversed order.
	Normalized float64 `json:"normalized"`
	// Raw is the number of discordant pairs.
	Raw float64 `json:"raw"`
	Tau float64 `json:"tau"`
}

// NormalizedTauDistance returns the Kendall distance between the rankings
// scaled to [0, 1].
func NormalizedTauDistance(partial, final []int) (float64, error) {
	d, err := TauDistanceFull(partial, final)
	if err != nil {
		return 0, err
	}
	return d.Normalized, nil
}

// TauDistanceFull returns the normalized distance together with the raw
// distance and Kendall's tau.
//
// Tau is computed as tau-a, which equals tau-b when neither ranking has ties.
func TauDistanceFull(partial, final []int) (TauDistance, error) {
	if len(partial) != len(final) {
		return TauDistance{}, fmt.Errorf("tau distance: %d vs %d positions: %w", len(partial), len(final), ErrLengthMismatch)
	}

	n := float64(len(partial))
	tau := math.NaN()
	if len(partial) >= 2 && !constant(partial) && !constant(final) {
		tau = stat.Kendall(toFloats(partial), toFloats(final), nil)
	}

	raw := (1 - tau) * n * (n - 1) / 4
	return TauDistance{
		Normalized: 2 * raw / (n * (n - 1)),
		Raw:        raw,
		Tau:        tau,
	}, nil
}

// Comparison holds both metrics for one partial ranking.
type Comparison struct {
	Correlation float64     `json:"correlation"`
	PValue      float64     `json:"p_value"`
	Distance    TauDistance `json:"distance"`
}

// Compare aligns two tables keyed by club and compares them. Every club in one
// table must appear in the other.
func Compare(partial, final map[string]int, alt Alternative) (Comparison, error) {
	p, f, err := AlignByClub(partial, final)
	if err != nil {
		return Comparison{}, err
	}
	corr, pv, err := Spearman(p, f, alt)
	if err != nil {
		return Comparison{}, err
	}
	dist, err := TauDistanceFull(p, f)
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{Correlation: corr, PValue: pv, Distance: dist}, nil
}

// AlignByClub returns the positions of both tables in the same club order.
func AlignByClub(partial, final map[string]int) ([]int, []int, error) {
	if len(partial) != len(final) {
		return nil, nil, fmt.Errorf("aligning tables: %d vs %d clubs: %w", len(partial), len(final), ErrLengthMismatch)
	}

	clubs := make([]string, 0, len(partial))
	for club := range partial {
		clubs = append(clubs, club)
	}
	sort.Strings(clubs)

	p := make([]int, len(clubs))
	f := make([]int, len(clubs))
	for i, club := range clubs {
		pos, ok := final[club]
		if !ok {
			return nil, nil, fmt.Errorf("aligning tables: club %q: %w", club, league.ErrTeamNotFound)
		}
		p[i] = partial[club]
		f[i] = pos
	}
	return p, f, nil
}

// RoundTable returns the history's table at a played round keyed by club.
// Round 0 is the input-order anchor, not a ranking, and is rejected.
func RoundTable(h *league.RankHistory, round int) (map[string]int, error) {
	if round < 1 {
		return nil, fmt.Errorf("round %d: %w", round, league.ErrRoundOutOfRange)
	}
	col, err := h.Column(round)
	if err != nil {
		return nil, err
	}
	table := make(map[string]int, len(col))
	for i, club := range h.Clubs() {
		table[club] = col[i]
	}
	return table, nil
}

// Curves holds one value per round; index i is round i+1.
type Curves struct {
	Correlation []float64 `json:"correlation"`
	PValue      []float64 `json:"p_value"`
	Distance    []float64 `json:"distance"`
}

// SeasonCurves compares every round of a season with its final round.
func SeasonCurves(h *league.RankHistory, alt Alternative) (Curves, error) {
	rounds := h.Rounds()
	c := Curves{
		Correlation: make([]float64, rounds),
		PValue:      make([]float64, rounds),
		Distance:    make([]float64, rounds),
	}
	final := h.Final()
	for r := 1; r <= rounds; r++ {
		partial, err := h.Column(r)
		if err != nil {
			return Curves{}, err
		}
		corr, pv, err := Spearman(partial, final, alt)
		if err != nil {
			return Curves{}, fmt.Errorf("round %d: %w", r, err)
		}
		dist, err := NormalizedTauDistance(partial, final)
		if err != nil {
			return Curves{}, fmt.Errorf("round %d: %w", r, err)
		}
		c.Correlation[r-1] = corr
		c.PValue[r-1] = pv
		c.Distance[r-1] = dist
	}
	return c, nil
}

// CorpusCurves averages the season curves round by round. Every season must
// have the same number of rounds.
func CorpusCurves(corpus []*league.RankHistory, alt Alternative) (Curves, error) {
	if len(corpus) == 0 {
		return Curves{}, ErrEmptyCorpus
	}

	rounds := corpus[0].Rounds()
	mean := Curves{
		Correlation: make([]float64, rounds),
		PValue:      make([]float64, rounds),
		Distance:    make([]float64, rounds),
	}
	for i, h := range corpus {
		if h.Rounds() != rounds {
			return Curves{}, fmt.Errorf("season %d has %d rounds, want %d: %w", i, h.Rounds(), rounds, ErrLengthMismatch)
		}
		c, err := SeasonCurves(h, alt)
		if err != nil {
			return Curves{}, fmt.Errorf("season %d: %w", i, err)
		}
		for r := 0; r < rounds; r++ {
			mean.Correlation[r] += c.Correlation[r]
			mean.PValue[r] += c.PValue[r]
			mean.Distance[r] += c.Distance[r]
		}
	}

	n := float64(len(corpus))
	for r := 0; r < rounds; r++ {
		mean.Correlation[r] /= n
		mean.PValue[r] /= n
		mean.Distance[r] /= n
	}
	return mean, nil
}

// rankData ranks values from 1, giving tied values the mean of their ranks.
func rankData(values []int) []float64 {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	ranks := make([]float64, len(values))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

func toFloats(values []int) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}

func constant(values []int) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
