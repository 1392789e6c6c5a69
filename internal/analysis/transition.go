package analysis

import (
	"fmt"

	"github.com/utakatalp/rank-stability/internal/league"
)

// Transitions counts how clubs move between two rounds across a corpus. Row i
// is position i+1 at InitRound, column j is position j+1 at FinalRound.
type Transitions struct {
	InitRound     int         `json:"init_round"`
	FinalRound    int         `json:"final_round"`
	Seasons       int         `json:"seasons"`
	Counts        [][]int     `json:"counts"`
	Probabilities [][]float64 `json:"probabilities"`
}

// Labels returns the row and column labels, positions 1..N.
func (t *Transitions) Labels() []int {
	labels := make([]int, len(t.Counts))
	for i := range labels {
		labels[i] = i + 1
	}
	return labels
}

// TransitionMatrix follows every club from its position at initRound to its
// position at finalRound and divides the counts by the number of seasons.
// Both rounds must be played rounds, 1 or later.
func TransitionMatrix(corpus []*league.RankHistory, initRound, finalRound int) (*Transitions, error) {
	if len(corpus) == 0 {
		return nil, ErrEmptyCorpus
	}
	if initRound < 1 || finalRound < 1 {
		return nil, fmt.Errorf("transition %d -> %d: %w", initRound, finalRound, league.ErrRoundOutOfRange)
	}

	n := corpus[0].Teams()
	t := &Transitions{
		InitRound:     initRound,
		FinalRound:    finalRound,
		Seasons:       len(corpus),
		Counts:        make([][]int, n),
		Probabilities: make([][]float64, n),
	}
	for i := range t.Counts {
		t.Counts[i] = make([]int, n)
		t.Probabilities[i] = make([]float64, n)
	}

	for s, h := range corpus {
		if h.Teams() != n {
			return nil, fmt.Errorf("season %d has %d teams, want %d: %w", s, h.Teams(), n, ErrLengthMismatch)
		}
		from, err := h.Column(initRound)
		if err != nil {
			return nil, fmt.Errorf("season %d: %w", s, err)
		}
		to, err := h.Column(finalRound)
		if err != nil {
			return nil, fmt.Errorf("season %d: %w", s, err)
		}
		// Both columns are indexed by the same club rows.
		for club := range from {
			t.Counts[from[club]-1][to[club]-1]++
		}
	}

	seasons := float64(len(corpus))
	for i, row := range t.Counts {
		for j, c := range row {
			t.Probabilities[i][j] = float64(c) / seasons
		}
	}
	return t, nil
}
