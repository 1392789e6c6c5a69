package league

import (
	"fmt"
	"strconv"
)

// RankHistory is the position-per-round matrix of one season. Round 0 is the
// anchor: every club's input order, recorded before any match. Rounds 1..R are
// the tables after each completed round.
//
// Rows are addressed by club through an index map, never by the order of the
// latest table.
type RankHistory struct {
	clubs     []string
	index     map[string]int
	positions [][]int // [club row][round]
}

// NewRankHistory starts a history for the given clubs, in input order.
func NewRankHistory(clubs []string) (*RankHistory, error) {
	if len(clubs) == 0 {
		return nil, fmt.Errorf("new rank history: no clubs: %w", ErrNotPermutation)
	}
	h := &RankHistory{
		clubs:     make([]string, len(clubs)),
		index:     make(map[string]int, len(clubs)),
		positions: make([][]int, len(clubs)),
	}
	for i, club := range clubs {
		if _, dup := h.index[club]; dup {
			return nil, fmt.Errorf("new rank history: duplicate club %q", club)
		}
		h.clubs[i] = club
		h.index[club] = i
		h.positions[i] = []int{i + 1}
	}
	return h, nil
}

// TeamClubs names teams 0..n-1 by their ids.
func TeamClubs(n int) []string {
	clubs := make([]string, n)
	for i := range clubs {
		clubs[i] = strconv.Itoa(i)
	}
	return clubs
}

// AppendRound records the next round. Every club must be present and the
// positions must form a permutation of 1..N.
func (h *RankHistory) AppendRound(positions map[string]int) error {
	n := len(h.clubs)
	if len(positions) != n {
		return fmt.Errorf("round %d has %d clubs, want %d: %w", h.Rounds()+1, len(positions), n, ErrNotPermutation)
	}

	seen := make([]bool, n+1)
	column := make([]int, n)
	for club, pos := range positions {
		row, ok := h.index[club]
		if !ok {
			return fmt.Errorf("round %d club %q: %w", h.Rounds()+1, club, ErrTeamNotFound)
		}
		if pos < 1 || pos > n || seen[pos] {
			return fmt.Errorf("round %d club %q position %d: %w", h.Rounds()+1, club, pos, ErrNotPermutation)
		}
		seen[pos] = true
		column[row] = pos
	}

	for row, pos := range column {
		h.positions[row] = append(h.positions[row], pos)
	}
	return nil
}

// Teams returns the number of clubs.
func (h *RankHistory) Teams() int {
	return len(h.clubs)
}

// Rounds returns the number of recorded rounds, not counting the anchor.
func (h *RankHistory) Rounds() int {
	return len(h.positions[0]) - 1
}

// Clubs returns the club identities in input order.
func (h *RankHistory) Clubs() []string {
	out := make([]string, len(h.clubs))
	copy(out, h.clubs)
	return out
}

// Column returns every club's position at the round, in input order. Round 0
// is the anchor.
func (h *RankHistory) Column(round int) ([]int, error) {
	if round < 0 || round > h.Rounds() {
		return nil, fmt.Errorf("round %d of %d: %w", round, h.Rounds(), ErrRoundOutOfRange)
	}
	col := make([]int, len(h.clubs))
	for row := range h.positions {
		col[row] = h.positions[row][round]
	}
	return col, nil
}

// Final returns the positions at the last recorded round.
func (h *RankHistory) Final() []int {
	col, _ := h.Column(h.Rounds())
	return col
}

// Positions returns the club's positions for rounds 1..R.
func (h *RankHistory) Positions(club string) ([]int, error) {
	row, ok := h.index[club]
	if !ok {
		return nil, fmt.Errorf("club %q: %w", club, ErrTeamNotFound)
	}
	out := make([]int, h.Rounds())
	copy(out, h.positions[row][1:])
	return out, nil
}

// Position returns the club's position at the round.
func (h *RankHistory) Position(club string, round int) (int, error) {
	row, ok := h.index[club]
	if !ok {
		return 0, fmt.Errorf("club %q: %w", club, ErrTeamNotFound)
	}
	if round < 0 || round > h.Rounds() {
		return 0, fmt.Errorf("round %d of %d: %w", round, h.Rounds(), ErrRoundOutOfRange)
	}
	return h.positions[row][round], nil
}
