package league

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// MatchSimulator draws scorelines from a Poisson distribution shared by both
// sides. There is no home advantage and no team strength.
//
// Draws come from the source it was built with, home goals first, so a season
// is reproducible given the goal rate, the seed and the fixture order.
type MatchSimulator struct {
	goals distuv.Poisson
}

// NewMatchSimulator returns a simulator with the given mean goals per team per
// match. A zero rate always yields 0-0.
func NewMatchSimulator(goalRate float64, src rand.Source) (*MatchSimulator, error) {
	if math.IsNaN(goalRate) || math.IsInf(goalRate, 0) || goalRate < 0 {
		return nil, fmt.Errorf("goal rate %v: %w", goalRate, ErrInvalidGoalRate)
	}
	return &MatchSimulator{goals: distuv.Poisson{Lambda: goalRate, Src: src}}, nil
}

// GoalRate returns the Poisson mean used for both sides.
func (s *MatchSimulator) GoalRate() float64 {
	return s.goals.Lambda
}

// Simulate draws a result for the fixture.
func (s *MatchSimulator) Simulate(_ Fixture) MatchResult {
	if s.goals.Lambda == 0 {
		return MatchResult{}
	}
	home := int(s.goals.Rand())
	away := int(s.goals.Rand())
	return MatchResult{HomeGoals: home, AwayGoals: away}
}
