package league

import "errors"

var (
	ErrOddTeamCount    = errors.New("team count must be even and at least 2")
	ErrInvalidGoalRate = errors.New("goal rate must be a finite non-negative number")
	ErrTeamNotFound    = errors.New("team not found")
	ErrRoundOutOfRange = errors.New("round out of range")
	ErrNotPermutation  = errors.New("positions are not a permutation of 1..N")
)

// Fixture is a match between two teams identified by id in [0, N).
type Fixture struct {
	Home, Away int
}

// Reversed returns the return leg of the fixture.
func (f Fixture) Reversed() Fixture {
	return Fixture{Home: f.Away, Away: f.Home}
}

// Round is one matchweek. Every team appears in exactly one fixture.
type Round []Fixture

// MatchResult holds the goals scored by each side.
type MatchResult struct {
	HomeGoals int `json:"home_goals"`
	AwayGoals int `json:"away_goals"`
}

// StandingsRow holds the cumulative stats for one team.
type StandingsRow struct {
	Team           int `json:"team"`
	Points         int `json:"points"`
	Played         int `json:"played"`
	Wins           int `json:"wins"`
	Draws          int `json:"draws"`
	Losses         int `json:"losses"`
	GoalsFor       int `json:"goals_for"`
	GoalsAgainst   int `json:"goals_against"`
	GoalDifference int `json:"goal_difference"`
	Position       int `json:"position"`
}
