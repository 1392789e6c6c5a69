package league

import (
	"fmt"
	"sort"
)

// Standings is the league table for one season. Rows are addressed by team id;
// the ranking order is recomputed by Rank.
//
// ApplyResult trusts its input. Nothing stops a fixture from being applied
// twice or a fixture that was never scheduled from being applied; callers feed
// it the rounds from GenerateFullSeason exactly once.
type Standings struct {
	rows []*StandingsRow
}

// NewStandings returns zeroed rows for teams 0..teams-1. Before the first
// ranking pass each team's position is its input order.
func NewStandings(teams int) *Standings {
	rows := make([]*StandingsRow, teams)
	for i := range rows {
		rows[i] = &StandingsRow{Team: i, Position: i + 1}
	}
	return &Standings{rows: rows}
}

// Teams returns the number of teams in the table.
func (s *Standings) Teams() int {
	return len(s.rows)
}

// ApplyResult adds one match to both teams' rows.
func (s *Standings) ApplyResult(f Fixture, r MatchResult) error {
	home, err := s.row(f.Home)
	if err != nil {
		return fmt.Errorf("applying result to home side: %w", err)
	}
	away, err := s.row(f.Away)
	if err != nil {
		return fmt.Errorf("applying result to away side: %w", err)
	}

	home.Played++
	away.Played++

	home.GoalsFor += r.HomeGoals
	home.GoalsAgainst += r.AwayGoals
	away.GoalsFor += r.AwayGoals
	away.GoalsAgainst += r.HomeGoals

	home.GoalDifference = home.GoalsFor - home.GoalsAgainst
	away.GoalDifference = away.GoalsFor - away.GoalsAgainst

	switch {
	case r.HomeGoals > r.AwayGoals:
		home.Wins++
		away.Losses++
		home.Points += 3
	case r.HomeGoals < r.AwayGoals:
		away.Wins++
		home.Losses++
		away.Points += 3
	default:
		home.Draws++
		away.Draws++
		home.Points++
		away.Points++
	}
	return nil
}

// Rank orders the table by points, goal difference and goals scored, all
// descending, falling back to team id ascending. It overwrites every row's
// Position and returns a copy of the rows in table order.
func (s *Standings) Rank() []StandingsRow {
	ordered := make([]*StandingsRow, len(s.rows))
	copy(ordered, s.rows)

	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.GoalDifference != b.GoalDifference {
			return a.GoalDifference > b.GoalDifference
		}
		if a.GoalsFor != b.GoalsFor {
			return a.GoalsFor > b.GoalsFor
		}
		return a.Team < b.Team
	})

	table := make([]StandingsRow, len(ordered))
	for i, row := range ordered {
		row.Position = i + 1
		table[i] = *row
	}
	return table
}

// Row returns a copy of the team's row.
func (s *Standings) Row(team int) (StandingsRow, error) {
	row, err := s.row(team)
	if err != nil {
		return StandingsRow{}, err
	}
	return *row, nil
}

func (s *Standings) row(team int) (*StandingsRow, error) {
	if team < 0 || team >= len(s.rows) {
		return nil, fmt.Errorf("team %d in a table of %d: %w", team, len(s.rows), ErrTeamNotFound)
	}
	return s.rows[team], nil
}
