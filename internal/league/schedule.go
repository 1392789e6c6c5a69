package league

import "fmt"

// GenerateSchedule returns the first legs of a round-robin for the given number
// of teams: N-1 rounds covering every unordered pair once.
//
// Team 0 stays fixed while the others rotate. In each round the anchor meets the
// team in the middle of the rotating slice and the rest pair up from both ends
// inward.
func GenerateSchedule(teams int) ([]Round, error) {
	if teams < 2 || teams%2 != 0 {
		return nil, fmt.Errorf("generating schedule for %d teams: %w", teams, ErrOddTeamCount)
	}

	const anchor = 0
	rotating := make([]int, teams-1)
	for i := range rotating {
		rotating[i] = i + 1
	}
	mid := len(rotating) / 2

	rounds := make([]Round, teams-1)
	for i := range rounds {
		round := make(Round, 0, teams/2)
		for j := 0; j < mid; j++ {
			round = append(round, Fixture{Home: rotating[j], Away: rotating[len(rotating)-1-j]})
		}
		round = append(round, Fixture{Home: anchor, Away: rotating[mid]})
		rounds[i] = round

		// Move the last team to the front.
		last := rotating[len(rotating)-1]
		copy(rotating[1:], rotating[:len(rotating)-1])
		rotating[0] = last
	}

	return rounds, nil
}

// GenerateFullSeason returns a double round-robin: the first legs followed by
// the same rounds with home and away swapped, 2*(N-1) rounds in total.
func GenerateFullSeason(teams int) ([]Round, error) {
	firstHalf, err := GenerateSchedule(teams)
	if err != nil {
		return nil, err
	}

	secondHalf := make([]Round, len(firstHalf))
	for i, rnd := range firstHalf {
		swapped := make(Round, len(rnd))
		for j, f := range rnd {
			swapped[j] = f.Reversed()
		}
		secondHalf[i] = swapped
	}

	return append(firstHalf, secondHalf...), nil
}
