package league

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"runtime"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
)

// SeasonConfig describes one simulated league season.
type SeasonConfig struct {
	Teams    int
	GoalRate float64
}

// CorpusConfig describes a batch of independent seasons. Season i is simulated
// with seed BaseSeed+i.
type CorpusConfig struct {
	Season   SeasonConfig
	Seasons  int
	BaseSeed uint64
	// Workers <= 0 means runtime.NumCPU().
	Workers int
}

// NewSource returns the random source used for a season seed.
func NewSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed)
}

// simulateSeason is swapped in tests.
var simulateSeason = SimulateSeason

// SimulateSeason plays a full double round-robin and returns its rank history.
// Rounds and fixtures are processed strictly in schedule order.
func SimulateSeason(cfg SeasonConfig, seed uint64) (*RankHistory, error) {
	rounds, err := GenerateFullSeason(cfg.Teams)
	if err != nil {
		return nil, fmt.Errorf("simulating season: %w", err)
	}
	sim, err := NewMatchSimulator(cfg.GoalRate, NewSource(seed))
	if err != nil {
		return nil, fmt.Errorf("simulating season: %w", err)
	}

	standings := NewStandings(cfg.Teams)
	history, err := NewRankHistory(TeamClubs(cfg.Teams))
	if err != nil {
		return nil, fmt.Errorf("simulating season: %w", err)
	}

	for i, round := range rounds {
		for _, f := range round {
			if err := standings.ApplyResult(f, sim.Simulate(f)); err != nil {
				return nil, fmt.Errorf("round %d: %w", i+1, err)
			}
		}
		table := standings.Rank()
		positions := make(map[string]int, len(table))
		for _, row := range table {
			positions[strconv.Itoa(row.Team)] = row.Position
		}
		if err := history.AppendRound(positions); err != nil {
			return nil, fmt.Errorf("round %d: %w", i+1, err)
		}
	}
	return history, nil
}

// SimulateCorpus runs independent seasons on a worker pool. The result is
// ordered by season index whatever the number of workers, so a corpus is
// reproducible from its base seed. The first failing season stops the pool.
func SimulateCorpus(ctx context.Context, cfg CorpusConfig, logger *logrus.Logger) ([]*RankHistory, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	if cfg.Seasons <= 0 {
		return nil, nil
	}
	// Fail fast on a bad config instead of once per season.
	if _, err := GenerateSchedule(cfg.Season.Teams); err != nil {
		return nil, err
	}
	if _, err := NewMatchSimulator(cfg.Season.GoalRate, nil); err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > cfg.Seasons {
		workers = cfg.Seasons
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		season  int
		history *RankHistory
		err     error
	}

	workCh := make(chan int, cfg.Seasons)
	resultCh := make(chan result, cfg.Seasons)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for season := range workCh {
				if ctx.Err() != nil {
					resultCh <- result{season: season, err: ctx.Err()}
					continue
				}
				seed := cfg.BaseSeed + uint64(season)
				h, err := simulateSeason(cfg.Season, seed)
				if err != nil {
					err = fmt.Errorf("season %d (seed %d): %w", season, seed, err)
				}
				logger.WithFields(logrus.Fields{
					"season": season,
					"seed":   seed,
				}).Trace("season simulated")
				resultCh <- result{season: season, history: h, err: err}
			}
		}()
	}

	for season := 0; season < cfg.Seasons; season++ {
		workCh <- season
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	corpus := make([]*RankHistory, cfg.Seasons)
	var firstErr error
	for res := range resultCh {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
				cancel()
			}
			continue
		}
		corpus[res.season] = res.history
	}
	if firstErr != nil {
		return nil, firstErr
	}

	logger.WithFields(logrus.Fields{
		"seasons":   cfg.Seasons,
		"teams":     cfg.Season.Teams,
		"goal_rate": cfg.Season.GoalRate,
		"base_seed": cfg.BaseSeed,
		"workers":   workers,
	}).Debug("corpus simulated")

	return corpus, nil
}
