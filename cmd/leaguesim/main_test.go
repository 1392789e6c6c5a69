package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FlagsOverride(t *testing.T) {
	cfg, err := loadConfig(options{
		seasons: 5,
		seed:    9,
		teams:   10,
		rate:    0,
		workers: 2,
		from:    3,
		verbose: true,
		format:  "json",
	})
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Simulation.Seasons)
	assert.Equal(t, uint64(9), cfg.Simulation.Seed)
	assert.Equal(t, 10, cfg.Simulation.Teams)
	assert.Equal(t, 0.0, cfg.Simulation.GoalRate)
	assert.Equal(t, 2, cfg.Simulation.Workers)
	assert.Equal(t, 3, cfg.Analysis.InitRound)
	assert.Equal(t, 18, cfg.Analysis.FinalRound)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_UnsetFlagsKeepDefaults(t *testing.T) {
	cfg, err := loadConfig(options{seed: -1, rate: -1, workers: -1})
	require.NoError(t, err)

	assert.Equal(t, uint64(42), cfg.Simulation.Seed)
	assert.Equal(t, 20, cfg.Simulation.Teams)
	assert.InDelta(t, 1.35, cfg.Simulation.GoalRate, 1e-12)
	assert.Equal(t, 0, cfg.Simulation.Workers)
	assert.Equal(t, 38, cfg.Analysis.FinalRound)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := loadConfig(options{configPath: "does-not-exist.yaml", seed: -1, rate: -1, workers: -1})
	assert.Error(t, err)
}

func TestLoadConfig_ZeroSeed(t *testing.T) {
	cfg, err := loadConfig(options{seed: 0, rate: -1, workers: -1})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), cfg.Simulation.Seed)
}

func TestRun_SmallLeagues(t *testing.T) {
	for _, teams := range []int{4, 6, 8} {
		err := run(context.Background(), options{
			teams:      teams,
			seasons:    3,
			seed:       -1,
			rate:       -1,
			workers:    -1,
			showSeason: -1,
		})
		assert.NoError(t, err, "teams=%d", teams)
	}
}
