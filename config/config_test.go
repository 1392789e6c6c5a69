package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utakatalp/rank-stability/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Simulation.Teams)
	assert.InDelta(t, 1.35, cfg.Simulation.GoalRate, 1e-12)
	assert.Equal(t, 1000, cfg.Simulation.Seasons)
	assert.Equal(t, uint64(42), cfg.Simulation.Seed)
	assert.Equal(t, 10, cfg.Analysis.InitRound)
	assert.Equal(t, 38, cfg.Analysis.FinalRound)
	assert.Equal(t, "two-sided", cfg.Analysis.Alternative)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "leaguesim.db", cfg.Storage.DSN)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_YAMLValues(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, `
simulation:
  teams: 10
  goal_rate: 1.1
  seasons: 50
  seed: 7
analysis:
  init_round: 3
storage:
  driver: postgres
  dsn: postgres://localhost/leaguesim
`))
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Simulation.Teams)
	assert.Equal(t, uint64(7), cfg.Simulation.Seed)
	assert.Equal(t, 3, cfg.Analysis.InitRound)
	assert.Equal(t, 18, cfg.Analysis.FinalRound, "final round follows the team count")
	assert.Equal(t, "postgres", cfg.Storage.Driver)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://db/leaguesim")
	t.Setenv("SERVER_ADDR", ":9090")

	cfg, err := config.Load(writeConfig(t, "log:\n  level: warn\n"))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://db/leaguesim", cfg.Storage.DSN)
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = config.Load(writeConfig(t, "simulation: [\n"))
	assert.Error(t, err)
}

func TestConfig_NewLogger(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "debug"
	cfg.Log.Format = "json"

	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	cfg.Log.Level = "loud"
	_, err = cfg.NewLogger()
	assert.Error(t, err)

	cfg.Log.Level = "info"
	cfg.Log.Format = "xml"
	_, err = cfg.NewLogger()
	assert.Error(t, err)
}
