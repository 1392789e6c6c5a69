package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration of the simulator and analysis tools.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Storage    StorageConfig    `yaml:"storage"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
}

// SimulationConfig controls the simulated corpus.
type SimulationConfig struct {
	Teams    int     `yaml:"teams"`
	GoalRate float64 `yaml:"goal_rate"`
	Seasons  int     `yaml:"seasons"`
	Seed     uint64  `yaml:"seed"`
	Workers  int     `yaml:"workers"` // 0 = one per CPU
}

// AnalysisConfig selects the rounds compared by the transition matrix and the
// power-law fit window.
type AnalysisConfig struct {
	InitRound   int    `yaml:"init_round"`
	FinalRound  int    `yaml:"final_round"`
	FitFrom     int    `yaml:"fit_from"`
	Alternative string `yaml:"alternative"` // two-sided | less | greater
}

// StorageConfig selects the database.
type StorageConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	DSN    string `yaml:"dsn"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // trace | debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML file and the .env file if present. Environment values
// override the YAML ones.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// Default returns the built-in configuration with environment overrides.
func Default() *Config {
	_ = godotenv.Load()

	var cfg Config
	applyEnvOverrides(&cfg)
	setDefaults(&cfg)
	return &cfg
}

// NewLogger builds a logger from the log section.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("config: log level: %w", err)
	}
	logger.SetLevel(level)

	switch strings.ToLower(c.Log.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return logger, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Simulation.Teams <= 0 {
		cfg.Simulation.Teams = 20
	}
	if cfg.Simulation.GoalRate <= 0 {
		cfg.Simulation.GoalRate = 1.35
	}
	if cfg.Simulation.Seasons <= 0 {
		cfg.Simulation.Seasons = 1000
	}
	if cfg.Simulation.Seed == 0 {
		cfg.Simulation.Seed = 42
	}
	if cfg.Analysis.InitRound <= 0 {
		cfg.Analysis.InitRound = 10
	}
	if cfg.Analysis.FinalRound <= 0 {
		cfg.Analysis.FinalRound = 2 * (cfg.Simulation.Teams - 1)
	}
	if cfg.Analysis.FitFrom <= 0 {
		cfg.Analysis.FitFrom = 1
	}
	if cfg.Analysis.Alternative == "" {
		cfg.Analysis.Alternative = "two-sided"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "leaguesim.db"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
