package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/utakatalp/rank-stability/config"
	"github.com/utakatalp/rank-stability/internal/analysis"
	"github.com/utakatalp/rank-stability/internal/api"
	"github.com/utakatalp/rank-stability/internal/league"
	"github.com/utakatalp/rank-stability/internal/rankio"
	"github.com/utakatalp/rank-stability/internal/report"
	"github.com/utakatalp/rank-stability/internal/store"
)

type options struct {
	configPath string
	seasons    int
	seed       int64
	teams      int
	rate       float64
	workers    int
	from       int
	to         int
	fitFrom    int
	save       bool
	label      string
	ingest     string
	serve      bool
	verbose    bool
	format     string
	showSeason int
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to config YAML (built-in defaults when empty)")
	flag.IntVar(&opts.seasons, "seasons", 0, "number of simulated seasons")
	flag.Int64Var(&opts.seed, "seed", -1, "base seed; season i uses seed+i")
	flag.IntVar(&opts.teams, "teams", 0, "number of teams (even)")
	flag.Float64Var(&opts.rate, "rate", -1, "Poisson goal rate per team per match")
	flag.IntVar(&opts.workers, "workers", -1, "simulation workers (0 = one per CPU)")
	flag.IntVar(&opts.from, "from", 0, "initial round of the transition matrix")
	flag.IntVar(&opts.to, "to", 0, "final round of the transition matrix")
	flag.IntVar(&opts.fitFrom, "fit-from", 0, "first round of the power-law fit")
	flag.BoolVar(&opts.save, "save", false, "store the corpus in the database")
	flag.StringVar(&opts.label, "label", "", "label of the stored corpus")
	flag.StringVar(&opts.ingest, "ingest", "", "read observed rank tables (*.csv) from this directory instead of simulating")
	flag.BoolVar(&opts.serve, "serve", false, "serve stored corpora over HTTP after the run")
	flag.BoolVar(&opts.verbose, "verbose", false, "debug logging")
	flag.StringVar(&opts.format, "format", "", "log format: text | json")
	flag.IntVar(&opts.showSeason, "show-season", -1, "print the rank history of this season")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "leaguesim: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}

	alt, err := analysis.ParseAlternative(cfg.Analysis.Alternative)
	if err != nil {
		return err
	}

	meta := store.CorpusMeta{Label: opts.label}
	var corpus []*league.RankHistory
	if opts.ingest != "" {
		var names []string
		corpus, names, err = rankio.ReadCorpusDir(opts.ingest)
		if err != nil {
			return err
		}
		meta.Source = store.SourceObserved
		meta.SeasonNames = names
		logger.WithFields(logrus.Fields{
			"dir":     opts.ingest,
			"seasons": len(corpus),
		}).Info("observed corpus loaded")
	} else {
		corpus, err = league.SimulateCorpus(ctx, league.CorpusConfig{
			Season: league.SeasonConfig{
				Teams:    cfg.Simulation.Teams,
				GoalRate: cfg.Simulation.GoalRate,
			},
			Seasons:  cfg.Simulation.Seasons,
			BaseSeed: cfg.Simulation.Seed,
			Workers:  cfg.Simulation.Workers,
		}, logger)
		if err != nil {
			return err
		}
		meta.Source = store.SourceSimulated
		meta.GoalRate = cfg.Simulation.GoalRate
		meta.BaseSeed = cfg.Simulation.Seed
		logger.WithFields(logrus.Fields{
			"seasons": len(corpus),
			"teams":   cfg.Simulation.Teams,
		}).Info("corpus simulated")
	}
	if len(corpus) == 0 {
		return analysis.ErrEmptyCorpus
	}

	if err := printAnalysis(cfg, opts, alt, corpus); err != nil {
		return err
	}

	if !opts.save && !opts.serve {
		return nil
	}

	db, err := store.NewStore(cfg.Storage.Driver, cfg.Storage.DSN, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	if opts.save {
		id, err := db.SaveCorpus(ctx, meta, corpus)
		if err != nil {
			return err
		}
		fmt.Printf("\nSaved corpus %s\n", id)
	}

	if opts.serve {
		srv := api.NewServer(db, api.Defaults{
			InitRound:   cfg.Analysis.InitRound,
			FitFrom:     cfg.Analysis.FitFrom,
			Alternative: alt,
		}, logger)
		return srv.ListenAndServe(ctx, cfg.Server.Addr)
	}
	return nil
}

func printAnalysis(cfg *config.Config, opts options, alt analysis.Alternative, corpus []*league.RankHistory) error {
	console := report.NewConsole()
	rounds := corpus[0].Rounds()

	if opts.showSeason >= 0 && opts.showSeason < len(corpus) {
		title := fmt.Sprintf("Season %d rank history", opts.showSeason)
		if err := console.PrintHistory(title, corpus[opts.showSeason]); err != nil {
			return err
		}
	}

	curves, err := analysis.CorpusCurves(corpus, alt)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("Mean agreement with the final table over %d seasons (%s)", len(corpus), alt)
	if err := console.PrintCurves(title, curves); err != nil {
		return err
	}

	// Short leagues have fewer rounds than the configured window.
	finalRound := min(cfg.Analysis.FinalRound, rounds)
	initRound := min(cfg.Analysis.InitRound, finalRound)
	transitions, err := analysis.TransitionMatrix(corpus, initRound, finalRound)
	if err != nil {
		return err
	}
	if err := console.PrintTransitions(transitions); err != nil {
		return err
	}

	fit, err := analysis.FitWindow(curves.Distance, min(cfg.Analysis.FitFrom, rounds-1), rounds)
	if err != nil {
		return err
	}
	return console.PrintFit(fit)
}

// loadConfig applies flags on top of the file or built-in configuration.
func loadConfig(opts options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return nil, err
		}
	}

	if opts.seasons > 0 {
		cfg.Simulation.Seasons = opts.seasons
	}
	if opts.seed >= 0 {
		cfg.Simulation.Seed = uint64(opts.seed)
	}
	if opts.teams > 0 {
		cfg.Simulation.Teams = opts.teams
		if opts.to == 0 {
			cfg.Analysis.FinalRound = 2 * (opts.teams - 1)
		}
	}
	if opts.rate >= 0 {
		cfg.Simulation.GoalRate = opts.rate
	}
	if opts.workers >= 0 {
		cfg.Simulation.Workers = opts.workers
	}
	if opts.from > 0 {
		cfg.Analysis.InitRound = opts.from
	}
	if opts.to > 0 {
		cfg.Analysis.FinalRound = opts.to
	}
	if opts.fitFrom > 0 {
		cfg.Analysis.FitFrom = opts.fitFrom
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	}
	if opts.format != "" {
		cfg.Log.Format = opts.format
	}
	return cfg, nil
}
