package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/utakatalp/rank-stability/internal/league"
)

var (
	ErrCorpusNotFound  = errors.New("corpus not found")
	ErrSeasonNotFound  = errors.New("season not found")
	ErrUnknownDriver   = errors.New("unknown storage driver")
	ErrSeasonNameCount = errors.New("season names do not match seasons")
)

// Corpus sources.
const (
	SourceSimulated = "simulated"
	SourceObserved  = "observed"
)

// CorpusMeta describes a stored corpus. GoalRate and BaseSeed are only
// meaningful for simulated corpora.
type CorpusMeta struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Source    string    `json:"source"`
	Teams     int       `json:"teams"`
	Rounds    int       `json:"rounds"`
	Seasons   int       `json:"seasons"`
	GoalRate  float64   `json:"goal_rate"`
	BaseSeed  uint64    `json:"base_seed"`
	CreatedAt time.Time `json:"created_at"`
	// SeasonNames labels each season, e.g. the year of an observed table.
	SeasonNames []string `json:"season_names,omitempty"`
}

// Store persists rank history corpora in Postgres or SQLite. Both drivers
// accept the same $N placeholder SQL.
type Store struct {
	DB     *sql.DB
	driver string
	logger *logrus.Logger
}

// NewStore opens a connection with the given driver ("postgres" or "sqlite")
// and verifies it.
func NewStore(driver, dsn string, logger *logrus.Logger) (*Store, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	switch driver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("%q: %w", driver, ErrUnknownDriver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if driver == "sqlite" {
		// single writer; also keeps ":memory:" on one connection
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.WithField("driver", driver).Debug("database connected")
	return &Store{DB: db, driver: driver, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Migrate creates the necessary tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS corpora (
			id          TEXT PRIMARY KEY,
			label       TEXT NOT NULL DEFAULT '',
			source      TEXT NOT NULL,
			teams       INTEGER NOT NULL,
			rounds      INTEGER NOT NULL,
			seasons     INTEGER NOT NULL,
			goal_rate   DOUBLE PRECISION NOT NULL DEFAULT 0,
			base_seed   BIGINT NOT NULL DEFAULT 0,
			created_at  BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS seasons (
			corpus_id TEXT NOT NULL REFERENCES corpora(id),
			season    INTEGER NOT NULL,
			name      TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (corpus_id, season)
		)`,
		`CREATE TABLE IF NOT EXISTS season_clubs (
			corpus_id TEXT NOT NULL,
			season    INTEGER NOT NULL,
			club_idx  INTEGER NOT NULL,
			club      TEXT NOT NULL,
			PRIMARY KEY (corpus_id, season, club_idx)
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			corpus_id TEXT NOT NULL,
			season    INTEGER NOT NULL,
			round     INTEGER NOT NULL,
			club_idx  INTEGER NOT NULL,
			pos       INTEGER NOT NULL,
			PRIMARY KEY (corpus_id, season, round, club_idx)
		)`,
	}
	for _, q := range queries {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
	}
	return nil
}

// SaveCorpus stores the corpus in a single transaction and returns its new id.
// Teams, Rounds and Seasons are taken from the corpus itself.
func (s *Store) SaveCorpus(ctx context.Context, meta CorpusMeta, corpus []*league.RankHistory) (string, error) {
	if len(meta.SeasonNames) != 0 && len(meta.SeasonNames) != len(corpus) {
		return "", fmt.Errorf("%d names for %d seasons: %w", len(meta.SeasonNames), len(corpus), ErrSeasonNameCount)
	}

	meta.ID = uuid.NewString()
	meta.Seasons = len(corpus)
	if len(corpus) > 0 {
		meta.Teams = corpus[0].Teams()
		meta.Rounds = corpus[0].Rounds()
	}
	if meta.Source == "" {
		meta.Source = SourceSimulated
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin SaveCorpus tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO corpora (id, label, source, teams, rounds, seasons, goal_rate, base_seed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		meta.ID, meta.Label, meta.Source, meta.Teams, meta.Rounds, meta.Seasons,
		meta.GoalRate, int64(meta.BaseSeed), meta.CreatedAt.Unix(),
	); err != nil {
		return "", fmt.Errorf("inserting corpus: %w", err)
	}

	seasonStmt, err := tx.PrepareContext(ctx, `INSERT INTO seasons (corpus_id, season, name) VALUES ($1, $2, $3)`)
	if err != nil {
		return "", fmt.Errorf("preparing seasons: %w", err)
	}
	defer seasonStmt.Close()
	clubStmt, err := tx.PrepareContext(ctx, `INSERT INTO season_clubs (corpus_id, season, club_idx, club) VALUES ($1, $2, $3, $4)`)
	if err != nil {
		return "", fmt.Errorf("preparing clubs: %w", err)
	}
	defer clubStmt.Close()
	posStmt, err := tx.PrepareContext(ctx, `INSERT INTO positions (corpus_id, season, round, club_idx, pos) VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return "", fmt.Errorf("preparing positions: %w", err)
	}
	defer posStmt.Close()

	for i, h := range corpus {
		name := ""
		if len(meta.SeasonNames) != 0 {
			name = meta.SeasonNames[i]
		}
		if _, err := seasonStmt.ExecContext(ctx, meta.ID, i, name); err != nil {
			return "", fmt.Errorf("inserting season %d: %w", i, err)
		}
		for idx, club := range h.Clubs() {
			if _, err := clubStmt.ExecContext(ctx, meta.ID, i, idx, club); err != nil {
				return "", fmt.Errorf("inserting season %d club %q: %w", i, club, err)
			}
		}
		for round := 1; round <= h.Rounds(); round++ {
			col, err := h.Column(round)
			if err != nil {
				return "", err
			}
			for idx, pos := range col {
				if _, err := posStmt.ExecContext(ctx, meta.ID, i, round, idx, pos); err != nil {
					return "", fmt.Errorf("inserting season %d round %d: %w", i, round, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit SaveCorpus tx: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"corpus_id": meta.ID,
		"seasons":   meta.Seasons,
		"source":    meta.Source,
	}).Info("corpus saved")
	return meta.ID, nil
}

// GetCorpus returns the metadata of one corpus.
func (s *Store) GetCorpus(ctx context.Context, id string) (CorpusMeta, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, label, source, teams, rounds, seasons, goal_rate, base_seed, created_at
		FROM corpora
		WHERE id = $1`, id)
	meta, err := scanMeta(row)
	if errors.Is(err, sql.ErrNoRows) {
		return CorpusMeta{}, fmt.Errorf("corpus %s: %w", id, ErrCorpusNotFound)
	}
	if err != nil {
		return CorpusMeta{}, fmt.Errorf("querying corpus %s: %w", id, err)
	}

	names, err := s.seasonNames(ctx, id)
	if err != nil {
		return CorpusMeta{}, err
	}
	meta.SeasonNames = names
	return meta, nil
}

// ListCorpora returns every corpus, newest first.
func (s *Store) ListCorpora(ctx context.Context) ([]CorpusMeta, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, label, source, teams, rounds, seasons, goal_rate, base_seed, created_at
		FROM corpora
		ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("querying corpora: %w", err)
	}
	defer rows.Close()

	var out []CorpusMeta
	for rows.Next() {
		meta, err := scanMeta(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning corpus row: %w", err)
		}
		out = append(out, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating corpora rows: %w", err)
	}
	return out, nil
}

// LoadCorpus returns the corpus metadata and every season in season order.
func (s *Store) LoadCorpus(ctx context.Context, id string) (CorpusMeta, []*league.RankHistory, error) {
	meta, err := s.GetCorpus(ctx, id)
	if err != nil {
		return CorpusMeta{}, nil, err
	}

	corpus, err := s.loadSeasons(ctx, id, -1, meta.Seasons)
	if err != nil {
		return CorpusMeta{}, nil, err
	}
	return meta, corpus, nil
}

// LoadSeason returns a single season of a corpus.
func (s *Store) LoadSeason(ctx context.Context, id string, season int) (*league.RankHistory, error) {
	meta, err := s.GetCorpus(ctx, id)
	if err != nil {
		return nil, err
	}
	if season < 0 || season >= meta.Seasons {
		return nil, fmt.Errorf("corpus %s season %d: %w", id, season, ErrSeasonNotFound)
	}

	corpus, err := s.loadSeasons(ctx, id, season, 1)
	if err != nil {
		return nil, err
	}
	return corpus[0], nil
}

// loadSeasons rebuilds histories from their clubs and positions. A negative
// season loads all of them.
func (s *Store) loadSeasons(ctx context.Context, id string, season, count int) ([]*league.RankHistory, error) {
	filter := ""
	args := []any{id}
	if season >= 0 {
		filter = " AND season = $2"
		args = append(args, season)
	}
	offset := 0
	if season > 0 {
		offset = season
	}

	clubs := make([][]string, count)
	rows, err := s.DB.QueryContext(ctx,
		`SELECT season, club_idx, club FROM season_clubs WHERE corpus_id = $1`+filter+` ORDER BY season, club_idx`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("querying clubs: %w", err)
	}
	for rows.Next() {
		var sn, idx int
		var club string
		if err := rows.Scan(&sn, &idx, &club); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning club row: %w", err)
		}
		clubs[sn-offset] = append(clubs[sn-offset], club)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating club rows: %w", err)
	}

	corpus := make([]*league.RankHistory, count)
	for i := range corpus {
		h, err := league.NewRankHistory(clubs[i])
		if err != nil {
			return nil, fmt.Errorf("season %d: %w", i+offset, err)
		}
		corpus[i] = h
	}

	rows, err = s.DB.QueryContext(ctx,
		`SELECT season, round, club_idx, pos FROM positions WHERE corpus_id = $1`+filter+` ORDER BY season, round, club_idx`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("querying positions: %w", err)
	}
	defer rows.Close()

	curSeason, curRound := -1, -1
	var table map[string]int
	flush := func() error {
		if table == nil {
			return nil
		}
		if err := corpus[curSeason].AppendRound(table); err != nil {
			return fmt.Errorf("season %d round %d: %w", curSeason+offset, curRound, err)
		}
		return nil
	}
	for rows.Next() {
		var sn, round, idx, pos int
		if err := rows.Scan(&sn, &round, &idx, &pos); err != nil {
			return nil, fmt.Errorf("scanning position row: %w", err)
		}
		sn -= offset
		if sn != curSeason || round != curRound {
			if err := flush(); err != nil {
				return nil, err
			}
			curSeason, curRound = sn, round
			table = make(map[string]int, len(clubs[sn]))
		}
		table[clubs[sn][idx]] = pos
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating position rows: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return corpus, nil
}

func (s *Store) seasonNames(ctx context.Context, id string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT name FROM seasons WHERE corpus_id = $1 ORDER BY season`, id)
	if err != nil {
		return nil, fmt.Errorf("querying season names: %w", err)
	}
	defer rows.Close()

	var names []string
	named := false
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning season name: %w", err)
		}
		named = named || name != ""
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !named {
		return nil, nil
	}
	return names, nil
}

// DeleteCorpus removes a corpus and all of its seasons.
func (s *Store) DeleteCorpus(ctx context.Context, id string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin DeleteCorpus tx: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM positions WHERE corpus_id = $1`,
		`DELETE FROM season_clubs WHERE corpus_id = $1`,
		`DELETE FROM seasons WHERE corpus_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("deleting corpus %s: %w", id, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM corpora WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting corpus %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting corpus %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("corpus %s: %w", id, ErrCorpusNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit DeleteCorpus tx: %w", err)
	}
	s.logger.WithField("corpus_id", id).Info("corpus deleted")
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMeta(row scanner) (CorpusMeta, error) {
	var (
		meta      CorpusMeta
		baseSeed  int64
		createdAt int64
	)
	if err := row.Scan(
		&meta.ID,
		&meta.Label,
		&meta.Source,
		&meta.Teams,
		&meta.Rounds,
		&meta.Seasons,
		&meta.GoalRate,
		&baseSeed,
		&createdAt,
	); err != nil {
		return CorpusMeta{}, err
	}
	meta.BaseSeed = uint64(baseSeed)
	meta.CreatedAt = time.Unix(createdAt, 0)
	return meta, nil
}
