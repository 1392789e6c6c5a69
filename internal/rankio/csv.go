// Package rankio reads and writes rank tables: one row per club, a Club column
// and one column per round holding the club's position after that round.
package rankio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/utakatalp/rank-stability/internal/league"
)

// ClubColumn is the header of the club identity column.
const ClubColumn = "Club"

var ErrMalformedTable = errors.New("malformed rank table")

// ReadRankTable parses a rank table. Round columns are named by their round
// number and may appear in any order; they must cover 1..R without gaps. Any
// other column, such as an unnamed leading index, is ignored. Clubs keep the
// file's row order, which becomes the history's round 0 anchor.
func ReadRankTable(r io.Reader) (*league.RankHistory, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	clubCol := -1
	roundCols := make(map[int]int)
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == ClubColumn {
			clubCol = i
			continue
		}
		round, err := strconv.Atoi(name)
		if err != nil || round < 1 {
			continue
		}
		if _, dup := roundCols[round]; dup {
			return nil, fmt.Errorf("round %d appears twice: %w", round, ErrMalformedTable)
		}
		roundCols[round] = i
	}
	if clubCol < 0 {
		return nil, fmt.Errorf("no %q column: %w", ClubColumn, ErrMalformedTable)
	}
	for round := 1; round <= len(roundCols); round++ {
		if _, ok := roundCols[round]; !ok {
			return nil, fmt.Errorf("missing round %d: %w", round, ErrMalformedTable)
		}
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}

	clubs := make([]string, 0, len(records))
	for line, rec := range records {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("row %d has %d fields, want %d: %w", line+2, len(rec), len(header), ErrMalformedTable)
		}
		clubs = append(clubs, strings.TrimSpace(rec[clubCol]))
	}

	h, err := league.NewRankHistory(clubs)
	if err != nil {
		return nil, fmt.Errorf("reading rank table: %w", err)
	}

	for round := 1; round <= len(roundCols); round++ {
		col := roundCols[round]
		positions := make(map[string]int, len(clubs))
		for line, rec := range records {
			pos, err := parsePosition(rec[col])
			if err != nil {
				return nil, fmt.Errorf("row %d round %d: %w", line+2, round, err)
			}
			positions[clubs[line]] = pos
		}
		if err := h.AppendRound(positions); err != nil {
			return nil, fmt.Errorf("reading rank table: %w", err)
		}
	}
	return h, nil
}

// parsePosition accepts "3" as well as "3.0", which dataframe exports produce.
func parsePosition(cell string) (int, error) {
	cell = strings.TrimSpace(cell)
	if pos, err := strconv.Atoi(cell); err == nil {
		return pos, nil
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("position %q: %w", cell, ErrMalformedTable)
	}
	return int(f), nil
}

// WriteRankTable writes the history's rounds 1..R followed by the Club column.
func WriteRankTable(w io.Writer, h *league.RankHistory) error {
	writer := csv.NewWriter(w)

	rounds := h.Rounds()
	header := make([]string, 0, rounds+1)
	for r := 1; r <= rounds; r++ {
		header = append(header, strconv.Itoa(r))
	}
	header = append(header, ClubColumn)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, club := range h.Clubs() {
		positions, err := h.Positions(club)
		if err != nil {
			return err
		}
		rec := make([]string, 0, rounds+1)
		for _, pos := range positions {
			rec = append(rec, strconv.Itoa(pos))
		}
		rec = append(rec, club)
		if err := writer.Write(rec); err != nil {
			return fmt.Errorf("writing club %q: %w", club, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ReadCorpusDir reads every *.csv file in dir, in lexical file name order, as
// one season each.
func ReadCorpusDir(dir string) ([]*league.RankHistory, []string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	sort.Strings(paths)

	corpus := make([]*league.RankHistory, 0, len(paths))
	names := make([]string, 0, len(paths))
	for _, path := range paths {
		h, err := readFile(path)
		if err != nil {
			return nil, nil, err
		}
		corpus = append(corpus, h)
		names = append(names, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	}
	return corpus, names, nil
}

func readFile(path string) (*league.RankHistory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h, err := ReadRankTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}
