package rankio_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utakatalp/rank-stability/internal/league"
	"github.com/utakatalp/rank-stability/internal/rankio"
)

const scraped = `,1,2,3,Club
0,1,2,1,Arsenal
1,2.0,1,3,Chelsea
2,3,3,2,Everton
`

func TestReadRankTable_ScrapedLayout(t *testing.T) {
	h, err := rankio.ReadRankTable(strings.NewReader(scraped))
	require.NoError(t, err)

	assert.Equal(t, []string{"Arsenal", "Chelsea", "Everton"}, h.Clubs())
	assert.Equal(t, 3, h.Rounds())
	assert.Equal(t, []int{1, 3, 2}, h.Final())

	positions, err := h.Positions("Chelsea")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 3}, positions)
}

func TestReadRankTable_ColumnsInAnyOrder(t *testing.T) {
	in := "Club,2,1\nA,2,1\nB,1,2\n"
	h, err := rankio.ReadRankTable(strings.NewReader(in))
	require.NoError(t, err)

	col, err := h.Column(1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, col)
	assert.Equal(t, []int{2, 1}, h.Final())
}

func TestReadRankTable_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"no club column", "1,2\n1,2\n", rankio.ErrMalformedTable},
		{"gap in rounds", "Club,1,3\nA,1,1\nB,2,2\n", rankio.ErrMalformedTable},
		{"non-integer cell", "Club,1\nA,x\nB,2\n", rankio.ErrMalformedTable},
		{"fractional cell", "Club,1\nA,1.5\nB,2\n", rankio.ErrMalformedTable},
		{"not a permutation", "Club,1\nA,1\nB,1\n", league.ErrNotPermutation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rankio.ReadRankTable(strings.NewReader(tt.in))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := rankio.ReadRankTable(strings.NewReader("Club,1\nA,1\nA,2\n"))
	assert.Error(t, err, "duplicate club")
}

func TestWriteRankTable_RoundTrip(t *testing.T) {
	h, err := league.SimulateSeason(league.SeasonConfig{Teams: 6, GoalRate: 1.3}, 5)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, rankio.WriteRankTable(&buf, h))

	header := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.True(t, strings.HasPrefix(header, "1,2,3,"))
	assert.True(t, strings.HasSuffix(header, ",Club"))

	back, err := rankio.ReadRankTable(&buf)
	require.NoError(t, err)
	assert.Equal(t, h, back)
}

func TestReadCorpusDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2001.csv"), []byte("Club,1\nA,2\nB,1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2000.csv"), []byte(scraped), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	corpus, names, err := rankio.ReadCorpusDir(dir)
	require.NoError(t, err)
	require.Len(t, corpus, 2)
	assert.Equal(t, []string{"2000", "2001"}, names)
	assert.Equal(t, 3, corpus[0].Teams())
	assert.Equal(t, 2, corpus[1].Teams())
}

func TestReadCorpusDir_BadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.csv"), []byte("1\n1\n"), 0o644))

	_, _, err := rankio.ReadCorpusDir(dir)
	assert.ErrorIs(t, err, rankio.ErrMalformedTable)
}
