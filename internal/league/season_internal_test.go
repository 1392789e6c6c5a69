package league

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulateCorpus_StopsAfterFirstFailure(t *testing.T) {
	errBoom := errors.New("boom")
	var calls atomic.Int32
	release := make(chan struct{})

	orig := simulateSeason
	simulateSeason = func(cfg SeasonConfig, seed uint64) (*RankHistory, error) {
		calls.Add(1)
		if seed == 0 {
			return nil, errBoom
		}
		<-release
		return SimulateSeason(cfg, seed)
	}
	t.Cleanup(func() { simulateSeason = orig })

	done := make(chan error, 1)
	go func() {
		_, err := SimulateCorpus(context.Background(), CorpusConfig{
			Season:   SeasonConfig{Teams: 4, GoalRate: 1},
			Seasons:  200,
			BaseSeed: 0,
			Workers:  2,
		}, nil)
		done <- err
	}()

	// Season 0 fails; both workers then block on seasons 1 and 2.
	require.Eventually(t, func() bool { return calls.Load() == 3 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(release)

	err := <-done
	assert.ErrorIs(t, err, errBoom)
	assert.Less(t, calls.Load(), int32(200))
}
