package grid_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/football-squares/internal/broker"
	"github.com/iliyamo/football-squares/internal/grid"
	"github.com/iliyamo/football-squares/internal/model"
)

func recvSnapshot(t *testing.T, ch <-chan *grid.Snapshot) *grid.Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestFeedPushesOnChange(t *testing.T) {
	b := broker.NewLocal()
	f := newFixture(t, grid.Settings{}, grid.WithBroker(b))
	g := f.createGame(t)
	feed := grid.NewFeed(f.engine, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	snaps := make(chan *grid.Snapshot, 8)
	done := make(chan error, 1)
	go func() {
		done <- feed.Stream(ctx, g.ID, func(s *grid.Snapshot) error {
			snaps <- s
			return nil
		})
	}()

	first := recvSnapshot(t, snaps)
	require.Len(t, first.Squares, 100)
	assert.Equal(t, model.GameOpen, first.Status)
	for i, sq := range first.Squares {
		assert.Equal(t, i/10, sq.Row)
		assert.Equal(t, i%10, sq.Col)
	}

	require.Eventually(t, func() bool { return b.Subscribers(g.ID) == 1 }, time.Second, 5*time.Millisecond)
	_, err := f.engine.ReserveSquares(context.Background(), g.ID, playerA, cells(6, 7))
	require.NoError(t, err)

	next := recvSnapshot(t, snaps)
	sq := next.Squares[67]
	assert.Equal(t, model.SquareReserved, sq.Status)
	assert.Equal(t, "Ann", sq.PlayerName)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after cancel")
	}
	assert.Zero(t, b.Subscribers(g.ID), "subscription must be released on disconnect")
}

func TestFeedFallsBackToInterval(t *testing.T) {
	f := newFixture(t, grid.Settings{})
	g := f.createGame(t)
	feed := grid.NewFeed(f.engine, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	count := 0
	err := feed.Stream(ctx, g.ID, func(*grid.Snapshot) error {
		count++
		if count == 3 {
			cancel()
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestFeedStopsOnEmitError(t *testing.T) {
	f := newFixture(t, grid.Settings{})
	g := f.createGame(t)
	gone := errors.New("client gone")

	err := grid.NewFeed(f.engine, time.Hour).Stream(context.Background(), g.ID, func(*grid.Snapshot) error {
		return gone
	})
	assert.ErrorIs(t, err, gone)
}

func TestFeedUnknownGame(t *testing.T) {
	f := newFixture(t, grid.Settings{})
	err := grid.NewFeed(f.engine, time.Hour).Stream(context.Background(), "missing", func(*grid.Snapshot) error {
		return nil
	})
	assert.ErrorIs(t, err, grid.ErrNotFound)
}

func TestSnapshotShowsNumbersAfterLock(t *testing.T) {
	f := newFixture(t, grid.Settings{})
	ctx := context.Background()
	g := f.createGame(t)
	res, err := f.engine.LockGrid(ctx, g.ID, managerID)
	require.NoError(t, err)

	snap, err := grid.NewFeed(f.engine, 0).Snapshot(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, model.GameLocked, snap.Status)
	assert.Equal(t, res.RowNumbers, snap.RowNumbers)
	assert.Equal(t, res.ColNumbers, snap.ColNumbers)
}
