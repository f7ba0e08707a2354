package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/football-squares/internal/grid"
	"github.com/iliyamo/football-squares/internal/model"
)

func seedGame(t *testing.T, s *Store, id string) {
	t.Helper()
	err := s.InTx(context.Background(), func(tx grid.Tx) error {
		if err := tx.InsertGame(context.Background(), &model.Game{
			ID: id, ManagerID: 1, Name: "Pool", Status: model.GameOpen,
			EntryCode: "CODE" + id, MaxSquaresPerPlayer: 10, ReservationHours: 24, AutoReleaseEnabled: true,
		}); err != nil {
			return err
		}
		return tx.InsertSquares(context.Background(), id)
	})
	require.NoError(t, err)
}

func TestInsertSquaresCoversGridRowMajor(t *testing.T) {
	s := New()
	seedGame(t, s, "g1")

	squares, err := s.ListSquares(context.Background(), "g1")
	require.NoError(t, err)
	require.Len(t, squares, model.GridSize*model.GridSize)
	for i, sq := range squares {
		assert.Equal(t, i/model.GridSize, sq.Row)
		assert.Equal(t, i%model.GridSize, sq.Col)
		assert.Equal(t, model.SquareAvailable, sq.Status)
	}
}

func TestFailedTransactionLeavesNoTrace(t *testing.T) {
	s := New()
	seedGame(t, s, "g1")
	boom := errors.New("boom")

	err := s.InTx(context.Background(), func(tx grid.Tx) error {
		n, err := tx.ReserveCells(context.Background(), "g1", 5, []model.Cell{{Row: 0, Col: 0}}, time.Now())
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
		return boom
	})
	require.ErrorIs(t, err, boom)

	squares, err := s.ListSquares(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, model.SquareAvailable, squares[0].Status)
	assert.Nil(t, squares[0].PlayerID)
}

func TestReserveCellsOnlyTouchesAvailable(t *testing.T) {
	s := New()
	seedGame(t, s, "g1")
	ctx := context.Background()
	cells := []model.Cell{{Row: 1, Col: 1}, {Row: 1, Col: 2}}

	require.NoError(t, s.InTx(ctx, func(tx grid.Tx) error {
		_, err := tx.ReserveCells(ctx, "g1", 5, cells[:1], time.Now())
		return err
	}))
	require.NoError(t, s.InTx(ctx, func(tx grid.Tx) error {
		n, err := tx.ReserveCells(ctx, "g1", 6, cells, time.Now())
		assert.EqualValues(t, 1, n)
		return err
	}))

	squares, _ := s.ListSquares(ctx, "g1")
	assert.Equal(t, uint64(5), *squares[11].PlayerID)
	assert.Equal(t, uint64(6), *squares[12].PlayerID)
}

func TestReleaseExpiredSkipsConfirmedAndLockedGames(t *testing.T) {
	s := New()
	seedGame(t, s, "g1")
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	require.NoError(t, s.InTx(ctx, func(tx grid.Tx) error {
		if _, err := tx.ReserveCells(ctx, "g1", 5, []model.Cell{{Row: 0, Col: 0}, {Row: 0, Col: 1}}, old); err != nil {
			return err
		}
		_, err := tx.ConfirmSquares(ctx, "g1", []uint64{1}, time.Now())
		return err
	}))

	n, err := s.ReleaseExpired(ctx, "g1", time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	squares, _ := s.ListSquares(ctx, "g1")
	assert.Equal(t, model.SquareConfirmed, squares[0].Status)
	assert.Equal(t, model.SquareAvailable, squares[1].Status)
}

func TestReleaseExpiredRechecksAutoRelease(t *testing.T) {
	s := New()
	seedGame(t, s, "g1")
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	require.NoError(t, s.InTx(ctx, func(tx grid.Tx) error {
		if _, err := tx.ReserveCells(ctx, "g1", 5, []model.Cell{{Row: 2, Col: 2}}, old); err != nil {
			return err
		}
		g, err := tx.LockGame(ctx, "g1")
		if err != nil {
			return err
		}
		g.AutoReleaseEnabled = false
		return tx.UpdateGameSettings(ctx, g)
	}))

	n, err := s.ReleaseExpired(ctx, "g1", time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
	squares, _ := s.ListSquares(ctx, "g1")
	assert.Equal(t, model.SquareReserved, squares[22].Status)
}

func TestMaxHeld(t *testing.T) {
	s := New()
	seedGame(t, s, "g1")
	ctx := context.Background()

	require.NoError(t, s.InTx(ctx, func(tx grid.Tx) error {
		if _, err := tx.ReserveCells(ctx, "g1", 5, []model.Cell{{Row: 0, Col: 0}, {Row: 0, Col: 1}}, time.Now()); err != nil {
			return err
		}
		if _, err := tx.ReserveCells(ctx, "g1", 6, []model.Cell{{Row: 1, Col: 1}}, time.Now()); err != nil {
			return err
		}
		n, err := tx.MaxHeld(ctx, "g1")
		assert.Equal(t, 2, n)
		return err
	}))
}

func TestPlayersAndNames(t *testing.T) {
	s := New()
	seedGame(t, s, "g1")
	ctx := context.Background()
	s.PutUser(model.User{ID: 5, Name: "Ann", Email: "ann@example.com"})

	require.NoError(t, s.InTx(ctx, func(tx grid.Tx) error {
		if err := tx.EnsurePlayer(ctx, "g1", 5, model.RolePlayer); err != nil {
			return err
		}
		return tx.EnsurePlayer(ctx, "g1", 5, model.RoleCoManager)
	}))

	p, err := s.GetPlayer(ctx, "g1", 5)
	require.NoError(t, err)
	assert.Equal(t, model.RolePlayer, p.Role)
	assert.Equal(t, "Ann", p.UserName)

	_, err = s.GetPlayer(ctx, "g1", 99)
	assert.ErrorIs(t, err, grid.ErrNotFound)

	games, err := s.ListGamesForUser(ctx, 5)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, 1, games[0].PlayerCount)
}

func TestDeleteGameCascades(t *testing.T) {
	s := New()
	seedGame(t, s, "g1")
	ctx := context.Background()

	require.NoError(t, s.DeleteGame(ctx, "g1"))
	_, err := s.GetGame(ctx, "g1")
	assert.ErrorIs(t, err, grid.ErrNotFound)
	_, err = s.ListSquares(ctx, "g1")
	assert.ErrorIs(t, err, grid.ErrNotFound)
	assert.ErrorIs(t, s.DeleteGame(ctx, "g1"), grid.ErrNotFound)
}
