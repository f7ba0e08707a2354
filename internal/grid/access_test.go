package grid_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/football-squares/internal/grid"
	"github.com/iliyamo/football-squares/internal/model"
	"github.com/iliyamo/football-squares/internal/queue"
)

func TestPasswordGate(t *testing.T) {
	f := newFixture(t, grid.Settings{})
	ctx := context.Background()
	g := f.createGame(t)

	assert.ErrorIs(t, f.engine.SetAccessPassword(ctx, g.ID, managerID, true, "abc"), grid.ErrInvalidInput)
	assert.ErrorIs(t, f.engine.SetAccessPassword(ctx, g.ID, playerA, true, "hunter2"), grid.ErrNotManager)
	require.NoError(t, f.engine.SetAccessPassword(ctx, g.ID, managerID, true, "hunter2"))

	st, err := f.engine.CheckAccess(ctx, g.ID, playerA, "")
	require.NoError(t, err)
	assert.Equal(t, grid.AccessStatus{PasswordRequired: true, HasAccess: false}, st)

	st, err = f.engine.CheckAccess(ctx, g.ID, managerID, "")
	require.NoError(t, err)
	assert.True(t, st.HasAccess)

	_, err = f.engine.JoinGame(ctx, g.ID, playerA, "")
	assert.ErrorIs(t, err, grid.ErrAccessDenied)
	_, err = f.engine.GrantAccess(ctx, g.ID, playerA, "wrong")
	assert.ErrorIs(t, err, grid.ErrAccessDenied)

	tok, err := f.engine.GrantAccess(ctx, g.ID, playerA, "hunter2")
	require.NoError(t, err)

	// the grant is scoped to the viewer it was issued to
	st, err = f.engine.CheckAccess(ctx, g.ID, playerB, tok.Token)
	require.NoError(t, err)
	assert.False(t, st.HasAccess)

	st, err = f.engine.CheckAccess(ctx, g.ID, playerA, tok.Token)
	require.NoError(t, err)
	assert.True(t, st.HasAccess)

	p, err := f.engine.JoinGame(ctx, g.ID, playerA, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, model.RolePlayer, p.Role)

	// once on the roster the token is no longer needed
	st, err = f.engine.CheckAccess(ctx, g.ID, playerA, "")
	require.NoError(t, err)
	assert.True(t, st.HasAccess)

	require.NoError(t, f.engine.SetAccessPassword(ctx, g.ID, managerID, false, ""))
	st, err = f.engine.CheckAccess(ctx, g.ID, playerB, "")
	require.NoError(t, err)
	assert.Equal(t, grid.AccessStatus{PasswordRequired: false, HasAccess: true}, st)
}

func TestViewGameRequiresMembership(t *testing.T) {
	f := newFixture(t, grid.Settings{})
	ctx := context.Background()
	g := f.createGame(t)

	_, err := f.engine.ViewGame(ctx, g.ID, playerA)
	assert.ErrorIs(t, err, grid.ErrAccessDenied)

	_, err = f.engine.JoinGame(ctx, g.ID, playerA, "")
	require.NoError(t, err)
	_, err = f.engine.JoinGame(ctx, g.ID, playerA, "")
	require.NoError(t, err, "joining twice is harmless")

	view, err := f.engine.ViewGame(ctx, g.ID, playerA)
	require.NoError(t, err)
	assert.True(t, view.Caps.IsPlayer)
	assert.False(t, view.Caps.CanManage())
	assert.Len(t, view.Squares, 100)

	mgr, err := f.engine.ViewGame(ctx, g.ID, managerID)
	require.NoError(t, err)
	assert.True(t, mgr.Caps.IsManager)
}

func TestJoinClosedGame(t *testing.T) {
	f := newFixture(t, grid.Settings{})
	ctx := context.Background()
	g := f.createGame(t)
	_, err := f.engine.LockGrid(ctx, g.ID, managerID)
	require.NoError(t, err)

	_, err = f.engine.JoinGame(ctx, g.ID, playerA, "")
	assert.ErrorIs(t, err, grid.ErrGameNotJoinable)
}

func TestPlayerManagement(t *testing.T) {
	f := newFixture(t, grid.Settings{})
	ctx := context.Background()
	g := f.createGame(t)

	squares, err := f.engine.ReserveSquares(ctx, g.ID, playerA, cells(1, 1, 1, 2, 1, 3))
	require.NoError(t, err)
	_, err = f.engine.ConfirmSquares(ctx, g.ID, managerID, []uint64{squares[11].ID})
	require.NoError(t, err)

	_, err = f.engine.ListPlayers(ctx, g.ID, playerA)
	assert.ErrorIs(t, err, grid.ErrNotManager)
	roster, err := f.engine.ListPlayers(ctx, g.ID, managerID)
	require.NoError(t, err)
	assert.Len(t, roster, 2)

	assert.ErrorIs(t, f.engine.SetPlayerRole(ctx, g.ID, managerID, playerA, "OWNER"), grid.ErrInvalidInput)
	assert.ErrorIs(t, f.engine.SetPlayerBlocked(ctx, g.ID, managerID, playerB, true), grid.ErrNotFound)
	assert.ErrorIs(t, f.engine.SetPlayerBlocked(ctx, g.ID, managerID, managerID, true), grid.ErrInvalidInput)

	_, err = f.engine.RemovePlayer(ctx, g.ID, managerID, managerID)
	assert.ErrorIs(t, err, grid.ErrInvalidInput)
	_, err = f.engine.RemovePlayer(ctx, g.ID, playerA, playerA)
	assert.ErrorIs(t, err, grid.ErrNotManager)

	released, err := f.engine.RemovePlayer(ctx, g.ID, managerID, playerA)
	require.NoError(t, err)
	assert.EqualValues(t, 2, released)
	assert.Equal(t, model.SquareConfirmed, f.squareAt(t, g.ID, 1, 1).Status)
	assert.Equal(t, model.SquareAvailable, f.squareAt(t, g.ID, 1, 2).Status)

	_, err = f.engine.RemovePlayer(ctx, g.ID, managerID, playerA)
	assert.ErrorIs(t, err, grid.ErrNotFound)
}

func TestManagerReleasesPlayerSquares(t *testing.T) {
	f := newFixture(t, grid.Settings{})
	ctx := context.Background()
	g := f.createGame(t)

	_, err := f.engine.ReserveSquares(ctx, g.ID, playerA, cells(7, 7, 7, 8))
	require.NoError(t, err)

	_, err = f.engine.ReleasePlayerSquares(ctx, g.ID, playerB, playerA)
	assert.ErrorIs(t, err, grid.ErrNotManager)

	n, err := f.engine.ReleasePlayerSquares(ctx, g.ID, managerID, playerA)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = f.engine.ReserveSquares(ctx, g.ID, playerB, cells(7, 7))
	assert.NoError(t, err)
}

func TestInvitePlayers(t *testing.T) {
	f := newFixture(t, grid.Settings{})
	ctx := context.Background()
	g := f.createGame(t)

	_, err := f.engine.InvitePlayers(ctx, g.ID, playerA, []string{"x@example.com"})
	assert.ErrorIs(t, err, grid.ErrNotManager)
	_, err = f.engine.InvitePlayers(ctx, g.ID, managerID, []string{"not an email"})
	assert.ErrorIs(t, err, grid.ErrInvalidInput)
	_, err = f.engine.InvitePlayers(ctx, g.ID, managerID, []string{" ", ""})
	assert.ErrorIs(t, err, grid.ErrInvalidInput)

	sent, err := f.engine.InvitePlayers(ctx, g.ID, managerID, []string{"X@example.com", "x@example.com", "y@example.com"})
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	invites := f.notifier.ofType(queue.EventInvite)
	require.Len(t, invites, 2)
	assert.Equal(t, "x@example.com", invites[0].RecipientEmail)
	assert.Equal(t, "Manager", invites[0].ManagerName)
	assert.Equal(t, "https://squares.test/join/"+g.EntryCode, invites[0].Link)
	assert.NotEmpty(t, invites[0].CreatedAt)
}

func TestAccessGrantFollowsEngineClock(t *testing.T) {
	f := newFixture(t, grid.Settings{AccessTTL: time.Hour})
	ctx := context.Background()
	g := f.createGame(t)
	require.NoError(t, f.engine.SetAccessPassword(ctx, g.ID, managerID, true, "hunter2"))

	tok, err := f.engine.GrantAccess(ctx, g.ID, playerA, "hunter2")
	require.NoError(t, err)

	f.clock.Advance(30 * time.Minute)
	st, err := f.engine.CheckAccess(ctx, g.ID, playerA, tok.Token)
	require.NoError(t, err)
	assert.True(t, st.HasAccess)

	f.clock.Advance(time.Hour)
	st, err = f.engine.CheckAccess(ctx, g.ID, playerA, tok.Token)
	require.NoError(t, err)
	assert.False(t, st.HasAccess, "grant outlived its TTL")
}
