package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/football-squares/internal/grid"
	"github.com/iliyamo/football-squares/internal/model"
)

type tx struct {
	st *state
}

var _ grid.Tx = (*tx)(nil)

func (t *tx) EntryCodeExists(_ context.Context, code string) (bool, error) {
	for _, g := range t.st.games {
		if g.EntryCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) InsertGame(_ context.Context, g *model.Game) error {
	if _, ok := t.st.games[g.ID]; ok {
		return fmt.Errorf("game %s already exists", g.ID)
	}
	t.st.games[g.ID] = *g
	return nil
}

func (t *tx) InsertSquares(_ context.Context, gameID string) error {
	if len(t.st.squares[gameID]) > 0 {
		return fmt.Errorf("squares for game %s already exist", gameID)
	}
	squares := make([]model.Square, 0, model.GridSize*model.GridSize)
	for r := 0; r < model.GridSize; r++ {
		for c := 0; c < model.GridSize; c++ {
			t.st.nextSquare++
			squares = append(squares, model.Square{
				ID:     t.st.nextSquare,
				GameID: gameID,
				Row:    r,
				Col:    c,
				Status: model.SquareAvailable,
			})
		}
	}
	t.st.squares[gameID] = squares
	return nil
}

func (t *tx) LockGame(_ context.Context, id string) (*model.Game, error) {
	g, ok := t.st.games[id]
	if !ok {
		return nil, grid.ErrNotFound
	}
	return &g, nil
}

func (t *tx) UpdateGameSettings(_ context.Context, in *model.Game) error {
	g, ok := t.st.games[in.ID]
	if !ok {
		return grid.ErrNotFound
	}
	g.Name = in.Name
	g.PricePerSquareCents = in.PricePerSquareCents
	g.MaxSquaresPerPlayer = in.MaxSquaresPerPlayer
	g.AutoReleaseEnabled = in.AutoReleaseEnabled
	g.UpdatedAt = in.UpdatedAt
	t.st.games[in.ID] = g
	return nil
}

func (t *tx) SetAccessPassword(_ context.Context, gameID string, hash *string) error {
	g, ok := t.st.games[gameID]
	if !ok {
		return grid.ErrNotFound
	}
	g.AccessPasswordHash = hash
	t.st.games[gameID] = g
	return nil
}

func (t *tx) TransitionStatus(_ context.Context, gameID string, from []model.GameStatus, to model.GameStatus) (int64, error) {
	g, ok := t.st.games[gameID]
	if !ok {
		return 0, nil
	}
	for _, f := range from {
		if g.Status == f {
			g.Status = to
			t.st.games[gameID] = g
			return 1, nil
		}
	}
	return 0, nil
}

func (t *tx) AssignNumbers(_ context.Context, gameID string, rows, cols []int, at time.Time) (int64, error) {
	g, ok := t.st.games[gameID]
	if !ok || g.Status != model.GameOpen {
		return 0, nil
	}
	g.Status = model.GameLocked
	g.RowNumbers = append([]int(nil), rows...)
	g.ColNumbers = append([]int(nil), cols...)
	g.LockedAt = &at
	t.st.games[gameID] = g
	return 1, nil
}

func (t *tx) GetPlayer(_ context.Context, gameID string, userID uint64) (*model.GamePlayer, error) {
	return t.st.player(gameID, userID)
}

func (t *tx) EnsurePlayer(_ context.Context, gameID string, userID uint64, role model.PlayerRole) error {
	roster, ok := t.st.players[gameID]
	if !ok {
		roster = map[uint64]model.GamePlayer{}
		t.st.players[gameID] = roster
	}
	if _, ok := roster[userID]; ok {
		return nil
	}
	t.st.nextPlayer++
	roster[userID] = model.GamePlayer{
		ID:        t.st.nextPlayer,
		GameID:    gameID,
		UserID:    userID,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

func (t *tx) UpdatePlayer(_ context.Context, p *model.GamePlayer) (int64, error) {
	cur, ok := t.st.players[p.GameID][p.UserID]
	if !ok {
		return 0, nil
	}
	cur.Role = p.Role
	cur.Blocked = p.Blocked
	t.st.players[p.GameID][p.UserID] = cur
	return 1, nil
}

func (t *tx) DeletePlayer(_ context.Context, gameID string, userID uint64) (int64, error) {
	if _, ok := t.st.players[gameID][userID]; !ok {
		return 0, nil
	}
	delete(t.st.players[gameID], userID)
	return 1, nil
}

func (t *tx) CountHeld(_ context.Context, gameID string, userID uint64) (int, error) {
	n := 0
	for _, sq := range t.st.squares[gameID] {
		if sq.HeldBy(userID) {
			n++
		}
	}
	return n, nil
}

func (t *tx) MaxHeld(_ context.Context, gameID string) (int, error) {
	per := map[uint64]int{}
	max := 0
	for _, sq := range t.st.squares[gameID] {
		if sq.PlayerID == nil || sq.Status == model.SquareAvailable {
			continue
		}
		per[*sq.PlayerID]++
		if per[*sq.PlayerID] > max {
			max = per[*sq.PlayerID]
		}
	}
	return max, nil
}

func (t *tx) SquaresAt(_ context.Context, gameID string, cells []model.Cell) ([]model.Square, error) {
	squares := t.st.squares[gameID]
	out := make([]model.Square, 0, len(cells))
	for _, c := range cells {
		idx := c.Row*model.GridSize + c.Col
		if idx < 0 || idx >= len(squares) {
			continue
		}
		out = append(out, t.st.named(squares[idx]))
	}
	return out, nil
}

func (t *tx) ReserveCells(_ context.Context, gameID string, userID uint64, cells []model.Cell, at time.Time) (int64, error) {
	squares := t.st.squares[gameID]
	var n int64
	for _, c := range cells {
		idx := c.Row*model.GridSize + c.Col
		if idx < 0 || idx >= len(squares) || squares[idx].Status != model.SquareAvailable {
			continue
		}
		uid, ts := userID, at
		squares[idx].Status = model.SquareReserved
		squares[idx].PlayerID = &uid
		squares[idx].ReservedAt = &ts
		n++
	}
	return n, nil
}

func (t *tx) ReleaseReserved(_ context.Context, gameID string, userID uint64) (int64, error) {
	squares := t.st.squares[gameID]
	var n int64
	for i := range squares {
		sq := &squares[i]
		if sq.Status == model.SquareReserved && sq.PlayerID != nil && *sq.PlayerID == userID {
			release(sq)
			n++
		}
	}
	return n, nil
}

func (t *tx) ReservedByID(_ context.Context, gameID string, ids []uint64) ([]model.Square, error) {
	want := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []model.Square
	for _, sq := range t.st.squares[gameID] {
		if _, ok := want[sq.ID]; ok && sq.Status == model.SquareReserved {
			out = append(out, t.st.named(sq))
		}
	}
	return out, nil
}

func (t *tx) ConfirmSquares(_ context.Context, gameID string, ids []uint64, at time.Time) (int64, error) {
	want := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	squares := t.st.squares[gameID]
	var n int64
	for i := range squares {
		sq := &squares[i]
		if _, ok := want[sq.ID]; !ok || sq.Status != model.SquareReserved {
			continue
		}
		ts := at
		sq.Status = model.SquareConfirmed
		sq.ConfirmedAt = &ts
		n++
	}
	return n, nil
}

func (t *tx) CountUnconfirmed(_ context.Context, gameID string) (int, error) {
	n := 0
	for _, sq := range t.st.squares[gameID] {
		if sq.Status != model.SquareConfirmed {
			n++
		}
	}
	return n, nil
}
