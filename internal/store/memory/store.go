// Package memory is an in-process implementation of grid.Store.  Each
// transaction works on a copy of the state under one mutex and the copy
// replaces the live state on commit, so a failed transaction leaves no
// trace.  It backs the engine tests and single-process deployments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/football-squares/internal/grid"
	"github.com/iliyamo/football-squares/internal/model"
)

type state struct {
	games      map[string]model.Game
	squares    map[string][]model.Square // row*GridSize+col
	players    map[string]map[uint64]model.GamePlayer
	users      map[uint64]model.User
	nextSquare uint64
	nextPlayer uint64
}

func (s *state) clone() *state {
	c := &state{
		games:      make(map[string]model.Game, len(s.games)),
		squares:    make(map[string][]model.Square, len(s.squares)),
		players:    make(map[string]map[uint64]model.GamePlayer, len(s.players)),
		users:      s.users,
		nextSquare: s.nextSquare,
		nextPlayer: s.nextPlayer,
	}
	for k, v := range s.games {
		c.games[k] = v
	}
	for k, v := range s.squares {
		c.squares[k] = append([]model.Square(nil), v...)
	}
	for k, v := range s.players {
		m := make(map[uint64]model.GamePlayer, len(v))
		for id, p := range v {
			m[id] = p
		}
		c.players[k] = m
	}
	return c
}

// Store implements grid.Store in memory.  The zero value is not usable;
// call New.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ grid.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{st: &state{
		games:   map[string]model.Game{},
		squares: map[string][]model.Square{},
		players: map[string]map[uint64]model.GamePlayer{},
		users:   map[uint64]model.User{},
	}}
}

// PutUser registers a user so squares and rosters can show its name and
// notifications can reach it.
func (s *Store) PutUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make(map[uint64]model.User, len(s.st.users)+1)
	for k, v := range s.st.users {
		users[k] = v
	}
	users[u.ID] = u
	s.st.users = users
}

func (s *Store) InTx(ctx context.Context, fn func(tx grid.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.st.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) GetGame(_ context.Context, id string) (*model.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.st.games[id]
	if !ok {
		return nil, grid.ErrNotFound
	}
	return &g, nil
}

func (s *Store) GetGameByEntryCode(_ context.Context, code string) (*model.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.st.games {
		if g.EntryCode == code {
			return &g, nil
		}
	}
	return nil, grid.ErrNotFound
}

func (s *Store) ListGamesForUser(_ context.Context, userID uint64) ([]model.GameSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.GameSummary
	for id, g := range s.st.games {
		_, joined := s.st.players[id][userID]
		if g.ManagerID != userID && !joined {
			continue
		}
		sum := model.GameSummary{
			Game:        g,
			ManagerName: s.st.users[g.ManagerID].Name,
			PlayerCount: len(s.st.players[id]),
		}
		for _, sq := range s.st.squares[id] {
			if sq.Status != model.SquareAvailable {
				sum.ClaimedCount++
			}
			if sq.Status == model.SquareConfirmed {
				sum.ConfirmedCount++
			}
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) DeleteGame(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.games[id]; !ok {
		return grid.ErrNotFound
	}
	work := s.st.clone()
	delete(work.games, id)
	delete(work.squares, id)
	delete(work.players, id)
	s.st = work
	return nil
}

func (s *Store) ListSquares(_ context.Context, gameID string) ([]model.Square, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.games[gameID]; !ok {
		return nil, grid.ErrNotFound
	}
	src := s.st.squares[gameID]
	out := make([]model.Square, len(src))
	for i, sq := range src {
		out[i] = s.st.named(sq)
	}
	return out, nil
}

func (s *Store) GetPlayer(_ context.Context, gameID string, userID uint64) (*model.GamePlayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.player(gameID, userID)
}

func (s *Store) ListPlayers(_ context.Context, gameID string) ([]model.GamePlayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.GamePlayer, 0, len(s.st.players[gameID]))
	for _, p := range s.st.players[gameID] {
		p.UserName = s.st.users[p.UserID].Name
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetUsers(_ context.Context, ids []uint64) (map[uint64]model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint64]model.User, len(ids))
	for _, id := range ids {
		if u, ok := s.st.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (s *Store) ListExpiringGames(_ context.Context) ([]model.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Game
	for _, g := range s.st.games {
		if g.Status == model.GameOpen && g.AutoReleaseEnabled {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ReleaseExpired(_ context.Context, gameID string, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.st.games[gameID]
	if !ok || g.Status != model.GameOpen || !g.AutoReleaseEnabled {
		return 0, nil
	}
	work := s.st.clone()
	var n int64
	squares := work.squares[gameID]
	for i := range squares {
		sq := &squares[i]
		if sq.Status == model.SquareReserved && sq.ReservedAt != nil && sq.ReservedAt.Before(cutoff) {
			release(sq)
			n++
		}
	}
	s.st = work
	return n, nil
}

func (st *state) named(sq model.Square) model.Square {
	if sq.PlayerID != nil {
		sq.PlayerName = st.users[*sq.PlayerID].Name
	}
	return sq
}

func (st *state) player(gameID string, userID uint64) (*model.GamePlayer, error) {
	p, ok := st.players[gameID][userID]
	if !ok {
		return nil, fmt.Errorf("player %d in game %s: %w", userID, gameID, grid.ErrNotFound)
	}
	p.UserName = st.users[userID].Name
	return &p, nil
}

func release(sq *model.Square) {
	sq.Status = model.SquareAvailable
	sq.PlayerID = nil
	sq.ReservedAt = nil
}
