package model

import "time"

// SquareStatus is the state of one cell in the grid.
type SquareStatus string

const (
	SquareAvailable SquareStatus = "AVAILABLE"
	SquareReserved  SquareStatus = "RESERVED"
	SquareConfirmed SquareStatus = "CONFIRMED"
)

// Cell addresses a square by zero-based row and column.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Valid reports whether both indexes fall inside the grid.
func (c Cell) Valid() bool {
	return c.Row >= 0 && c.Row < GridSize && c.Col >= 0 && c.Col < GridSize
}

// Square is a single cell of a game's grid.  Exactly GridSize*GridSize
// squares exist per game, created together with the game.  ConfirmedAt is
// never cleared once set.
//
// Fields:
//  ID          – primary key identifier.
//  GameID      – owning game.
//  Row, Col    – position in the grid (0-9).
//  Status      – AVAILABLE, RESERVED or CONFIRMED.
//  PlayerID    – occupant, nil while AVAILABLE.
//  PlayerName  – occupant display name (read projection, not stored).
//  ReservedAt  – when the current occupant reserved it.
//  ConfirmedAt – when the manager confirmed payment.
type Square struct {
	ID          uint64       // squares.id
	GameID      string       // squares.game_id
	Row         int          // squares.row_idx
	Col         int          // squares.col_idx
	Status      SquareStatus // squares.status
	PlayerID    *uint64      // squares.player_id (nullable)
	PlayerName  string       // users.name via join
	ReservedAt  *time.Time   // squares.reserved_at (nullable)
	ConfirmedAt *time.Time   // squares.confirmed_at (nullable)
}

// Cell returns the grid position of the square.
func (s Square) Cell() Cell { return Cell{Row: s.Row, Col: s.Col} }

// HeldBy reports whether the square is reserved or confirmed by userID.
func (s Square) HeldBy(userID uint64) bool {
	return s.Status != SquareAvailable && s.PlayerID != nil && *s.PlayerID == userID
}
