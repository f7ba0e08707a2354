package model

import "time"

// GameStatus is the lifecycle state of a squares game.
type GameStatus string

const (
	GameDraft      GameStatus = "DRAFT"
	GameOpen       GameStatus = "OPEN"
	GameLocked     GameStatus = "LOCKED"
	GameInProgress GameStatus = "IN_PROGRESS"
	GameCompleted  GameStatus = "COMPLETED"
	GameCancelled  GameStatus = "CANCELLED"
)

// GridSize is the number of rows and the number of columns of every grid.
const GridSize = 10

// Payouts holds the percentage of the pot paid out for each scoring period.
// The four values must add up to 100.
type Payouts struct {
	Q1    int // games.payout_q1
	Q2    int // games.payout_q2
	Q3    int // games.payout_q3
	Final int // games.payout_final
}

// Total returns the sum of all four periods.
func (p Payouts) Total() int { return p.Q1 + p.Q2 + p.Q3 + p.Final }

// Game represents one 10x10 squares grid run by a manager.  It
// corresponds to a row in the `games` table.  RowNumbers and ColNumbers
// stay empty until the grid is locked and never change afterwards.
//
// Fields:
//  ID                  – UUID primary key.
//  ManagerID           – user who created and owns the game.
//  Name                – display name of the pool.
//  TeamHome, TeamAway  – team labels shown along the grid axes.
//  GameDate            – scheduled kick-off.
//  Status              – lifecycle state (see GameStatus).
//  EntryCode           – short public join code.
//  PricePerSquareCents – optional price per square.
//  MaxSquaresPerPlayer – cap on reserved+confirmed squares per player.
//  ReservationHours    – TTL of an unpaid reservation.
//  AutoReleaseEnabled  – whether the sweeper releases expired reservations.
//  AccessPasswordHash  – bcrypt hash when the game is password protected.
type Game struct {
	ID                  string     // games.id
	ManagerID           uint64     // games.manager_id
	Name                string     // games.name
	TeamHome            string     // games.team_home
	TeamAway            string     // games.team_away
	GameDate            time.Time  // games.game_date
	Status              GameStatus // games.status
	EntryCode           string     // games.entry_code
	PricePerSquareCents *uint32    // games.price_per_square_cents (nullable)
	Payouts             Payouts
	MaxSquaresPerPlayer int        // games.max_squares_per_player
	ReservationHours    int        // games.reservation_hours
	AutoReleaseEnabled  bool       // games.auto_release_enabled
	AccessPasswordHash  *string    // games.access_password_hash (nullable)
	RowNumbers          []int      // games.row_numbers (JSON, nullable)
	ColNumbers          []int      // games.col_numbers (JSON, nullable)
	LockedAt            *time.Time // games.locked_at (nullable)
	CreatedAt           time.Time  // games.created_at
	UpdatedAt           time.Time  // games.updated_at
}

// PasswordProtected reports whether joining requires the access password.
func (g *Game) PasswordProtected() bool {
	return g.AccessPasswordHash != nil && *g.AccessPasswordHash != ""
}

// Reservable reports whether the grid accepts new claims.
func (g *Game) Reservable() bool { return g.Status == GameOpen }

// GameSummary is the list view of a game with roster counters.
type GameSummary struct {
	Game
	ManagerName    string
	PlayerCount    int
	ClaimedCount   int // squares that are not AVAILABLE
	ConfirmedCount int
}
