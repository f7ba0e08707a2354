package model

import "time"

// PlayerRole is the role of a user inside one game.
type PlayerRole string

const (
	RolePlayer    PlayerRole = "PLAYER"
	RoleCoManager PlayerRole = "CO_MANAGER"
)

// ValidRole reports whether r is a known role.
func ValidRole(r PlayerRole) bool { return r == RolePlayer || r == RoleCoManager }

// GamePlayer joins a user to a game.  Rows are created on the first
// successful claim or an explicit join and only removed by the manager.
type GamePlayer struct {
	ID        uint64     // game_players.id
	GameID    string     // game_players.game_id
	UserID    uint64     // game_players.user_id
	UserName  string     // users.name via join
	Role      PlayerRole // game_players.role
	Blocked   bool       // game_players.blocked
	CreatedAt time.Time  // game_players.created_at
}

// Capabilities is what a user may do in a game.  It is derived from the
// game's manager and the user's GamePlayer row, if any.
type Capabilities struct {
	IsManager   bool
	IsCoManager bool
	IsPlayer    bool
	IsBlocked   bool
}

// CapabilitiesFor computes the capability set of userID in game g.  p may
// be nil when the user never joined.
func CapabilitiesFor(g *Game, userID uint64, p *GamePlayer) Capabilities {
	c := Capabilities{IsManager: g.ManagerID == userID}
	if p != nil {
		c.IsPlayer = true
		c.IsCoManager = p.Role == RoleCoManager
		c.IsBlocked = p.Blocked
	}
	return c
}

// CanManage reports whether the user may confirm payments and lock the grid.
func (c Capabilities) CanManage() bool { return c.IsManager || c.IsCoManager }

// CanView reports whether the user may see the grid and its live feed.
func (c Capabilities) CanView() bool { return c.IsManager || c.IsPlayer }
