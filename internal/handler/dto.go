package handler

import (
	"time"

	"github.com/iliyamo/football-squares/internal/grid"
	"github.com/iliyamo/football-squares/internal/model"
)

type payoutsDTO struct {
	Q1    int `json:"q1" validate:"gte=0,lte=100"`
	Q2    int `json:"q2" validate:"gte=0,lte=100"`
	Q3    int `json:"q3" validate:"gte=0,lte=100"`
	Final int `json:"final" validate:"gte=0,lte=100"`
}

func (p payoutsDTO) model() model.Payouts {
	return model.Payouts{Q1: p.Q1, Q2: p.Q2, Q3: p.Q3, Final: p.Final}
}

type gameResp struct {
	ID                  string           `json:"id"`
	ManagerID           uint64           `json:"manager_id"`
	Name                string           `json:"name"`
	TeamHome            string           `json:"team_home"`
	TeamAway            string           `json:"team_away"`
	GameDate            time.Time        `json:"game_date"`
	Status              model.GameStatus `json:"status"`
	EntryCode           string           `json:"entry_code"`
	PricePerSquareCents *uint32          `json:"price_per_square_cents"`
	Payouts             payoutsDTO       `json:"payouts"`
	MaxSquaresPerPlayer int              `json:"max_squares_per_player"`
	ReservationHours    int              `json:"reservation_hours"`
	AutoReleaseEnabled  bool             `json:"auto_release_enabled"`
	PasswordProtected   bool             `json:"password_protected"`
	RowNumbers          []int            `json:"row_numbers,omitempty"`
	ColNumbers          []int            `json:"col_numbers,omitempty"`
	LockedAt            *time.Time       `json:"locked_at,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

func newGameResp(g *model.Game) gameResp {
	return gameResp{
		ID:                  g.ID,
		ManagerID:           g.ManagerID,
		Name:                g.Name,
		TeamHome:            g.TeamHome,
		TeamAway:            g.TeamAway,
		GameDate:            g.GameDate,
		Status:              g.Status,
		EntryCode:           g.EntryCode,
		PricePerSquareCents: g.PricePerSquareCents,
		Payouts:             payoutsDTO{Q1: g.Payouts.Q1, Q2: g.Payouts.Q2, Q3: g.Payouts.Q3, Final: g.Payouts.Final},
		MaxSquaresPerPlayer: g.MaxSquaresPerPlayer,
		ReservationHours:    g.ReservationHours,
		AutoReleaseEnabled:  g.AutoReleaseEnabled,
		PasswordProtected:   g.PasswordProtected(),
		RowNumbers:          g.RowNumbers,
		ColNumbers:          g.ColNumbers,
		LockedAt:            g.LockedAt,
		CreatedAt:           g.CreatedAt,
		UpdatedAt:           g.UpdatedAt,
	}
}

type gameSummaryResp struct {
	gameResp
	ManagerName    string `json:"manager_name"`
	PlayerCount    int    `json:"player_count"`
	ClaimedCount   int    `json:"claimed_count"`
	ConfirmedCount int    `json:"confirmed_count"`
}

type capsResp struct {
	IsManager   bool `json:"is_manager"`
	IsCoManager bool `json:"is_co_manager"`
	IsPlayer    bool `json:"is_player"`
	IsBlocked   bool `json:"is_blocked"`
}

func newCapsResp(c model.Capabilities) capsResp {
	return capsResp{IsManager: c.IsManager, IsCoManager: c.IsCoManager, IsPlayer: c.IsPlayer, IsBlocked: c.IsBlocked}
}

type playerResp struct {
	UserID   uint64           `json:"user_id"`
	Name     string           `json:"name"`
	Role     model.PlayerRole `json:"role"`
	Blocked  bool             `json:"blocked"`
	JoinedAt time.Time        `json:"joined_at"`
}

func newPlayerResp(p model.GamePlayer) playerResp {
	return playerResp{UserID: p.UserID, Name: p.UserName, Role: p.Role, Blocked: p.Blocked, JoinedAt: p.CreatedAt}
}

type lockResp struct {
	RowNumbers    []int     `json:"row_numbers"`
	ColNumbers    []int     `json:"col_numbers"`
	LockedAt      time.Time `json:"locked_at"`
	UnfilledCount int       `json:"unfilled_count"`
}

func newLockResp(r *grid.LockResult) lockResp {
	return lockResp{RowNumbers: r.RowNumbers, ColNumbers: r.ColNumbers, LockedAt: r.LockedAt, UnfilledCount: r.UnfilledCount}
}
