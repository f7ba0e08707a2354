package grid

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/football-squares/internal/model"
)

const (
	defaultFeedInterval = 30 * time.Second
	defaultFeedDebounce = 250 * time.Millisecond
)

// SquareView is one cell of a snapshot.
type SquareView struct {
	ID          uint64             `json:"id"`
	Row         int                `json:"row"`
	Col         int                `json:"col"`
	Status      model.SquareStatus `json:"status"`
	PlayerID    *uint64            `json:"player_id,omitempty"`
	PlayerName  string             `json:"player_name,omitempty"`
	ReservedAt  *time.Time         `json:"reserved_at,omitempty"`
	ConfirmedAt *time.Time         `json:"confirmed_at,omitempty"`
}

// Snapshot is the full grid of a game at one instant.  Squares are in
// row-major order.
type Snapshot struct {
	GameID     string           `json:"game_id"`
	Status     model.GameStatus `json:"status"`
	RowNumbers []int            `json:"row_numbers,omitempty"`
	ColNumbers []int            `json:"col_numbers,omitempty"`
	Squares    []SquareView     `json:"squares"`
	At         time.Time        `json:"at"`
}

// NewSquareViews projects squares for JSON output.
func NewSquareViews(squares []model.Square) []SquareView {
	out := make([]SquareView, 0, len(squares))
	for _, sq := range squares {
		out = append(out, SquareView{
			ID:          sq.ID,
			Row:         sq.Row,
			Col:         sq.Col,
			Status:      sq.Status,
			PlayerID:    sq.PlayerID,
			PlayerName:  sq.PlayerName,
			ReservedAt:  sq.ReservedAt,
			ConfirmedAt: sq.ConfirmedAt,
		})
	}
	return out
}

// Feed streams snapshots of a game to an already authorised viewer.  A
// snapshot goes out on connect, after every change signalled by the
// broker and at least once per interval.
type Feed struct {
	engine   *Engine
	interval time.Duration
	debounce time.Duration
}

// NewFeed constructs a Feed.  A non-positive interval uses the default.
func NewFeed(e *Engine, interval time.Duration) *Feed {
	if e == nil {
		panic("nil engine passed to NewFeed")
	}
	if interval <= 0 {
		interval = defaultFeedInterval
	}
	return &Feed{engine: e, interval: interval, debounce: defaultFeedDebounce}
}

// Snapshot reads the current grid.  It has no side effects.
func (f *Feed) Snapshot(ctx context.Context, gameID string) (*Snapshot, error) {
	g, err := f.engine.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	squares, err := f.engine.store.ListSquares(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		GameID:     g.ID,
		Status:     g.Status,
		RowNumbers: g.RowNumbers,
		ColNumbers: g.ColNumbers,
		Squares:    NewSquareViews(squares),
		At:         f.engine.clock(),
	}, nil
}

// Stream calls emit with snapshots until ctx is done or emit fails.  A
// cancelled ctx is a normal return and yields nil.
func (f *Feed) Stream(ctx context.Context, gameID string, emit func(*Snapshot) error) error {
	e := f.engine
	var changes <-chan struct{}
	if e.broker != nil {
		ch, cancel := e.broker.Subscribe(ctx, gameID)
		defer cancel()
		changes = ch
	}
	e.metrics.FeedOpened()
	defer e.metrics.FeedClosed()

	send := func() error {
		snap, err := f.Snapshot(ctx, gameID)
		if err != nil {
			return err
		}
		return emit(snap)
	}
	if err := send(); err != nil {
		return err
	}

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case _, ok := <-changes:
			if !ok {
				e.logger.Warn("feed subscription closed, falling back to interval", zap.String("game_id", gameID))
				changes = nil
				continue
			}
			if !f.settle(ctx, changes) {
				return nil
			}
			ticker.Reset(f.interval)
		}
		if err := send(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// settle swallows the burst of signals that follows a change so one
// snapshot covers all of it.  It reports false when ctx ends first.
func (f *Feed) settle(ctx context.Context, changes <-chan struct{}) bool {
	t := time.NewTimer(f.debounce)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case _, ok := <-changes:
			if !ok {
				changes = nil
			}
		case <-t.C:
			return true
		}
	}
}
