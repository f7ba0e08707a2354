package grid

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/football-squares/internal/model"
	"github.com/iliyamo/football-squares/internal/queue"
)

const (
	defaultSweepInterval = 5 * time.Minute
	reminderMinHours     = 4
	reminderMaxHours     = 6
)

// ReminderLedger remembers which (game, player) pairs were already
// reminded.  Mark returns true only for the first call inside ttl.
type ReminderLedger interface {
	Mark(ctx context.Context, gameID string, playerID uint64, ttl time.Duration) (bool, error)
}

// MemoryLedger is a process-local ReminderLedger.
type MemoryLedger struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// NewMemoryLedger returns an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{seen: map[string]time.Time{}, now: time.Now}
}

func (l *MemoryLedger) Mark(_ context.Context, gameID string, playerID uint64, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := fmt.Sprintf("%s:%d", gameID, playerID)
	now := l.now()
	if exp, ok := l.seen[key]; ok && now.Before(exp) {
		return false, nil
	}
	l.seen[key] = now.Add(ttl)
	return true, nil
}

// ReleaseReport summarises one expiry pass.
type ReleaseReport struct {
	GamesScanned int   `json:"games_scanned"`
	Released     int64 `json:"released"`
	Failed       int   `json:"failed"`
}

// ReminderReport summarises one reminder pass.
type ReminderReport struct {
	GamesScanned int `json:"games_scanned"`
	Sent         int `json:"sent"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
}

// Sweeper releases expired reservations and queues payment reminders on
// an interval.  Both passes are also exposed for the cron endpoints.
type Sweeper struct {
	engine   *Engine
	ledger   ReminderLedger
	interval time.Duration

	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
	startMu  sync.Mutex
	started  bool
}

// NewSweeper constructs a Sweeper.  A nil ledger falls back to a
// MemoryLedger.
func NewSweeper(e *Engine, ledger ReminderLedger, interval time.Duration) *Sweeper {
	if e == nil {
		panic("nil engine passed to NewSweeper")
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if ledger == nil {
		ledger = NewMemoryLedger()
	}
	return &Sweeper{
		engine:   e,
		ledger:   ledger,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start runs a sweep immediately and then on every tick until ctx is
// cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.startMu.Lock()
	if s.started {
		s.startMu.Unlock()
		return
	}
	s.started = true
	s.startMu.Unlock()

	s.ticker = time.NewTicker(s.interval)
	log := s.engine.logger

	go func() {
		log.Info("sweeper started", zap.Duration("interval", s.interval))
		s.RunOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				s.ticker.Stop()
				log.Info("sweeper stopped")
				return
			case <-s.done:
				s.ticker.Stop()
				log.Info("sweeper stopped")
				return
			case <-s.ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// Stop halts the loop.  It is safe to call more than once.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

// RunOnce performs one release pass followed by one reminder pass.
func (s *Sweeper) RunOnce(ctx context.Context) (ReleaseReport, ReminderReport) {
	start := time.Now()
	rel, err := s.ReleaseExpired(ctx)
	if err != nil {
		s.engine.logger.Error("release expired failed", zap.Error(err))
	}
	rem, err := s.SendReminders(ctx)
	if err != nil {
		s.engine.logger.Error("send reminders failed", zap.Error(err))
	}
	s.engine.metrics.SweepCompleted(time.Since(start))
	return rel, rem
}

// ReleaseExpired frees every RESERVED square older than its game's TTL.
// A failing game is logged and skipped.
func (s *Sweeper) ReleaseExpired(ctx context.Context) (ReleaseReport, error) {
	e := s.engine
	var rep ReleaseReport
	games, err := e.store.ListExpiringGames(ctx)
	if err != nil {
		return rep, fmt.Errorf("list expiring games: %w", err)
	}
	now := e.clock()
	for _, g := range games {
		rep.GamesScanned++
		cutoff := now.Add(-time.Duration(g.ReservationHours) * time.Hour)
		n, err := e.store.ReleaseExpired(ctx, g.ID, cutoff)
		if err != nil {
			rep.Failed++
			e.logger.Error("release expired squares",
				zap.String("game_id", g.ID),
				zap.Error(err))
			continue
		}
		if n == 0 {
			continue
		}
		rep.Released += n
		e.metrics.SquaresReleased("expired", int(n))
		e.logger.Info("expired squares released",
			zap.String("game_id", g.ID),
			zap.Int64("count", n),
			zap.Time("cutoff", cutoff))
		e.changed(ctx, g.ID)
	}
	return rep, nil
}

type pendingReminder struct {
	squares        int
	hoursRemaining int
}

// hoursUntilExpiry rounds up, so 4h01m remaining counts as 5 hours.
func hoursUntilExpiry(reservedAt time.Time, ttlHours int, now time.Time) int {
	remaining := reservedAt.Add(time.Duration(ttlHours) * time.Hour).Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Hours()))
}

// SendReminders queues at most one payment reminder per (game, player)
// while that player has squares 4 to 6 hours from expiry.
func (s *Sweeper) SendReminders(ctx context.Context) (ReminderReport, error) {
	e := s.engine
	var rep ReminderReport
	games, err := e.store.ListExpiringGames(ctx)
	if err != nil {
		return rep, fmt.Errorf("list expiring games: %w", err)
	}
	now := e.clock()
	for i := range games {
		g := &games[i]
		rep.GamesScanned++
		squares, err := e.store.ListSquares(ctx, g.ID)
		if err != nil {
			rep.Failed++
			e.logger.Error("load squares for reminders", zap.String("game_id", g.ID), zap.Error(err))
			continue
		}
		pending, order := dueReminders(squares, g.ReservationHours, now)
		if len(order) == 0 {
			continue
		}
		users, err := e.store.GetUsers(ctx, order)
		if err != nil {
			rep.Failed++
			e.logger.Error("load users for reminders", zap.String("game_id", g.ID), zap.Error(err))
			continue
		}
		ttl := time.Duration(g.ReservationHours) * time.Hour
		for _, playerID := range order {
			u, ok := users[playerID]
			if !ok {
				continue
			}
			first, err := s.ledger.Mark(ctx, g.ID, playerID, ttl)
			if err != nil {
				rep.Failed++
				e.logger.Warn("reminder ledger unavailable",
					zap.String("game_id", g.ID),
					zap.Uint64("player_id", playerID),
					zap.Error(err))
				continue
			}
			if !first {
				rep.Skipped++
				continue
			}
			p := pending[playerID]
			ok = e.notify(ctx, queue.NotificationEvent{
				Type:           queue.EventPaymentReminder,
				GameID:         g.ID,
				GameName:       g.Name,
				RecipientID:    u.ID,
				RecipientEmail: u.Email,
				RecipientName:  u.DisplayName(),
				SquareCount:    p.squares,
				HoursRemaining: p.hoursRemaining,
				Link:           e.gameLink(g),
			})
			if !ok {
				rep.Failed++
				continue
			}
			rep.Sent++
		}
	}
	e.metrics.NotificationsQueued(string(queue.EventPaymentReminder), rep.Sent)
	return rep, nil
}

// dueReminders groups reserved squares inside the reminder window by
// player.  The order slice keeps players in first-seen order.
func dueReminders(squares []model.Square, ttlHours int, now time.Time) (map[uint64]pendingReminder, []uint64) {
	pending := map[uint64]pendingReminder{}
	var order []uint64
	for _, sq := range squares {
		if sq.Status != model.SquareReserved || sq.PlayerID == nil || sq.ReservedAt == nil {
			continue
		}
		h := hoursUntilExpiry(*sq.ReservedAt, ttlHours, now)
		if h < reminderMinHours || h > reminderMaxHours {
			continue
		}
		id := *sq.PlayerID
		p, ok := pending[id]
		if !ok {
			order = append(order, id)
			p.hoursRemaining = h
		}
		p.squares++
		if h < p.hoursRemaining {
			p.hoursRemaining = h
		}
		pending[id] = p
	}
	return pending, order
}
