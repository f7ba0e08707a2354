package grid

import (
	"context"
	"net/mail"
	"strings"

	"github.com/iliyamo/football-squares/internal/queue"
)

const maxInvitesPerCall = 50

// InvitePlayers queues one invite event per distinct address and returns
// how many were handed to the notifier.
func (e *Engine) InvitePlayers(ctx context.Context, gameID string, actorID uint64, emails []string) (int, error) {
	g, err := e.store.GetGame(ctx, gameID)
	if err != nil {
		return 0, err
	}
	caps, err := e.Capabilities(ctx, g, actorID)
	if err != nil {
		return 0, err
	}
	if !caps.CanManage() {
		return 0, ErrNotManager
	}
	addrs, err := normalizeEmails(emails)
	if err != nil {
		return 0, err
	}
	managerName := ""
	if users, err := e.store.GetUsers(ctx, []uint64{g.ManagerID}); err == nil {
		managerName = users[g.ManagerID].DisplayName()
	}
	sent := 0
	for _, addr := range addrs {
		if e.notify(ctx, queue.NotificationEvent{
			Type:           queue.EventInvite,
			GameID:         g.ID,
			GameName:       g.Name,
			RecipientEmail: addr,
			ManagerName:    managerName,
			Link:           e.joinLink(g),
		}) {
			sent++
		}
	}
	e.metrics.NotificationsQueued(string(queue.EventInvite), sent)
	return sent, nil
}

func normalizeEmails(in []string) ([]string, error) {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, raw := range in {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		a, err := mail.ParseAddress(raw)
		if err != nil {
			return nil, invalid("invalid email address %q", raw)
		}
		addr := strings.ToLower(a.Address)
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	if len(out) == 0 {
		return nil, invalid("at least one email address is required")
	}
	if len(out) > maxInvitesPerCall {
		return nil, invalid("at most %d invites per request", maxInvitesPerCall)
	}
	return out, nil
}
