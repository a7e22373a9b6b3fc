package application

import (
	"context"

	"github.com/cristianortiz/carauction/internal/auction/domain"
)

// Notifier is told about every committed auction change. It runs after the
// lock is released and must not block; delivery is best effort.
type Notifier interface {
	AuctionChanged(ctx context.Context, a *domain.Auction)
}

type nopNotifier struct{}

func (nopNotifier) AuctionChanged(context.Context, *domain.Auction) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
