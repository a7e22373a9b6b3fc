package application

import (
	"context"
	"fmt"
	"time"

	"github.com/cristianortiz/carauction/internal/auction/domain"
	"github.com/cristianortiz/carauction/internal/shared/clock"
	"github.com/cristianortiz/carauction/internal/shared/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CloseAuctionUseCase resolves an ACTIVE auction to SOLD or ENDED. It takes
// the same per-auction lock as bidding, so a bid that was validated before the
// close committed is kept and every bid after it fails with ErrAuctionNotActive.
type CloseAuctionUseCase struct {
	mutator  *AuctionMutator
	notifier Notifier
}

func NewCloseAuctionUseCase(mutator *AuctionMutator, notifier Notifier) *CloseAuctionUseCase {
	return &CloseAuctionUseCase{mutator: mutator, notifier: notifierOrNop(notifier)}
}

// Execute closes the auction at now regardless of its end time.
// A terminal auction yields domain.ErrAlreadyClosed.
func (uc *CloseAuctionUseCase) Execute(ctx context.Context, auctionID uuid.UUID, now time.Time) (*domain.Auction, error) {
	a, err := uc.mutator.mutate(ctx, auctionID, func(a *domain.Auction) error {
		return a.Close(now)
	})
	if err != nil {
		return nil, fmt.Errorf("close auction use case: auction %s: %w", auctionID, err)
	}

	metrics.AuctionsClosed.WithLabelValues(string(a.Status)).Inc()
	uc.notifier.AuctionChanged(ctx, a)
	return a, nil
}

// CancelAuctionUseCase is the admin transition ACTIVE -> CANCELLED.
type CancelAuctionUseCase struct {
	mutator  *AuctionMutator
	clock    clock.Clock
	notifier Notifier
}

func NewCancelAuctionUseCase(mutator *AuctionMutator, clk clock.Clock, notifier Notifier) *CancelAuctionUseCase {
	return &CancelAuctionUseCase{mutator: mutator, clock: clk, notifier: notifierOrNop(notifier)}
}

func (uc *CancelAuctionUseCase) Execute(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, error) {
	a, err := uc.mutator.mutate(ctx, auctionID, func(a *domain.Auction) error {
		return a.Cancel(uc.clock.Now())
	})
	if err != nil {
		log.Warn("CancelAuctionUseCase: cancel failed",
			zap.String("auctionID", auctionID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("cancel auction use case: auction %s: %w", auctionID, err)
	}

	metrics.AuctionsClosed.WithLabelValues(string(a.Status)).Inc()
	uc.notifier.AuctionChanged(ctx, a)
	return a, nil
}
