package application

import (
	"context"
	"fmt"
	"time"

	"github.com/cristianortiz/carauction/internal/auction/domain"
	"github.com/cristianortiz/carauction/internal/shared/clock"
	"github.com/cristianortiz/carauction/internal/shared/logger"
	"github.com/cristianortiz/carauction/internal/shared/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// PlaceBidUseCase accepts a bid on one auction. Validation and commit run as
// one unit under the auction's lock, so two bidders can never both be judged
// against the same current price.
type PlaceBidUseCase struct {
	mutator  *AuctionMutator
	clock    clock.Clock
	notifier Notifier
}

func NewPlaceBidUseCase(mutator *AuctionMutator, clk clock.Clock, notifier Notifier) *PlaceBidUseCase {
	return &PlaceBidUseCase{
		mutator:  mutator,
		clock:    clk,
		notifier: notifierOrNop(notifier),
	}
}

// Execute validates in against the auction as of now (read after the lock is
// held) and commits the bid. Validation errors come back unwrapped enough for
// errors.Is/As and nothing is written.
func (uc *PlaceBidUseCase) Execute(ctx context.Context, auctionID uuid.UUID, in domain.BidInput) (*domain.Auction, error) {
	start := time.Now()
	log.Info("Executing PlaceBidUseCase",
		zap.String("auctionID", auctionID.String()),
		zap.String("amount", in.Amount.String()),
	)

	var bid *domain.Bid
	a, err := uc.mutator.mutate(ctx, auctionID, func(a *domain.Auction) error {
		var err error
		bid, err = a.PlaceBid(uuid.New(), in, uc.clock.Now())
		return err
	})

	metrics.PlaceBidDuration.Observe(time.Since(start).Seconds())
	metrics.BidsTotal.WithLabelValues(bidResult(err)).Inc()

	if err != nil {
		log.Warn("PlaceBidUseCase: bid rejected",
			zap.String("auctionID", auctionID.String()),
			zap.String("amount", in.Amount.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("place bid use case: auction %s: %w", auctionID, err)
	}

	log.Info("Bid placed successfully",
		zap.String("auctionID", a.ID.String()),
		zap.String("bidID", bid.ID.String()),
		zap.String("maskedPhone", bid.MaskedPhone),
		zap.String("newCurrentPrice", a.CurrentPrice.String()),
		zap.Int("bidCount", a.BidCount),
	)
	uc.notifier.AuctionChanged(ctx, a)
	return a, nil
}
