package application

import (
	"context"
	"errors"
	"time"

	"github.com/cristianortiz/carauction/internal/auction/domain"
	"github.com/cristianortiz/carauction/internal/shared/clock"
	"go.uber.org/zap"
)

// Sweeper periodically closes ACTIVE auctions whose end time has passed.
type Sweeper struct {
	repo     domain.AuctionRepository
	closeUC  *CloseAuctionUseCase
	clock    clock.Clock
	interval time.Duration
}

func NewSweeper(repo domain.AuctionRepository, closeUC *CloseAuctionUseCase, clk clock.Clock, interval time.Duration) *Sweeper {
	return &Sweeper{repo: repo, closeUC: closeUC, clock: clk, interval: interval}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	log.Info("Auction sweeper started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Auction sweeper stopped")
			return nil
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				log.Error("Auction sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce closes every expired ACTIVE auction and returns how many it closed.
// An auction closed concurrently by an admin is skipped. Errors on single
// auctions are logged and do not stop the sweep.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.clock.Now()
	ids, err := s.repo.ListExpired(ctx, now)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, id := range ids {
		a, err := s.closeUC.Execute(ctx, id, now)
		switch {
		case err == nil:
			closed++
			log.Info("Expired auction closed",
				zap.String("auctionID", id.String()),
				zap.String("status", string(a.Status)),
			)
		case errors.Is(err, domain.ErrAlreadyClosed):
			log.Debug("Auction already closed, skipping", zap.String("auctionID", id.String()))
		default:
			log.Error("Failed to close expired auction",
				zap.String("auctionID", id.String()),
				zap.Error(err),
			)
		}
	}
	return closed, nil
}
