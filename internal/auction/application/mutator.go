package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/cristianortiz/carauction/internal/auction/domain"
	"github.com/cristianortiz/carauction/internal/shared/lock"
	"github.com/cristianortiz/carauction/internal/shared/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuctionMutator runs read-modify-write cycles on one auction while holding
// that auction's lock. The repository commit is a compare-and-swap on
// Version; a lost swap reloads the auction and runs the change again, up to
// maxRetries extra times.
type AuctionMutator struct {
	repo       domain.AuctionRepository
	locker     lock.Locker
	maxRetries int
}

func NewAuctionMutator(repo domain.AuctionRepository, locker lock.Locker, maxRetries int) *AuctionMutator {
	return &AuctionMutator{repo: repo, locker: locker, maxRetries: maxRetries}
}

// mutate loads the auction, applies change and commits it. When change fails
// nothing is written and its error is returned as is.
func (m *AuctionMutator) mutate(ctx context.Context, id uuid.UUID, change func(a *domain.Auction) error) (*domain.Auction, error) {
	unlock, err := m.locker.Lock(ctx, id.String())
	if err != nil {
		log.Warn("Failed to acquire auction lock",
			zap.String("auctionID", id.String()),
			zap.Error(err),
		)
		return nil, err
	}
	defer unlock()

	for attempt := 0; ; attempt++ {
		a, err := m.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		expected := a.Version
		if err := change(a); err != nil {
			return nil, err
		}

		err = m.repo.Update(ctx, a, expected)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, domain.ErrConcurrentModification) {
			return nil, fmt.Errorf("failed to save auction: %w", err)
		}
		if attempt >= m.maxRetries {
			log.Warn("Giving up after concurrent modifications",
				zap.String("auctionID", id.String()),
				zap.Int("attempts", attempt+1),
			)
			return nil, err
		}

		metrics.CommitRetries.Inc()
		log.Debug("Concurrent modification, retrying",
			zap.String("auctionID", id.String()),
			zap.Int64("expectedVersion", expected),
			zap.Int("attempt", attempt+1),
		)
	}
}
