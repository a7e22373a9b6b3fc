package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cristianortiz/carauction/internal/auction/domain"
	"github.com/google/uuid"
)

// AuctionRepository is a concurrency-safe in-memory domain.AuctionRepository.
// It stores and hands out deep copies, so callers never share state with it.
type AuctionRepository struct {
	mu       sync.RWMutex
	auctions map[uuid.UUID]*domain.Auction
}

func NewAuctionRepository() *AuctionRepository {
	return &AuctionRepository{auctions: make(map[uuid.UUID]*domain.Auction)}
}

func (r *AuctionRepository) Create(_ context.Context, a *domain.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.auctions[a.ID]; ok {
		return fmt.Errorf("create auction %s: already exists", a.ID)
	}
	r.auctions[a.ID] = a.Clone()
	return nil
}

func (r *AuctionRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.auctions[id]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	return a.Clone(), nil
}

func (r *AuctionRepository) Update(_ context.Context, a *domain.Auction, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.auctions[a.ID]
	if !ok {
		return domain.ErrAuctionNotFound
	}
	if stored.Version != expectedVersion {
		return domain.ErrConcurrentModification
	}
	r.auctions[a.ID] = a.Clone()
	return nil
}

func (r *AuctionRepository) ListActive(_ context.Context) ([]*domain.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Auction
	for _, a := range r.auctions {
		if a.Status == domain.StatusActive {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out, nil
}

func (r *AuctionRepository) ListExpired(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []uuid.UUID
	for id, a := range r.auctions {
		if a.Status == domain.StatusActive && !a.EndTime.After(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
