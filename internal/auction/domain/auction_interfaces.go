package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuctionRepository persists auctions together with their bid history.
//
// Update is a compare-and-swap: it stores a only if the stored version still
// equals expectedVersion, inserting any bids not yet persisted, and returns
// ErrConcurrentModification otherwise.
type AuctionRepository interface {
	Create(ctx context.Context, a *Auction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Auction, error)
	Update(ctx context.Context, a *Auction, expectedVersion int64) error
	ListActive(ctx context.Context) ([]*Auction, error)
	ListExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}
