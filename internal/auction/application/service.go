package application

import (
	"context"
	"time"

	"github.com/cristianortiz/carauction/internal/auction/domain"
	"github.com/google/uuid"
)

// AuctionService defines application interface layer of auction module
// exposes uses cases to external layer, aka infra
type AuctionService interface {
	CreateAuction(ctx context.Context, cmd CreateAuctionDTO) (*domain.Auction, error)
	// PlaceBid validates and commits a bid, returning the updated auction
	PlaceBid(ctx context.Context, auctionID uuid.UUID, in domain.BidInput) (*domain.Auction, error)
	// CloseAuction resolves the auction at now, whatever its end time
	CloseAuction(ctx context.Context, auctionID uuid.UUID, now time.Time) (*domain.Auction, error)
	CancelAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, error)
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*AuctionView, error)
	ListActiveAuctions(ctx context.Context) ([]*AuctionView, error)
}

// concret implementation of AuctionService (struct)
type auctionService struct {
	createUC *CreateAuctionUseCase
	placeUC  *PlaceBidUseCase
	closeUC  *CloseAuctionUseCase
	cancelUC *CancelAuctionUseCase
	getUC    *GetAuctionUseCase
}

func NewAuctionService(
	createUC *CreateAuctionUseCase,
	placeUC *PlaceBidUseCase,
	closeUC *CloseAuctionUseCase,
	cancelUC *CancelAuctionUseCase,
	getUC *GetAuctionUseCase,
) AuctionService {
	return &auctionService{
		createUC: createUC,
		placeUC:  placeUC,
		closeUC:  closeUC,
		cancelUC: cancelUC,
		getUC:    getUC,
	}
}

func (s *auctionService) CreateAuction(ctx context.Context, cmd CreateAuctionDTO) (*domain.Auction, error) {
	return s.createUC.Execute(ctx, cmd)
}

// PlaceBid implements AuctionService.
func (s *auctionService) PlaceBid(ctx context.Context, auctionID uuid.UUID, in domain.BidInput) (*domain.Auction, error) {
	return s.placeUC.Execute(ctx, auctionID, in)
}

func (s *auctionService) CloseAuction(ctx context.Context, auctionID uuid.UUID, now time.Time) (*domain.Auction, error) {
	return s.closeUC.Execute(ctx, auctionID, now)
}

func (s *auctionService) CancelAuction(ctx context.Context, auctionID uuid.UUID) (*domain.Auction, error) {
	return s.cancelUC.Execute(ctx, auctionID)
}

func (s *auctionService) GetAuction(ctx context.Context, auctionID uuid.UUID) (*AuctionView, error) {
	return s.getUC.Execute(ctx, auctionID)
}

func (s *auctionService) ListActiveAuctions(ctx context.Context) ([]*AuctionView, error) {
	return s.getUC.ListActive(ctx)
}
