package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cristianortiz/carauction/internal/auction/domain"
	cardomain "github.com/cristianortiz/carauction/internal/car/domain"
	"github.com/cristianortiz/carauction/internal/shared/clock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateAuctionDTO is the input DTO for CreateAuctionUseCase.
type CreateAuctionDTO struct {
	CarID         uuid.UUID
	StartingPrice decimal.Decimal
	MinIncrement  decimal.Decimal
	ReservePrice  decimal.NullDecimal
	EndTime       time.Time
}

// CreateAuctionUseCase opens a new ACTIVE auction for a car.
type CreateAuctionUseCase struct {
	repo    domain.AuctionRepository
	catalog cardomain.Catalog
	clock   clock.Clock
}

// NewCreateAuctionUseCase creates the use case. catalog may be nil, in which
// case car ids are not checked.
func NewCreateAuctionUseCase(repo domain.AuctionRepository, catalog cardomain.Catalog, clk clock.Clock) *CreateAuctionUseCase {
	return &CreateAuctionUseCase{repo: repo, catalog: catalog, clock: clk}
}

func (uc *CreateAuctionUseCase) Execute(ctx context.Context, cmd CreateAuctionDTO) (*domain.Auction, error) {
	if uc.catalog != nil && cmd.CarID != uuid.Nil {
		if _, err := uc.catalog.GetByID(ctx, cmd.CarID); err != nil {
			if errors.Is(err, cardomain.ErrCarNotFound) {
				return nil, &domain.ValidationError{Field: "car_id", Reason: "unknown car"}
			}
			return nil, fmt.Errorf("create auction use case: car lookup %s: %w", cmd.CarID, err)
		}
	}

	a, err := domain.NewAuction(uuid.New(), domain.NewAuctionParams{
		CarID:         cmd.CarID,
		StartingPrice: cmd.StartingPrice,
		MinIncrement:  cmd.MinIncrement,
		ReservePrice:  cmd.ReservePrice,
		EndTime:       cmd.EndTime,
	}, uc.clock.Now())
	if err != nil {
		log.Warn("CreateAuctionUseCase: invalid input",
			zap.String("carID", cmd.CarID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	if err := uc.repo.Create(ctx, a); err != nil {
		log.Error("CreateAuctionUseCase: failed to save auction",
			zap.String("auctionID", a.ID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("create auction use case: failed to save auction: %w", err)
	}

	log.Info("Auction created",
		zap.String("auctionID", a.ID.String()),
		zap.String("carID", a.CarID.String()),
		zap.String("startingPrice", a.StartingPrice.String()),
		zap.Time("endTime", a.EndTime),
	)
	return a, nil
}
