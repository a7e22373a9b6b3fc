package application

import (
	"context"
	"errors"
	"time"

	"github.com/cristianortiz/carauction/internal/auction/domain"
	cardomain "github.com/cristianortiz/carauction/internal/car/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BidView is the public form of a bid. Only the masked phone is exposed.
type BidView struct {
	ID          uuid.UUID       `json:"id"`
	BidderName  string          `json:"bidder_name"`
	MaskedPhone string          `json:"masked_phone"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

// CarView is display metadata taken from the car catalog.
type CarView struct {
	ID    uuid.UUID `json:"id"`
	Make  string    `json:"make"`
	Model string    `json:"model"`
	Year  int       `json:"year"`
	Title string    `json:"title"`
}

// AuctionView is the output DTO for exposing auction state to the UI/WS.
// The reserve amount stays private; clients only learn whether it is met.
type AuctionView struct {
	ID            uuid.UUID       `json:"id"`
	CarID         uuid.UUID       `json:"car_id"`
	Car           *CarView        `json:"car,omitempty"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	MinIncrement  decimal.Decimal `json:"min_increment"`
	MinimumBid    decimal.Decimal `json:"minimum_bid"`
	HasReserve    bool            `json:"has_reserve"`
	ReserveMet    bool            `json:"reserve_met"`
	Status        string          `json:"status"`
	EndTime       time.Time       `json:"end_time"`
	BidCount      int             `json:"bid_count"`
	Bids          []BidView       `json:"bids"`
	WinnerPhone   string          `json:"winner_phone,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	// Version grows with every committed change. Updates can reach a
	// subscriber out of order, so clients drop any view older than the one
	// they hold.
	Version int64 `json:"version"`
}

// NewAuctionView projects a onto its public form.
func NewAuctionView(a *domain.Auction) *AuctionView {
	v := &AuctionView{
		ID:            a.ID,
		CarID:         a.CarID,
		StartingPrice: a.StartingPrice,
		CurrentPrice:  a.CurrentPrice,
		MinIncrement:  a.MinIncrement,
		MinimumBid:    a.MinimumBid(),
		HasReserve:    a.ReservePrice.Valid,
		ReserveMet:    a.ReserveMet(),
		Status:        string(a.Status),
		EndTime:       a.EndTime,
		BidCount:      a.BidCount,
		Bids:          make([]BidView, 0, len(a.Bids)),
		WinnerPhone:   a.WinnerPhone,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
		Version:       a.Version,
	}
	for _, b := range a.Bids {
		v.Bids = append(v.Bids, BidView{
			ID:          b.ID,
			BidderName:  b.BidderName,
			MaskedPhone: b.MaskedPhone,
			Amount:      b.Amount,
			CreatedAt:   b.CreatedAt,
		})
	}
	return v
}

// GetAuctionUseCase reads auctions for display. It takes no lock; the result
// may trail a commit that is in flight.
type GetAuctionUseCase struct {
	repo    domain.AuctionRepository
	catalog cardomain.Catalog
}

// NewGetAuctionUseCase creates a new instance of GetAuctionUseCase. catalog may be nil.
func NewGetAuctionUseCase(repo domain.AuctionRepository, catalog cardomain.Catalog) *GetAuctionUseCase {
	return &GetAuctionUseCase{repo: repo, catalog: catalog}
}

func (uc *GetAuctionUseCase) Execute(ctx context.Context, auctionID uuid.UUID) (*AuctionView, error) {
	a, err := uc.repo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	v := NewAuctionView(a)
	v.Car = uc.lookupCar(ctx, a.CarID)
	return v, nil
}

// ListActive returns every ACTIVE auction, soonest end time first.
func (uc *GetAuctionUseCase) ListActive(ctx context.Context) ([]*AuctionView, error) {
	auctions, err := uc.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]*AuctionView, 0, len(auctions))
	for _, a := range auctions {
		v := NewAuctionView(a)
		v.Car = uc.lookupCar(ctx, a.CarID)
		views = append(views, v)
	}
	return views, nil
}

// lookupCar is best effort: the auction is still shown when the catalog is
// unavailable or the car was removed.
func (uc *GetAuctionUseCase) lookupCar(ctx context.Context, carID uuid.UUID) *CarView {
	if uc.catalog == nil {
		return nil
	}
	car, err := uc.catalog.GetByID(ctx, carID)
	if err != nil {
		if !errors.Is(err, cardomain.ErrCarNotFound) {
			log.Warn("GetAuctionUseCase: car lookup failed",
				zap.String("carID", carID.String()),
				zap.Error(err),
			)
		}
		return nil
	}
	return &CarView{
		ID:    car.ID,
		Make:  car.Make,
		Model: car.Model,
		Year:  car.Year,
		Title: car.Title,
	}
}
