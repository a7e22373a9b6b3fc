package domain

import (
	"fmt"
	"time"

	"github.com/cristianortiz/carauction/internal/shared/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Status is the lifecycle state of an auction. Every status other than
// StatusActive is terminal.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusEnded     Status = "ENDED"
	StatusCancelled Status = "CANCELLED"
	StatusSold      Status = "SOLD"
)

func (s Status) IsTerminal() bool {
	return s != StatusActive
}

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusEnded, StatusCancelled, StatusSold:
		return true
	}
	return false
}

// Auction is the aggregate for one bidding process on one car. Bids is the
// append-only history, highest (and most recent) first.
//
// An Auction carries no lock of its own: callers serialize mutations per
// auction id and persist with a compare-and-swap on Version.
type Auction struct {
	ID            uuid.UUID
	CarID         uuid.UUID
	StartingPrice decimal.Decimal
	CurrentPrice  decimal.Decimal
	MinIncrement  decimal.Decimal
	ReservePrice  decimal.NullDecimal
	Status        Status
	EndTime       time.Time
	BidCount      int
	Bids          []*Bid
	WinnerPhone   string // masked, set only when SOLD
	CreatedAt     time.Time
	UpdatedAt     time.Time
	// Version grows by one on every committed mutation.
	Version int64
}

// MoneyScale is the number of decimal places money amounts are stored with.
const MoneyScale = 2

// validMoney reports whether d fits MoneyScale without rounding.
func validMoney(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale))
}

// NewAuctionParams is the creation input for NewAuction.
type NewAuctionParams struct {
	CarID         uuid.UUID
	StartingPrice decimal.Decimal
	MinIncrement  decimal.Decimal
	ReservePrice  decimal.NullDecimal
	EndTime       time.Time
}

// NewAuction validates p and returns an ACTIVE auction priced at its starting price.
func NewAuction(id uuid.UUID, p NewAuctionParams, now time.Time) (*Auction, error) {
	if p.CarID == uuid.Nil {
		return nil, &ValidationError{Field: "car_id", Reason: "is required"}
	}
	if !p.StartingPrice.IsPositive() {
		return nil, &ValidationError{Field: "starting_price", Reason: "must be positive"}
	}
	if !validMoney(p.StartingPrice) {
		return nil, &ValidationError{Field: "starting_price", Reason: "at most 2 decimal places"}
	}
	if !p.MinIncrement.IsPositive() {
		return nil, &ValidationError{Field: "min_increment", Reason: "must be positive"}
	}
	if !validMoney(p.MinIncrement) {
		return nil, &ValidationError{Field: "min_increment", Reason: "at most 2 decimal places"}
	}
	if p.ReservePrice.Valid && !validMoney(p.ReservePrice.Decimal) {
		return nil, &ValidationError{Field: "reserve_price", Reason: "at most 2 decimal places"}
	}
	if p.ReservePrice.Valid && p.ReservePrice.Decimal.LessThan(p.StartingPrice) {
		return nil, &ValidationError{Field: "reserve_price", Reason: "cannot be lower than starting price"}
	}
	if !p.EndTime.After(now) {
		return nil, &ValidationError{Field: "end_time", Reason: "must be in the future"}
	}

	return &Auction{
		ID:            id,
		CarID:         p.CarID,
		StartingPrice: p.StartingPrice,
		CurrentPrice:  p.StartingPrice,
		MinIncrement:  p.MinIncrement,
		ReservePrice:  p.ReservePrice,
		Status:        StatusActive,
		EndTime:       p.EndTime,
		Bids:          []*Bid{},
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}, nil
}

// MinimumBid is the smallest amount the next bid may offer.
func (a *Auction) MinimumBid() decimal.Decimal {
	return a.CurrentPrice.Add(a.MinIncrement)
}

// ReserveMet reports whether the current price satisfies the reserve, if any.
func (a *Auction) ReserveMet() bool {
	return !a.ReservePrice.Valid || a.CurrentPrice.GreaterThanOrEqual(a.ReservePrice.Decimal)
}

// TopBid returns the highest bid or nil when there are none.
func (a *Auction) TopBid() *Bid {
	if len(a.Bids) == 0 {
		return nil
	}
	return a.Bids[0]
}

// PlaceBid validates in and, when it passes, records it as the new highest bid.
// On error the auction is left untouched.
func (a *Auction) PlaceBid(bidID uuid.UUID, in BidInput, now time.Time) (*Bid, error) {
	if err := ValidateBid(a, now, in); err != nil {
		return nil, err
	}

	bid := NewBid(bidID, a.ID, in, now)
	bids := make([]*Bid, 0, len(a.Bids)+1)
	bids = append(bids, bid)
	a.Bids = append(bids, a.Bids...)
	a.CurrentPrice = bid.Amount
	a.BidCount++
	a.touch(now)

	log.Debug("Bid applied to auction",
		zap.String("auctionID", a.ID.String()),
		zap.String("bidID", bid.ID.String()),
		zap.String("amount", bid.Amount.String()),
		zap.Int("bidCount", a.BidCount),
	)
	return bid, nil
}

// Close resolves an active auction: SOLD when it has bids and the reserve is
// met, ENDED otherwise.
func (a *Auction) Close(now time.Time) error {
	if a.Status.IsTerminal() {
		return ErrAlreadyClosed
	}

	if top := a.TopBid(); top != nil && a.ReserveMet() {
		a.Status = StatusSold
		a.WinnerPhone = top.MaskedPhone
	} else {
		a.Status = StatusEnded
	}
	a.touch(now)

	log.Info("Auction closed",
		zap.String("auctionID", a.ID.String()),
		zap.String("status", string(a.Status)),
		zap.String("finalPrice", a.CurrentPrice.String()),
		zap.Int("bidCount", a.BidCount),
	)
	return nil
}

// Cancel moves an active auction to CANCELLED.
func (a *Auction) Cancel(now time.Time) error {
	if a.Status.IsTerminal() {
		return &InvalidTransitionError{From: a.Status, To: StatusCancelled}
	}
	a.Status = StatusCancelled
	a.touch(now)

	log.Info("Auction cancelled", zap.String("auctionID", a.ID.String()))
	return nil
}

func (a *Auction) touch(now time.Time) {
	a.UpdatedAt = now
	a.Version++
}

// Clone returns a deep copy that shares nothing mutable with a.
func (a *Auction) Clone() *Auction {
	c := *a
	c.Bids = make([]*Bid, len(a.Bids))
	for i, b := range a.Bids {
		bc := *b
		c.Bids[i] = &bc
	}
	return &c
}

// CheckInvariants returns the first broken aggregate invariant, if any.
func (a *Auction) CheckInvariants() error {
	if a.CurrentPrice.LessThan(a.StartingPrice) {
		return fmt.Errorf("current price %s below starting price %s", a.CurrentPrice, a.StartingPrice)
	}
	if a.ReservePrice.Valid && a.ReservePrice.Decimal.LessThan(a.StartingPrice) {
		return fmt.Errorf("reserve price %s below starting price %s", a.ReservePrice.Decimal, a.StartingPrice)
	}
	if a.BidCount != len(a.Bids) {
		return fmt.Errorf("bid count %d does not match %d bids", a.BidCount, len(a.Bids))
	}
	if len(a.Bids) > 0 && !a.Bids[0].Amount.Equal(a.CurrentPrice) {
		return fmt.Errorf("top bid %s does not match current price %s", a.Bids[0].Amount, a.CurrentPrice)
	}
	for i := 1; i < len(a.Bids); i++ {
		if !a.Bids[i-1].Amount.GreaterThan(a.Bids[i].Amount) {
			return fmt.Errorf("bids not strictly descending at position %d", i)
		}
	}
	if a.Status == StatusSold && a.WinnerPhone == "" {
		return fmt.Errorf("sold auction without winner")
	}
	if a.Status != StatusSold && a.WinnerPhone != "" {
		return fmt.Errorf("winner set on %s auction", a.Status)
	}
	return nil
}
