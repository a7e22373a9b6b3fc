package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bid is one accepted bid. Bids are never changed or removed once committed;
// the raw phone number never reaches this struct.
type Bid struct {
	ID          uuid.UUID
	AuctionID   uuid.UUID
	BidderName  string
	MaskedPhone string
	Amount      decimal.Decimal
	CreatedAt   time.Time
}

// BidInput is the fixed-shape bid request checked by ValidateBid.
type BidInput struct {
	BidderName  string
	PhoneNumber string
	Amount      decimal.Decimal
}

// NewBid creates a new Bid from validated input, masking the phone number.
func NewBid(id, auctionID uuid.UUID, in BidInput, createdAt time.Time) *Bid {
	return &Bid{
		ID:          id,
		AuctionID:   auctionID,
		BidderName:  trimmedName(in.BidderName),
		MaskedPhone: MaskPhone(in.PhoneNumber),
		Amount:      in.Amount,
		CreatedAt:   createdAt,
	}
}
