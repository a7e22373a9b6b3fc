package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrAuctionNotFound        = errors.New("auction not found")
	ErrAuctionNotActive       = errors.New("auction is not active")
	ErrAuctionExpired         = errors.New("auction has expired")
	ErrMissingBidderName      = errors.New("bidder name is required")
	ErrInvalidPhoneNumber     = errors.New("phone number must have between 7 and 15 digits")
	ErrBidTooLow              = errors.New("bid amount is too low")
	ErrAlreadyClosed          = errors.New("auction is already closed")
	ErrConcurrentModification = errors.New("auction was modified concurrently")
)

// ValidationError rejects malformed auction creation input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// BidTooLowError carries the minimum acceptable amount so clients can show it.
// errors.Is(err, ErrBidTooLow) holds for it.
type BidTooLowError struct {
	MinimumRequired decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("%s: minimum required is %s", ErrBidTooLow, e.MinimumRequired.StringFixed(2))
}

func (e *BidTooLowError) Is(target error) bool {
	return target == ErrBidTooLow
}

// InvalidTransitionError reports a lifecycle transition out of a terminal status.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid auction transition from %s to %s", e.From, e.To)
}
