package domain

import (
	"strings"
	"time"
)

// ValidateBid checks in against a snapshot of a and the time now. Checks run
// in a fixed order and the first failure is returned. It never mutates a.
func ValidateBid(a *Auction, now time.Time, in BidInput) error {
	if a.Status != StatusActive {
		return ErrAuctionNotActive
	}
	if !now.Before(a.EndTime) {
		return ErrAuctionExpired
	}
	if trimmedName(in.BidderName) == "" {
		return ErrMissingBidderName
	}
	if !validPhone(in.PhoneNumber) {
		return ErrInvalidPhoneNumber
	}
	if !validMoney(in.Amount) {
		return &ValidationError{Field: "amount", Reason: "at most 2 decimal places"}
	}
	if minimum := a.MinimumBid(); in.Amount.LessThan(minimum) {
		return &BidTooLowError{MinimumRequired: minimum}
	}
	return nil
}

func trimmedName(name string) string {
	return strings.TrimSpace(name)
}
