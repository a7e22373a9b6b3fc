package application

import (
	"errors"

	"github.com/cristianortiz/carauction/internal/auction/domain"
	"github.com/cristianortiz/carauction/internal/shared/lock"
)

// IsRetryable reports whether err is transient, so the same request may
// succeed if sent again: a lost optimistic commit or a lock wait that timed out.
func IsRetryable(err error) bool {
	return errors.Is(err, domain.ErrConcurrentModification) || errors.Is(err, lock.ErrLockTimeout)
}

// bidResult is the metrics label for a PlaceBid outcome.
func bidResult(err error) string {
	var vErr *domain.ValidationError
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, domain.ErrBidTooLow):
		return "too_low"
	case errors.Is(err, domain.ErrAuctionNotActive):
		return "not_active"
	case errors.Is(err, domain.ErrAuctionExpired):
		return "expired"
	case errors.Is(err, domain.ErrMissingBidderName), errors.Is(err, domain.ErrInvalidPhoneNumber), errors.As(err, &vErr):
		return "invalid_input"
	case errors.Is(err, domain.ErrAuctionNotFound):
		return "not_found"
	case IsRetryable(err):
		return "conflict"
	default:
		return "error"
	}
}

// Error codes shared by the HTTP and websocket transports.
const (
	CodeValidation        = "validation_error"
	CodeMissingBidderName = "missing_bidder_name"
	CodeInvalidPhone      = "invalid_phone_number"
	CodeBidTooLow         = "bid_too_low"
	CodeNotActive         = "auction_not_active"
	CodeExpired           = "auction_expired"
	CodeAlreadyClosed     = "already_closed"
	CodeInvalidTransition = "invalid_transition"
	CodeNotFound          = "auction_not_found"
	CodeConflict          = "conflict"
	CodeRateLimited       = "rate_limited"
	CodeInternal          = "internal_error"
)

// ErrorCode classifies err for clients.
func ErrorCode(err error) string {
	var (
		vErr  *domain.ValidationError
		trErr *domain.InvalidTransitionError
	)
	switch {
	case errors.Is(err, domain.ErrMissingBidderName):
		return CodeMissingBidderName
	case errors.Is(err, domain.ErrInvalidPhoneNumber):
		return CodeInvalidPhone
	case errors.As(err, &vErr):
		return CodeValidation
	case errors.Is(err, domain.ErrBidTooLow):
		return CodeBidTooLow
	case errors.Is(err, domain.ErrAuctionNotActive):
		return CodeNotActive
	case errors.Is(err, domain.ErrAuctionExpired):
		return CodeExpired
	case errors.Is(err, domain.ErrAlreadyClosed):
		return CodeAlreadyClosed
	case errors.As(err, &trErr):
		return CodeInvalidTransition
	case errors.Is(err, domain.ErrAuctionNotFound):
		return CodeNotFound
	case IsRetryable(err):
		return CodeConflict
	default:
		return CodeInternal
	}
}
