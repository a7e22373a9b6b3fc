package httpapi

import (
	"errors"

	"github.com/cristianortiz/carauction/internal/auction/application"
	"github.com/cristianortiz/carauction/internal/auction/domain"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type errorResponse struct {
	Code            string `json:"code"`
	Error           string `json:"error"`
	Field           string `json:"field,omitempty"`
	MinimumRequired string `json:"minimum_required,omitempty"`
	// Auction is the current state, sent when closing an already closed auction.
	Auction *application.AuctionView `json:"auction,omitempty"`
}

func statusFor(code string) int {
	switch code {
	case application.CodeValidation, application.CodeMissingBidderName, application.CodeInvalidPhone:
		return fiber.StatusBadRequest
	case application.CodeBidTooLow:
		return fiber.StatusUnprocessableEntity
	case application.CodeNotActive, application.CodeExpired, application.CodeAlreadyClosed, application.CodeInvalidTransition:
		return fiber.StatusConflict
	case application.CodeNotFound:
		return fiber.StatusNotFound
	case application.CodeConflict:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError maps a use case error onto its HTTP response.
func writeError(c *fiber.Ctx, err error) error {
	return writeErrorWithState(c, err, nil)
}

// writeErrorWithState is writeError with the auction's current state attached.
func writeErrorWithState(c *fiber.Ctx, err error, view *application.AuctionView) error {
	code := application.ErrorCode(err)
	status := statusFor(code)
	resp := errorResponse{Code: code, Error: err.Error(), Auction: view}

	var (
		vErr   *domain.ValidationError
		tooLow *domain.BidTooLowError
	)
	if errors.As(err, &vErr) {
		resp.Field = vErr.Field
	}
	if errors.As(err, &tooLow) {
		resp.MinimumRequired = tooLow.MinimumRequired.String()
	}

	switch status {
	case fiber.StatusServiceUnavailable:
		c.Set(fiber.HeaderRetryAfter, "1")
	case fiber.StatusInternalServerError:
		log.Error("Request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		resp.Error = "internal error"
	}
	return c.Status(status).JSON(resp)
}

func badRequest(c *fiber.Ctx, field, reason string) error {
	return writeError(c, &domain.ValidationError{Field: field, Reason: reason})
}
