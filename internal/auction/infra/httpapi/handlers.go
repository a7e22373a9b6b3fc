// Package httpapi exposes the auction use cases over REST.
package httpapi

import (
	"errors"
	"strings"
	"time"

	"github.com/cristianortiz/carauction/internal/auction/application"
	"github.com/cristianortiz/carauction/internal/auction/domain"
	"github.com/cristianortiz/carauction/internal/shared/clock"
	"github.com/cristianortiz/carauction/internal/shared/logger"
	"github.com/cristianortiz/carauction/internal/shared/ratelimit"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var log = logger.GetLogger()

type AuctionHandler struct {
	service application.AuctionService
	clock   clock.Clock
	// bidLimiter is shared with the websocket handler; nil disables it.
	bidLimiter *ratelimit.Limiter
}

func NewAuctionHandler(service application.AuctionService, clk clock.Clock, bidLimiter *ratelimit.Limiter) *AuctionHandler {
	return &AuctionHandler{service: service, clock: clk, bidLimiter: bidLimiter}
}

// createAuctionRequest carries money as decimal strings.
type createAuctionRequest struct {
	CarID         string    `json:"car_id"`
	StartingPrice string    `json:"starting_price"`
	MinIncrement  string    `json:"min_increment"`
	ReservePrice  *string   `json:"reserve_price"`
	EndTime       time.Time `json:"end_time"`
}

type placeBidRequest struct {
	BidderName  string `json:"bidder_name"`
	PhoneNumber string `json:"phone_number"`
	Amount      string `json:"amount"`
}

type placeBidResponse struct {
	Bid     application.BidView      `json:"bid"`
	Auction *application.AuctionView `json:"auction"`
}

func (h *AuctionHandler) RegisterRoutes(r fiber.Router) {
	api := r.Group("/api/auctions")
	api.Post("/", h.createAuction)
	api.Get("/", h.listActive)
	api.Get("/:id", h.getAuction)
	api.Post("/:id/bids", RateLimit(h.bidLimiter), h.placeBid)
	api.Post("/:id/close", h.closeAuction)
	api.Post("/:id/cancel", h.cancelAuction)
}

func (h *AuctionHandler) createAuction(c *fiber.Ctx) error {
	var req createAuctionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body", "malformed JSON")
	}

	carID, err := uuid.Parse(req.CarID)
	if err != nil {
		return badRequest(c, "car_id", "must be a UUID")
	}
	starting, ok := parseAmount(req.StartingPrice)
	if !ok {
		return badRequest(c, "starting_price", "must be a decimal number")
	}
	increment, ok := parseAmount(req.MinIncrement)
	if !ok {
		return badRequest(c, "min_increment", "must be a decimal number")
	}
	var reserve decimal.NullDecimal
	if req.ReservePrice != nil {
		r, ok := parseAmount(*req.ReservePrice)
		if !ok {
			return badRequest(c, "reserve_price", "must be a decimal number")
		}
		reserve = decimal.NewNullDecimal(r)
	}

	a, err := h.service.CreateAuction(c.UserContext(), application.CreateAuctionDTO{
		CarID:         carID,
		StartingPrice: starting,
		MinIncrement:  increment,
		ReservePrice:  reserve,
		EndTime:       req.EndTime,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(application.NewAuctionView(a))
}

func (h *AuctionHandler) listActive(c *fiber.Ctx) error {
	views, err := h.service.ListActiveAuctions(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(views)
}

func (h *AuctionHandler) getAuction(c *fiber.Ctx) error {
	id, ok := auctionID(c)
	if !ok {
		return badRequest(c, "id", "must be a UUID")
	}
	view, err := h.service.GetAuction(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(view)
}

func (h *AuctionHandler) placeBid(c *fiber.Ctx) error {
	id, ok := auctionID(c)
	if !ok {
		return badRequest(c, "id", "must be a UUID")
	}
	var req placeBidRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body", "malformed JSON")
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		return badRequest(c, "amount", "must be a decimal number")
	}

	a, err := h.service.PlaceBid(c.UserContext(), id, domain.BidInput{
		BidderName:  req.BidderName,
		PhoneNumber: req.PhoneNumber,
		Amount:      amount,
	})
	if err != nil {
		return writeError(c, err)
	}

	view := application.NewAuctionView(a)
	return c.Status(fiber.StatusCreated).JSON(placeBidResponse{Bid: view.Bids[0], Auction: view})
}

func (h *AuctionHandler) closeAuction(c *fiber.Ctx) error {
	id, ok := auctionID(c)
	if !ok {
		return badRequest(c, "id", "must be a UUID")
	}
	a, err := h.service.CloseAuction(c.UserContext(), id, h.clock.Now())
	if errors.Is(err, domain.ErrAlreadyClosed) {
		view, gErr := h.service.GetAuction(c.UserContext(), id)
		if gErr != nil {
			return writeError(c, gErr)
		}
		return writeErrorWithState(c, err, view)
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(application.NewAuctionView(a))
}

func (h *AuctionHandler) cancelAuction(c *fiber.Ctx) error {
	id, ok := auctionID(c)
	if !ok {
		return badRequest(c, "id", "must be a UUID")
	}
	a, err := h.service.CancelAuction(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(application.NewAuctionView(a))
}

func auctionID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	return id, err == nil
}

func parseAmount(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
