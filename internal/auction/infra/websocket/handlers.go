package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/cristianortiz/carauction/internal/auction/application"
	"github.com/cristianortiz/carauction/internal/auction/domain"
	"github.com/cristianortiz/carauction/internal/shared/logger"
	"github.com/cristianortiz/carauction/internal/shared/ratelimit"
	"github.com/cristianortiz/carauction/internal/shared/websocket"
	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// remoteIPKey carries the client IP from the upgrade request to the connection.
const remoteIPKey = "remote_ip"

// AuctionWSHandler serves the per-auction websocket feed and handles the
// auction messages clients send over it.
type AuctionWSHandler struct {
	auctionService application.AuctionService
	hub            *websocket.Hub
	// bidLimiter is shared with the REST handler; nil disables it.
	bidLimiter *ratelimit.Limiter
	// ctx bounds every connection; cancelling it closes them all.
	ctx context.Context
}

func NewAuctionWSHandler(ctx context.Context, auctionService application.AuctionService, hub *websocket.Hub, bidLimiter *ratelimit.Limiter) *AuctionWSHandler {
	return &AuctionWSHandler{
		auctionService: auctionService,
		hub:            hub,
		bidLimiter:     bidLimiter,
		ctx:            ctx,
	}
}

// RegisterRoutes mounts GET /ws/auctions/:id.
func (h *AuctionWSHandler) RegisterRoutes(r fiber.Router) {
	r.Use("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	r.Get("/ws/auctions/:id", func(c *fiber.Ctx) error {
		if _, err := uuid.Parse(c.Params("id")); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid auction id")
		}
		c.Locals(remoteIPKey, c.IP())
		return c.Next()
	}, fiberws.New(h.serveConn))
}

func (h *AuctionWSHandler) serveConn(conn *fiberws.Conn) {
	auctionID, _ := uuid.Parse(conn.Params("id"))
	ctx := h.ctx

	view, err := h.auctionService.GetAuction(ctx, auctionID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		_ = conn.Close()
		return
	}
	// nothing else writes to conn until WritePump starts
	if err := conn.WriteJSON(ServerAuctionMessage{
		BaseMessage: BaseMessage{Type: MessageTypeServerAuctionState},
		Payload:     view,
	}); err != nil {
		_ = conn.Close()
		return
	}

	client := h.hub.NewClient(conn, auctionID.String(), uuid.NewString())
	client.IP, _ = conn.Locals(remoteIPKey).(string)
	h.hub.RegisterClient(client)
	go client.WritePump(ctx)
	client.ReadPump(ctx, h.processMessage)
}

func (h *AuctionWSHandler) processMessage(ctx context.Context, client *websocket.Client, data []byte) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		h.send(client, validationMessage("invalid message format"))
		return
	}
	switch base.Type {
	case MessageTypeClientBid:
		h.handleClientBid(ctx, client, data)
	default:
		h.send(client, validationMessage("unknown message type"))
	}
}

func (h *AuctionWSHandler) handleClientBid(ctx context.Context, client *websocket.Client, data []byte) {
	if !h.bidLimiter.Allow(client.IP) {
		log.Warn("WebSocket bid rate limited", zap.String("clientID", client.ID), zap.String("ip", client.IP))
		m := ServerErrorMessage{BaseMessage: BaseMessage{Type: MessageTypeServerError}}
		m.Payload.Code = application.CodeRateLimited
		m.Payload.Error = "too many bids"
		h.send(client, m)
		return
	}

	var msg ClientBidMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.send(client, validationMessage("invalid bid message format"))
		return
	}
	auctionID, err := uuid.Parse(client.Room)
	if err != nil {
		h.send(client, validationMessage("invalid auction id"))
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(msg.Payload.Amount))
	if err != nil {
		h.send(client, validationMessage("amount must be a decimal number"))
		return
	}

	a, err := h.auctionService.PlaceBid(ctx, auctionID, domain.BidInput{
		BidderName:  msg.Payload.BidderName,
		PhoneNumber: msg.Payload.PhoneNumber,
		Amount:      amount,
	})
	if err != nil {
		h.send(client, errorMessage(err))
		return
	}

	// every subscriber, this client included, gets the update from the notifier
	ack := ServerBidAcceptedMessage{BaseMessage: BaseMessage{Type: MessageTypeServerBidAccepted}}
	top := a.TopBid()
	ack.Payload.BidID = top.ID.String()
	ack.Payload.Amount = top.Amount.String()
	h.send(client, ack)
}

// send goes through the hub so it never races with the hub closing client.Send.
func (h *AuctionWSHandler) send(client *websocket.Client, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("Failed to marshal ws message", zap.Error(err))
		return
	}
	h.hub.SendTo(client, data)
}

func validationMessage(reason string) ServerErrorMessage {
	m := ServerErrorMessage{BaseMessage: BaseMessage{Type: MessageTypeServerError}}
	m.Payload.Code = application.CodeValidation
	m.Payload.Error = reason
	return m
}

func errorMessage(err error) ServerErrorMessage {
	m := ServerErrorMessage{BaseMessage: BaseMessage{Type: MessageTypeServerError}}
	m.Payload.Code = application.ErrorCode(err)
	m.Payload.Error = err.Error()
	if m.Payload.Code == application.CodeInternal {
		m.Payload.Error = "internal error"
	}
	var tooLow *domain.BidTooLowError
	if errors.As(err, &tooLow) {
		m.Payload.MinimumRequired = tooLow.MinimumRequired.String()
	}
	return m
}

// Broadcaster pushes every committed auction change to the auction's room.
type Broadcaster struct {
	hub *websocket.Hub
}

func NewBroadcaster(hub *websocket.Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

func (b *Broadcaster) AuctionChanged(_ context.Context, a *domain.Auction) {
	data, err := json.Marshal(ServerAuctionMessage{
		BaseMessage: BaseMessage{Type: MessageTypeServerAuctionUpdate},
		Payload:     application.NewAuctionView(a),
	})
	if err != nil {
		log.Error("Failed to marshal auction update", zap.String("auctionID", a.ID.String()), zap.Error(err))
		return
	}
	b.hub.Broadcast(a.ID.String(), data)
}
