package websocket

import (
	"github.com/cristianortiz/carauction/internal/auction/application"
)

// MessageType defines ws type message
type MessageType string

const (
	MessageTypeClientBid           MessageType = "client_bid"            // client msg to place a bid
	MessageTypeServerAuctionState  MessageType = "server_auction_state"  // sent once on connect
	MessageTypeServerAuctionUpdate MessageType = "server_auction_update" // broadcast after every committed change
	MessageTypeServerBidAccepted   MessageType = "server_bid_accepted"   // ack to the bidder only
	MessageTypeServerError         MessageType = "server_error"
)

// BaseMessage is embedded in every ws message; Type selects the payload shape.
type BaseMessage struct {
	Type MessageType `json:"type"`
}

// ClientBidMessage is a bid sent over the socket. Amount is a decimal string
// and the auction is the one the socket is subscribed to.
type ClientBidMessage struct {
	BaseMessage
	Payload struct {
		BidderName  string `json:"bidder_name"`
		PhoneNumber string `json:"phone_number"`
		Amount      string `json:"amount"`
	} `json:"payload"`
}

// ServerAuctionMessage carries the public auction view, used for both the
// initial state and updates.
type ServerAuctionMessage struct {
	BaseMessage
	Payload *application.AuctionView `json:"payload"`
}

type ServerBidAcceptedMessage struct {
	BaseMessage
	Payload struct {
		BidID  string `json:"bid_id"`
		Amount string `json:"amount"`
	} `json:"payload"`
}

type ServerErrorMessage struct {
	BaseMessage
	Payload struct {
		Code            string `json:"code"`
		Error           string `json:"error"`
		MinimumRequired string `json:"minimum_required,omitempty"`
	} `json:"payload"`
}
