package service

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"

	"batchauction/domain/auction"
)

// Event types as they appear in the outbox and on the bus.
const (
	EventAuctionInitiated      = "AuctionInitiated"
	EventNewUser               = "NewUser"
	EventNewSellOrder          = "NewSellOrder"
	EventCancellationSellOrder = "CancellationSellOrder"
	EventAuctionCleared        = "AuctionCleared"
	EventClaimedFromOrder      = "ClaimedFromOrder"
	EventClaimedFromAuctioneer = "ClaimedFromAuctioneer"
)

type event struct {
	typ       string
	auctionID uint64
	payload   interface{}
}

type AuctionInitiated struct {
	AuctionID                    uint64       `json:"auctionId"`
	Auctioneer                   string       `json:"auctioneer"`
	TokenIn                      string       `json:"tokenIn"`
	TokenOut                     string       `json:"tokenOut"`
	OrderCancellationEndDate     time.Time    `json:"orderCancellationEndDate"`
	EndDate                      time.Time    `json:"endDate"`
	TotalOutSupply               sdkmath.Uint `json:"totalOutSupply"`
	MinBuyAmount                 sdkmath.Uint `json:"minBuyAmount"`
	MinimumBiddingAmountPerOrder sdkmath.Uint `json:"minimumBiddingAmountPerOrder"`
	MinFundingThreshold          sdkmath.Uint `json:"minFundingThreshold"`
	IsAtomicClosureAllowed       bool         `json:"isAtomicClosureAllowed"`
}

type NewUser struct {
	UserID   uint64 `json:"userId"`
	Identity string `json:"identity"`
}

// SellOrder is the payload of NewSellOrder and CancellationSellOrder.
type SellOrder struct {
	AuctionID  uint64       `json:"auctionId"`
	UserID     uint64       `json:"userId"`
	Order      string       `json:"order"`
	BuyAmount  sdkmath.Uint `json:"buyAmount"`
	SellAmount sdkmath.Uint `json:"sellAmount"`
}

type AuctionCleared struct {
	AuctionID                     uint64          `json:"auctionId"`
	ClearingOrder                 string          `json:"clearingOrder"`
	Price                         decimal.Decimal `json:"price"`
	Volume                        sdkmath.Uint    `json:"volume"`
	Raised                        sdkmath.Uint    `json:"raised"`
	AuctioneerFill                sdkmath.Uint    `json:"auctioneerFill"`
	Fee                           sdkmath.Uint    `json:"fee"`
	FeeReceiver                   string          `json:"feeReceiver,omitempty"`
	MinFundingThresholdNotReached bool            `json:"minFundingThresholdNotReached"`
}

type ClaimedFromOrder struct {
	AuctionID uint64       `json:"auctionId"`
	UserID    uint64       `json:"userId"`
	Owner     string       `json:"owner"`
	Orders    []string     `json:"orders"`
	InAmount  sdkmath.Uint `json:"inAmount"`
	OutAmount sdkmath.Uint `json:"outAmount"`
}

type ClaimedFromAuctioneer struct {
	AuctionID  uint64       `json:"auctionId"`
	Auctioneer string       `json:"auctioneer"`
	InAmount   sdkmath.Uint `json:"inAmount"`
	OutAmount  sdkmath.Uint `json:"outAmount"`
}

func initiatedEvent(a *auction.Auction) event {
	return event{typ: EventAuctionInitiated, auctionID: a.ID, payload: AuctionInitiated{
		AuctionID:                    a.ID,
		Auctioneer:                   a.Auctioneer,
		TokenIn:                      a.TokenIn,
		TokenOut:                     a.TokenOut,
		OrderCancellationEndDate:     a.OrderCancellationEndDate,
		EndDate:                      a.EndDate,
		TotalOutSupply:               a.InitialOrder.SellAmount,
		MinBuyAmount:                 a.InitialOrder.BuyAmount,
		MinimumBiddingAmountPerOrder: a.MinimumBiddingAmountPerOrder,
		MinFundingThreshold:          a.MinFundingThreshold,
		IsAtomicClosureAllowed:       a.IsAtomicClosureAllowed,
	}}
}

func orderEvents(typ string, auctionID uint64, orders []auction.Order) []event {
	out := make([]event, 0, len(orders))
	for _, o := range orders {
		out = append(out, event{typ: typ, auctionID: auctionID, payload: SellOrder{
			AuctionID:  auctionID,
			UserID:     o.OwnerID,
			Order:      auction.Encode(o).String(),
			BuyAmount:  o.BuyAmount,
			SellAmount: o.SellAmount,
		}})
	}
	return out
}

func clearedEvent(res auction.ClearingResult) event {
	return event{typ: EventAuctionCleared, auctionID: res.AuctionID, payload: AuctionCleared{
		AuctionID:                     res.AuctionID,
		ClearingOrder:                 auction.Encode(res.ClearingOrder).String(),
		Price:                         res.Price,
		Volume:                        res.Volume,
		Raised:                        res.Raised,
		AuctioneerFill:                res.AuctioneerFill,
		Fee:                           res.Fee,
		FeeReceiver:                   res.FeeReceiver,
		MinFundingThresholdNotReached: res.MinFundingThresholdNotReached,
	}}
}

func claimedEvent(auctionID uint64, refs []auction.Order, c auction.ClaimResult) event {
	keys := make([]string, 0, len(refs))
	for _, o := range refs {
		keys = append(keys, auction.Encode(o).String())
	}
	return event{typ: EventClaimedFromOrder, auctionID: auctionID, payload: ClaimedFromOrder{
		AuctionID: auctionID,
		UserID:    c.OwnerID,
		Owner:     c.Owner,
		Orders:    keys,
		InAmount:  c.InAmount,
		OutAmount: c.OutAmount,
	}}
}
