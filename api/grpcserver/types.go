package grpcserver

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"batchauction/domain/auction"
	"batchauction/service"
)

// Amounts travel as decimal strings and orders as hex keys. An empty
// order reference stands for the start of the queue.

type Empty struct{}

type OrderView struct {
	Key        string `protobuf:"bytes,1,opt,name=key,proto3" json:"key,omitempty"`
	OwnerID    uint64 `protobuf:"varint,2,opt,name=owner_id,proto3" json:"ownerId,omitempty"`
	BuyAmount  string `protobuf:"bytes,3,opt,name=buy_amount,proto3" json:"buyAmount,omitempty"`
	SellAmount string `protobuf:"bytes,4,opt,name=sell_amount,proto3" json:"sellAmount,omitempty"`
}

type InitiateAuctionRequest struct {
	Auctioneer                   string    `protobuf:"bytes,1,opt,name=auctioneer,proto3" json:"auctioneer,omitempty"`
	TokenIn                      string    `protobuf:"bytes,2,opt,name=token_in,proto3" json:"tokenIn,omitempty"`
	TokenOut                     string    `protobuf:"bytes,3,opt,name=token_out,proto3" json:"tokenOut,omitempty"`
	OrderCancellationEndDate     time.Time `protobuf:"bytes,4,opt,name=order_cancellation_end_date,proto3" json:"orderCancellationEndDate,omitempty"`
	EndDate                      time.Time `protobuf:"bytes,5,opt,name=end_date,proto3" json:"endDate,omitempty"`
	TotalOutSupply               string    `protobuf:"bytes,6,opt,name=total_out_supply,proto3" json:"totalOutSupply,omitempty"`
	MinBuyAmount                 string    `protobuf:"bytes,7,opt,name=min_buy_amount,proto3" json:"minBuyAmount,omitempty"`
	MinimumBiddingAmountPerOrder string    `protobuf:"bytes,8,opt,name=minimum_bidding_amount_per_order,proto3" json:"minimumBiddingAmountPerOrder,omitempty"`
	MinFundingThreshold          string    `protobuf:"bytes,9,opt,name=min_funding_threshold,proto3" json:"minFundingThreshold,omitempty"`
	IsAtomicClosureAllowed       bool      `protobuf:"varint,10,opt,name=is_atomic_closure_allowed,proto3" json:"isAtomicClosureAllowed,omitempty"`
}

type InitiateAuctionResponse struct {
	AuctionID uint64 `protobuf:"varint,1,opt,name=auction_id,proto3" json:"auctionId,omitempty"`
}

// PlaceOrdersRequest also serves atomic settlement, with exactly one
// order.
type PlaceOrdersRequest struct {
	AuctionID   uint64   `protobuf:"varint,1,opt,name=auction_id,proto3" json:"auctionId,omitempty"`
	Caller      string   `protobuf:"bytes,2,opt,name=caller,proto3" json:"caller,omitempty"`
	BuyAmounts  []string `protobuf:"bytes,3,rep,name=buy_amounts,proto3" json:"buyAmounts,omitempty"`
	SellAmounts []string `protobuf:"bytes,4,rep,name=sell_amounts,proto3" json:"sellAmounts,omitempty"`
	Hints       []string `protobuf:"bytes,5,rep,name=hints,proto3" json:"hints,omitempty"`
}

type PlaceOrdersResponse struct {
	Orders []OrderView `protobuf:"bytes,1,rep,name=orders,proto3" json:"orders,omitempty"`
}

type OrdersRequest struct {
	AuctionID uint64   `protobuf:"varint,1,opt,name=auction_id,proto3" json:"auctionId,omitempty"`
	Caller    string   `protobuf:"bytes,2,opt,name=caller,proto3" json:"caller,omitempty"`
	Orders    []string `protobuf:"bytes,3,rep,name=orders,proto3" json:"orders,omitempty"`
}

type CancelOrdersResponse struct {
	Refund string `protobuf:"bytes,1,opt,name=refund,proto3" json:"refund,omitempty"`
}

type PrecalculateRequest struct {
	AuctionID uint64 `protobuf:"varint,1,opt,name=auction_id,proto3" json:"auctionId,omitempty"`
	Caller    string `protobuf:"bytes,2,opt,name=caller,proto3" json:"caller,omitempty"`
	Steps     int    `protobuf:"varint,3,opt,name=steps,proto3" json:"steps,omitempty"`
}

type AuctionRequest struct {
	AuctionID uint64 `protobuf:"varint,1,opt,name=auction_id,proto3" json:"auctionId,omitempty"`
	Caller    string `protobuf:"bytes,2,opt,name=caller,proto3" json:"caller,omitempty"`
}

type ClearingResponse struct {
	AuctionID                     uint64 `protobuf:"varint,1,opt,name=auction_id,proto3" json:"auctionId,omitempty"`
	ClearingOrder                 string `protobuf:"bytes,2,opt,name=clearing_order,proto3" json:"clearingOrder,omitempty"`
	Price                         string `protobuf:"bytes,3,opt,name=price,proto3" json:"price,omitempty"`
	Volume                        string `protobuf:"bytes,4,opt,name=volume,proto3" json:"volume,omitempty"`
	Raised                        string `protobuf:"bytes,5,opt,name=raised,proto3" json:"raised,omitempty"`
	AuctioneerFill                string `protobuf:"bytes,6,opt,name=auctioneer_fill,proto3" json:"auctioneerFill,omitempty"`
	Fee                           string `protobuf:"bytes,7,opt,name=fee,proto3" json:"fee,omitempty"`
	FeeReceiver                   string `protobuf:"bytes,8,opt,name=fee_receiver,proto3" json:"feeReceiver,omitempty"`
	MinFundingThresholdNotReached bool   `protobuf:"varint,9,opt,name=min_funding_threshold_not_reached,proto3" json:"minFundingThresholdNotReached,omitempty"`
}

type ClaimResponse struct {
	OwnerID   uint64 `protobuf:"varint,1,opt,name=owner_id,proto3" json:"ownerId,omitempty"`
	Owner     string `protobuf:"bytes,2,opt,name=owner,proto3" json:"owner,omitempty"`
	InAmount  string `protobuf:"bytes,3,opt,name=in_amount,proto3" json:"inAmount,omitempty"`
	OutAmount string `protobuf:"bytes,4,opt,name=out_amount,proto3" json:"outAmount,omitempty"`
}

type RegisterUserRequest struct {
	Identity string `protobuf:"bytes,1,opt,name=identity,proto3" json:"identity,omitempty"`
}

type RegisterUserResponse struct {
	UserID uint64 `protobuf:"varint,1,opt,name=user_id,proto3" json:"userId,omitempty"`
}

type ContainsOrderRequest struct {
	AuctionID uint64 `protobuf:"varint,1,opt,name=auction_id,proto3" json:"auctionId,omitempty"`
	Order     string `protobuf:"bytes,2,opt,name=order,proto3" json:"order,omitempty"`
}

type ContainsOrderResponse struct {
	Contains bool `protobuf:"varint,1,opt,name=contains,proto3" json:"contains,omitempty"`
}

type SecondsRemainingResponse struct {
	Seconds int64 `protobuf:"varint,1,opt,name=seconds,proto3" json:"seconds,omitempty"`
}

type SetFeeParametersRequest struct {
	Caller       string `protobuf:"bytes,1,opt,name=caller,proto3" json:"caller,omitempty"`
	FeeNumerator uint64 `protobuf:"varint,2,opt,name=fee_numerator,proto3" json:"feeNumerator,omitempty"`
	FeeReceiver  string `protobuf:"bytes,3,opt,name=fee_receiver,proto3" json:"feeReceiver,omitempty"`
}

type AuctionResponse struct {
	AuctionID                    uint64      `protobuf:"varint,1,opt,name=auction_id,proto3" json:"auctionId,omitempty"`
	Auctioneer                   string      `protobuf:"bytes,2,opt,name=auctioneer,proto3" json:"auctioneer,omitempty"`
	TokenIn                      string      `protobuf:"bytes,3,opt,name=token_in,proto3" json:"tokenIn,omitempty"`
	TokenOut                     string      `protobuf:"bytes,4,opt,name=token_out,proto3" json:"tokenOut,omitempty"`
	OrderCancellationEndDate     time.Time   `protobuf:"bytes,5,opt,name=order_cancellation_end_date,proto3" json:"orderCancellationEndDate,omitempty"`
	EndDate                      time.Time   `protobuf:"bytes,6,opt,name=end_date,proto3" json:"endDate,omitempty"`
	TotalOutSupply               string      `protobuf:"bytes,7,opt,name=total_out_supply,proto3" json:"totalOutSupply,omitempty"`
	MinBuyAmount                 string      `protobuf:"bytes,8,opt,name=min_buy_amount,proto3" json:"minBuyAmount,omitempty"`
	MinimumBiddingAmountPerOrder string      `protobuf:"bytes,9,opt,name=minimum_bidding_amount_per_order,proto3" json:"minimumBiddingAmountPerOrder,omitempty"`
	MinFundingThreshold          string      `protobuf:"bytes,10,opt,name=min_funding_threshold,proto3" json:"minFundingThreshold,omitempty"`
	IsAtomicClosureAllowed       bool        `protobuf:"varint,11,opt,name=is_atomic_closure_allowed,proto3" json:"isAtomicClosureAllowed,omitempty"`
	Phase                        string      `protobuf:"bytes,12,opt,name=phase,proto3" json:"phase,omitempty"`
	SecondsRemaining             int64       `protobuf:"varint,13,opt,name=seconds_remaining,proto3" json:"secondsRemaining,omitempty"`
	InterimSumBidAmount          string      `protobuf:"bytes,14,opt,name=interim_sum_bid_amount,proto3" json:"interimSumBidAmount,omitempty"`
	InterimOrder                 string      `protobuf:"bytes,15,opt,name=interim_order,proto3" json:"interimOrder,omitempty"`
	AuctioneerClaimed            bool        `protobuf:"varint,16,opt,name=auctioneer_claimed,proto3" json:"auctioneerClaimed,omitempty"`
	Orders                       []OrderView `protobuf:"bytes,17,rep,name=orders,proto3" json:"orders,omitempty"`
	// Clearing is set once the auction settled.
	Clearing *ClearingResponse `protobuf:"bytes,18,opt,name=clearing,proto3" json:"clearing,omitempty"`
}

// -------------------- Converters --------------------

func parseAmounts(ss []string) ([]sdkmath.Uint, error) {
	out := make([]sdkmath.Uint, 0, len(ss))
	for _, s := range ss {
		u, err := sdkmath.ParseUint(s)
		if err != nil {
			return nil, fmt.Errorf("amount %q: %w", s, err)
		}
		out = append(out, u)
	}
	return out, nil
}

func parseOptionalAmount(s string) (sdkmath.Uint, error) {
	if s == "" {
		return sdkmath.ZeroUint(), nil
	}
	return sdkmath.ParseUint(s)
}

func parseOrder(s string) (auction.Order, error) {
	if s == "" {
		return auction.QueueStart, nil
	}
	k, err := auction.ParseKey(s)
	if err != nil {
		return auction.Order{}, err
	}
	return k.Order(), nil
}

func parseOrders(ss []string) ([]auction.Order, error) {
	out := make([]auction.Order, 0, len(ss))
	for _, s := range ss {
		o, err := parseOrder(s)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func toOrderView(o auction.Order) OrderView {
	return OrderView{
		Key:        auction.Encode(o).String(),
		OwnerID:    o.OwnerID,
		BuyAmount:  o.BuyAmount.String(),
		SellAmount: o.SellAmount.String(),
	}
}

func toOrderViews(orders []auction.Order) []OrderView {
	out := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderView(o))
	}
	return out
}

func toClearing(r auction.ClearingResult) *ClearingResponse {
	return &ClearingResponse{
		AuctionID:                     r.AuctionID,
		ClearingOrder:                 auction.Encode(r.ClearingOrder).String(),
		Price:                         r.Price.String(),
		Volume:                        r.Volume.String(),
		Raised:                        r.Raised.String(),
		AuctioneerFill:                r.AuctioneerFill.String(),
		Fee:                           r.Fee.String(),
		FeeReceiver:                   r.FeeReceiver,
		MinFundingThresholdNotReached: r.MinFundingThresholdNotReached,
	}
}

func toClaim(c auction.ClaimResult) *ClaimResponse {
	return &ClaimResponse{
		OwnerID:   c.OwnerID,
		Owner:     c.Owner,
		InAmount:  c.InAmount.String(),
		OutAmount: c.OutAmount.String(),
	}
}

func toAuction(v service.AuctionView) *AuctionResponse {
	resp := &AuctionResponse{
		AuctionID:                    v.ID,
		Auctioneer:                   v.Auctioneer,
		TokenIn:                      v.TokenIn,
		TokenOut:                     v.TokenOut,
		OrderCancellationEndDate:     v.OrderCancellationEndDate,
		EndDate:                      v.EndDate,
		TotalOutSupply:               v.InitialOrder.SellAmount.String(),
		MinBuyAmount:                 v.InitialOrder.BuyAmount.String(),
		MinimumBiddingAmountPerOrder: v.MinimumBiddingAmountPerOrder.String(),
		MinFundingThreshold:          v.MinFundingThreshold.String(),
		IsAtomicClosureAllowed:       v.IsAtomicClosureAllowed,
		Phase:                        v.Phase.String(),
		SecondsRemaining:             v.SecondsRemainingInPlacement,
		InterimSumBidAmount:          v.InterimSumBidAmount.String(),
		InterimOrder:                 auction.Encode(v.InterimOrder).String(),
		AuctioneerClaimed:            v.AuctioneerClaimed,
		Orders:                       toOrderViews(v.Orders),
	}
	if v.Result != nil {
		resp.Clearing = toClearing(*v.Result)
	}
	return resp
}
