package grpcserver

import (
	"context"
	"errors"
	"time"

	sdkmath "cosmossdk.io/math"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"batchauction/domain/auction"
	"batchauction/domain/registry"
	"batchauction/infra/log"
	"batchauction/service"
)

// Server adapts the clearing house to gRPC.
type Server struct {
	house *service.House
}

var _ AuctionHouseServer = (*Server)(nil)

func NewServer(h *service.House) *Server {
	return &Server{house: h}
}

// -------------------- Commands --------------------

func (s *Server) InitiateAuction(ctx context.Context, req *InitiateAuctionRequest) (*InitiateAuctionResponse, error) {
	limits, err := parseAmounts([]string{req.TotalOutSupply, req.MinBuyAmount, req.MinimumBiddingAmountPerOrder})
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	threshold, err := parseOptionalAmount(req.MinFundingThreshold)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	id, err := s.house.InitiateAuction(ctx, auction.Params{
		Auctioneer:                   req.Auctioneer,
		TokenIn:                      req.TokenIn,
		TokenOut:                     req.TokenOut,
		OrderCancellationEndDate:     req.OrderCancellationEndDate,
		EndDate:                      req.EndDate,
		TotalOutSupply:               limits[0],
		MinBuyAmount:                 limits[1],
		MinimumBiddingAmountPerOrder: limits[2],
		MinFundingThreshold:          threshold,
		IsAtomicClosureAllowed:       req.IsAtomicClosureAllowed,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &InitiateAuctionResponse{AuctionID: id}, nil
}

func (s *Server) PlaceOrders(ctx context.Context, req *PlaceOrdersRequest) (*PlaceOrdersResponse, error) {
	buy, sell, hints, err := parsePlacement(req)
	if err != nil {
		return nil, err
	}
	placed, err := s.house.PlaceOrders(ctx, req.AuctionID, req.Caller, buy, sell, hints)
	if err != nil {
		return nil, toStatus(err)
	}
	return &PlaceOrdersResponse{Orders: toOrderViews(placed)}, nil
}

func (s *Server) CancelOrders(ctx context.Context, req *OrdersRequest) (*CancelOrdersResponse, error) {
	refs, err := parseOrders(req.Orders)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	refund, err := s.house.CancelOrders(ctx, req.AuctionID, req.Caller, refs)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CancelOrdersResponse{Refund: refund.String()}, nil
}

func (s *Server) PrecalculateSellAmountSum(ctx context.Context, req *PrecalculateRequest) (*Empty, error) {
	if err := s.house.PrecalculateSellAmountSum(ctx, req.AuctionID, req.Caller, req.Steps); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (s *Server) SettleAuction(ctx context.Context, req *AuctionRequest) (*ClearingResponse, error) {
	res, err := s.house.SettleAuction(ctx, req.AuctionID, req.Caller)
	if err != nil {
		return nil, toStatus(err)
	}
	return toClearing(res), nil
}

func (s *Server) SettleAuctionAtomically(ctx context.Context, req *PlaceOrdersRequest) (*ClearingResponse, error) {
	buy, sell, hints, err := parsePlacement(req)
	if err != nil {
		return nil, err
	}
	res, err := s.house.SettleAuctionAtomically(ctx, req.AuctionID, req.Caller, buy, sell, hints)
	if err != nil {
		return nil, toStatus(err)
	}
	return toClearing(res), nil
}

func (s *Server) ClaimFromParticipantOrder(ctx context.Context, req *OrdersRequest) (*ClaimResponse, error) {
	refs, err := parseOrders(req.Orders)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := s.house.ClaimFromParticipantOrder(ctx, req.AuctionID, req.Caller, refs)
	if err != nil {
		return nil, toStatus(err)
	}
	return toClaim(res), nil
}

func (s *Server) ClaimFromAuctioneerOrder(ctx context.Context, req *AuctionRequest) (*ClaimResponse, error) {
	res, err := s.house.ClaimFromAuctioneerOrder(ctx, req.AuctionID, req.Caller)
	if err != nil {
		return nil, toStatus(err)
	}
	return toClaim(res), nil
}

func (s *Server) RegisterUser(ctx context.Context, req *RegisterUserRequest) (*RegisterUserResponse, error) {
	id, err := s.house.RegisterUser(ctx, req.Identity)
	if err != nil {
		return nil, toStatus(err)
	}
	return &RegisterUserResponse{UserID: id}, nil
}

func (s *Server) SetFeeParameters(ctx context.Context, req *SetFeeParametersRequest) (*Empty, error) {
	if err := s.house.SetFeeParameters(ctx, req.Caller, req.FeeNumerator, req.FeeReceiver); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

// -------------------- Queries --------------------

func (s *Server) ContainsOrder(ctx context.Context, req *ContainsOrderRequest) (*ContainsOrderResponse, error) {
	o, err := parseOrder(req.Order)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	ok, err := s.house.ContainsOrder(req.AuctionID, o)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ContainsOrderResponse{Contains: ok}, nil
}

func (s *Server) GetSecondsRemainingInPlacement(ctx context.Context, req *AuctionRequest) (*SecondsRemainingResponse, error) {
	secs, err := s.house.GetSecondsRemainingInPlacement(req.AuctionID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &SecondsRemainingResponse{Seconds: secs}, nil
}

func (s *Server) GetAuction(ctx context.Context, req *AuctionRequest) (*AuctionResponse, error) {
	v, err := s.house.GetAuction(req.AuctionID)
	if err != nil {
		return nil, toStatus(err)
	}
	return toAuction(v), nil
}

func parsePlacement(req *PlaceOrdersRequest) (buy, sell []sdkmath.Uint, hints []auction.Order, err error) {
	if buy, err = parseAmounts(req.BuyAmounts); err != nil {
		return nil, nil, nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if sell, err = parseAmounts(req.SellAmounts); err != nil {
		return nil, nil, nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if hints, err = parseOrders(req.Hints); err != nil {
		return nil, nil, nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return buy, sell, hints, nil
}

// -------------------- Errors --------------------

func toStatus(err error) error {
	code := codes.InvalidArgument
	switch {
	case errors.Is(err, service.ErrJournal), errors.Is(err, service.ErrOutbox):
		code = codes.Internal
	case errors.Is(err, service.ErrUnknownAuction), errors.Is(err, auction.ErrUnknownUser):
		code = codes.NotFound
	case errors.Is(err, registry.ErrAlreadyRegistered),
		errors.Is(err, auction.ErrAlreadySettled),
		errors.Is(err, auction.ErrAlreadyClaimed):
		code = codes.AlreadyExists
	case errors.Is(err, auction.ErrForbidden),
		errors.Is(err, auction.ErrCrossUserClaim),
		errors.Is(err, service.ErrNotOwner):
		code = codes.PermissionDenied
	case errors.Is(err, auction.ErrTooManyOrders), errors.Is(err, auction.ErrQueueExhausted):
		code = codes.ResourceExhausted
	case errors.Is(err, auction.ErrPlacementWindowClosed),
		errors.Is(err, auction.ErrWindowClosed),
		errors.Is(err, auction.ErrNotClosed),
		errors.Is(err, auction.ErrNotYetFinished),
		errors.Is(err, auction.ErrAtomicClosureNotAllowed),
		errors.Is(err, auction.ErrCheckpointTooAdvanced):
		code = codes.FailedPrecondition
	case errors.Is(err, auction.ErrTransferFailed):
		code = codes.Aborted
	}
	return status.Error(code, err.Error())
}

// -------------------- Interceptors --------------------

// LoggingInterceptor logs every call with its outcome and latency.
func LoggingInterceptor(logger log.Logger) grpc.UnaryServerInterceptor {
	logger = logger.With("module", "grpc")
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			logger.Info("call failed", "method", info.FullMethod, "code", status.Code(err).String(),
				"err", err, "took", time.Since(start).String())
			return resp, err
		}
		logger.Debug("call", "method", info.FullMethod, "took", time.Since(start).String())
		return resp, nil
	}
}
