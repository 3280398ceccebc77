package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "batchauction.v1.AuctionHouse"

// AuctionHouseServer is the server API of the auction house service.
type AuctionHouseServer interface {
	InitiateAuction(context.Context, *InitiateAuctionRequest) (*InitiateAuctionResponse, error)
	PlaceOrders(context.Context, *PlaceOrdersRequest) (*PlaceOrdersResponse, error)
	CancelOrders(context.Context, *OrdersRequest) (*CancelOrdersResponse, error)
	PrecalculateSellAmountSum(context.Context, *PrecalculateRequest) (*Empty, error)
	SettleAuction(context.Context, *AuctionRequest) (*ClearingResponse, error)
	SettleAuctionAtomically(context.Context, *PlaceOrdersRequest) (*ClearingResponse, error)
	ClaimFromParticipantOrder(context.Context, *OrdersRequest) (*ClaimResponse, error)
	ClaimFromAuctioneerOrder(context.Context, *AuctionRequest) (*ClaimResponse, error)
	RegisterUser(context.Context, *RegisterUserRequest) (*RegisterUserResponse, error)
	SetFeeParameters(context.Context, *SetFeeParametersRequest) (*Empty, error)
	ContainsOrder(context.Context, *ContainsOrderRequest) (*ContainsOrderResponse, error)
	GetSecondsRemainingInPlacement(context.Context, *AuctionRequest) (*SecondsRemainingResponse, error)
	GetAuction(context.Context, *AuctionRequest) (*AuctionResponse, error)
}

// ServiceDesc describes the service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuctionHouseServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("InitiateAuction", AuctionHouseServer.InitiateAuction),
		unary("PlaceOrders", AuctionHouseServer.PlaceOrders),
		unary("CancelOrders", AuctionHouseServer.CancelOrders),
		unary("PrecalculateSellAmountSum", AuctionHouseServer.PrecalculateSellAmountSum),
		unary("SettleAuction", AuctionHouseServer.SettleAuction),
		unary("SettleAuctionAtomically", AuctionHouseServer.SettleAuctionAtomically),
		unary("ClaimFromParticipantOrder", AuctionHouseServer.ClaimFromParticipantOrder),
		unary("ClaimFromAuctioneerOrder", AuctionHouseServer.ClaimFromAuctioneerOrder),
		unary("RegisterUser", AuctionHouseServer.RegisterUser),
		unary("SetFeeParameters", AuctionHouseServer.SetFeeParameters),
		unary("ContainsOrder", AuctionHouseServer.ContainsOrder),
		unary("GetSecondsRemainingInPlacement", AuctionHouseServer.GetSecondsRemainingInPlacement),
		unary("GetAuction", AuctionHouseServer.GetAuction),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "batchauction/v1/auction_house.proto",
}

func Register(s grpc.ServiceRegistrar, srv AuctionHouseServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary[Req, Resp any](
	name string,
	call func(AuctionHouseServer, context.Context, *Req) (*Resp, error),
) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AuctionHouseServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(AuctionHouseServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// -------------------- Client --------------------

// Client calls the auction house over a connection, always with Codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, c *Client, name string, in interface{}, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.ForceCodec(Codec)}, opts...)
	if err := c.cc.Invoke(ctx, fullMethod(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) InitiateAuction(ctx context.Context, in *InitiateAuctionRequest, opts ...grpc.CallOption) (*InitiateAuctionResponse, error) {
	return invoke[InitiateAuctionResponse](ctx, c, "InitiateAuction", in, opts)
}

func (c *Client) PlaceOrders(ctx context.Context, in *PlaceOrdersRequest, opts ...grpc.CallOption) (*PlaceOrdersResponse, error) {
	return invoke[PlaceOrdersResponse](ctx, c, "PlaceOrders", in, opts)
}

func (c *Client) CancelOrders(ctx context.Context, in *OrdersRequest, opts ...grpc.CallOption) (*CancelOrdersResponse, error) {
	return invoke[CancelOrdersResponse](ctx, c, "CancelOrders", in, opts)
}

func (c *Client) PrecalculateSellAmountSum(ctx context.Context, in *PrecalculateRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "PrecalculateSellAmountSum", in, opts)
}

func (c *Client) SettleAuction(ctx context.Context, in *AuctionRequest, opts ...grpc.CallOption) (*ClearingResponse, error) {
	return invoke[ClearingResponse](ctx, c, "SettleAuction", in, opts)
}

func (c *Client) SettleAuctionAtomically(ctx context.Context, in *PlaceOrdersRequest, opts ...grpc.CallOption) (*ClearingResponse, error) {
	return invoke[ClearingResponse](ctx, c, "SettleAuctionAtomically", in, opts)
}

func (c *Client) ClaimFromParticipantOrder(ctx context.Context, in *OrdersRequest, opts ...grpc.CallOption) (*ClaimResponse, error) {
	return invoke[ClaimResponse](ctx, c, "ClaimFromParticipantOrder", in, opts)
}

func (c *Client) ClaimFromAuctioneerOrder(ctx context.Context, in *AuctionRequest, opts ...grpc.CallOption) (*ClaimResponse, error) {
	return invoke[ClaimResponse](ctx, c, "ClaimFromAuctioneerOrder", in, opts)
}

func (c *Client) RegisterUser(ctx context.Context, in *RegisterUserRequest, opts ...grpc.CallOption) (*RegisterUserResponse, error) {
	return invoke[RegisterUserResponse](ctx, c, "RegisterUser", in, opts)
}

func (c *Client) SetFeeParameters(ctx context.Context, in *SetFeeParametersRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, "SetFeeParameters", in, opts)
}

func (c *Client) ContainsOrder(ctx context.Context, in *ContainsOrderRequest, opts ...grpc.CallOption) (*ContainsOrderResponse, error) {
	return invoke[ContainsOrderResponse](ctx, c, "ContainsOrder", in, opts)
}

func (c *Client) GetSecondsRemainingInPlacement(ctx context.Context, in *AuctionRequest, opts ...grpc.CallOption) (*SecondsRemainingResponse, error) {
	return invoke[SecondsRemainingResponse](ctx, c, "GetSecondsRemainingInPlacement", in, opts)
}

func (c *Client) GetAuction(ctx context.Context, in *AuctionRequest, opts ...grpc.CallOption) (*AuctionResponse, error) {
	return invoke[AuctionResponse](ctx, c, "GetAuction", in, opts)
}
