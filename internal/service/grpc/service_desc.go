package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName: полное имя gRPC-сервиса.
const ServiceName = "storefront.v1.StorefrontService"

const (
	MethodRegisterCustomer = "/" + ServiceName + "/RegisterCustomer"
	MethodGetCustomer      = "/" + ServiceName + "/GetCustomer"
	MethodCreateProduct    = "/" + ServiceName + "/CreateProduct"
	MethodGetProduct       = "/" + ServiceName + "/GetProduct"
	MethodPlaceOrder       = "/" + ServiceName + "/PlaceOrder"
	MethodGetOrder         = "/" + ServiceName + "/GetOrder"
	MethodListOrders       = "/" + ServiceName + "/ListOrders"
)

// StorefrontServer: серверная сторона StorefrontService.
type StorefrontServer interface {
	RegisterCustomer(context.Context, *RegisterCustomerRequest) (*RegisterCustomerResponse, error)
	GetCustomer(context.Context, *GetCustomerRequest) (*GetCustomerResponse, error)
	CreateProduct(context.Context, *CreateProductRequest) (*CreateProductResponse, error)
	GetProduct(context.Context, *GetProductRequest) (*GetProductResponse, error)
	PlaceOrder(context.Context, *PlaceOrderRequest) (*PlaceOrderResponse, error)
	GetOrder(context.Context, *GetOrderRequest) (*GetOrderResponse, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
}

// StorefrontServiceDesc описывает unary-методы сервиса для grpc.Server.
var StorefrontServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StorefrontServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RegisterCustomer", Handler: unaryHandler(MethodRegisterCustomer, StorefrontServer.RegisterCustomer)},
		{MethodName: "GetCustomer", Handler: unaryHandler(MethodGetCustomer, StorefrontServer.GetCustomer)},
		{MethodName: "CreateProduct", Handler: unaryHandler(MethodCreateProduct, StorefrontServer.CreateProduct)},
		{MethodName: "GetProduct", Handler: unaryHandler(MethodGetProduct, StorefrontServer.GetProduct)},
		{MethodName: "PlaceOrder", Handler: unaryHandler(MethodPlaceOrder, StorefrontServer.PlaceOrder)},
		{MethodName: "GetOrder", Handler: unaryHandler(MethodGetOrder, StorefrontServer.GetOrder)},
		{MethodName: "ListOrders", Handler: unaryHandler(MethodListOrders, StorefrontServer.ListOrders)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/v1/storefront.json",
}

// RegisterStorefrontServer регистрирует реализацию на сервере.
func RegisterStorefrontServer(s grpc.ServiceRegistrar, srv StorefrontServer) {
	s.RegisterService(&StorefrontServiceDesc, srv)
}

func unaryHandler[Req, Resp any](
	fullMethod string,
	call func(StorefrontServer, context.Context, *Req) (*Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(StorefrontServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(StorefrontServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// StorefrontClient: клиент StorefrontService поверх grpc.ClientConnInterface.
type StorefrontClient struct {
	cc grpc.ClientConnInterface
}

// NewStorefrontClient создаёт клиент. Все вызовы идут с JSON-кодеком.
func NewStorefrontClient(cc grpc.ClientConnInterface) *StorefrontClient {
	return &StorefrontClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *StorefrontClient) RegisterCustomer(ctx context.Context, in *RegisterCustomerRequest, opts ...grpc.CallOption) (*RegisterCustomerResponse, error) {
	return invoke[RegisterCustomerResponse](ctx, c.cc, MethodRegisterCustomer, in, opts)
}

func (c *StorefrontClient) GetCustomer(ctx context.Context, in *GetCustomerRequest, opts ...grpc.CallOption) (*GetCustomerResponse, error) {
	return invoke[GetCustomerResponse](ctx, c.cc, MethodGetCustomer, in, opts)
}

func (c *StorefrontClient) CreateProduct(ctx context.Context, in *CreateProductRequest, opts ...grpc.CallOption) (*CreateProductResponse, error) {
	return invoke[CreateProductResponse](ctx, c.cc, MethodCreateProduct, in, opts)
}

func (c *StorefrontClient) GetProduct(ctx context.Context, in *GetProductRequest, opts ...grpc.CallOption) (*GetProductResponse, error) {
	return invoke[GetProductResponse](ctx, c.cc, MethodGetProduct, in, opts)
}

func (c *StorefrontClient) PlaceOrder(ctx context.Context, in *PlaceOrderRequest, opts ...grpc.CallOption) (*PlaceOrderResponse, error) {
	return invoke[PlaceOrderResponse](ctx, c.cc, MethodPlaceOrder, in, opts)
}

func (c *StorefrontClient) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*GetOrderResponse, error) {
	return invoke[GetOrderResponse](ctx, c.cc, MethodGetOrder, in, opts)
}

func (c *StorefrontClient) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	return invoke[ListOrdersResponse](ctx, c.cc, MethodListOrders, in, opts)
}
