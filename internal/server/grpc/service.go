package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "lending.v1.Lending"

// LendingServer is the server API. Every method takes and returns a
// google.protobuf.Struct; field names are documented on the handlers.
type LendingServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)

	SetTrust(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTrust(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListTrustees(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RequestTrust(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DenyTrustRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListIncomingTrustRequests(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListOutgoingTrustRequests(context.Context, *structpb.Struct) (*structpb.Struct, error)

	CreateItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListOwnItems(context.Context, *structpb.Struct) (*structpb.Struct, error)
	VisibleItems(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SearchItems(context.Context, *structpb.Struct) (*structpb.Struct, error)

	CreateLoanRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApproveLoanRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DenyLoanRequest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListIncomingLoanRequests(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListOutgoingLoanRequests(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LendDirect(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MarkReturned(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ActiveLoan(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListLoans(context.Context, *structpb.Struct) (*structpb.Struct, error)

	Scan(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(LendingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// method builds a unary MethodDesc decoding into a Struct.
func method(name string, call unaryCall) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LendingServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(LendingServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the lending service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LendingServer)(nil),
	Methods: []grpc.MethodDesc{
		method("Register", LendingServer.Register),
		method("Login", LendingServer.Login),

		method("SetTrust", LendingServer.SetTrust),
		method("GetTrust", LendingServer.GetTrust),
		method("ListTrustees", LendingServer.ListTrustees),
		method("RequestTrust", LendingServer.RequestTrust),
		method("DenyTrustRequest", LendingServer.DenyTrustRequest),
		method("ListIncomingTrustRequests", LendingServer.ListIncomingTrustRequests),
		method("ListOutgoingTrustRequests", LendingServer.ListOutgoingTrustRequests),

		method("CreateItem", LendingServer.CreateItem),
		method("UpdateItem", LendingServer.UpdateItem),
		method("DeleteItem", LendingServer.DeleteItem),
		method("GetItem", LendingServer.GetItem),
		method("ListOwnItems", LendingServer.ListOwnItems),
		method("VisibleItems", LendingServer.VisibleItems),
		method("SearchItems", LendingServer.SearchItems),

		method("CreateLoanRequest", LendingServer.CreateLoanRequest),
		method("ApproveLoanRequest", LendingServer.ApproveLoanRequest),
		method("DenyLoanRequest", LendingServer.DenyLoanRequest),
		method("ListIncomingLoanRequests", LendingServer.ListIncomingLoanRequests),
		method("ListOutgoingLoanRequests", LendingServer.ListOutgoingLoanRequests),
		method("LendDirect", LendingServer.LendDirect),
		method("MarkReturned", LendingServer.MarkReturned),
		method("ActiveLoan", LendingServer.ActiveLoan),
		method("ListLoans", LendingServer.ListLoans),

		method("Scan", LendingServer.Scan),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lending/v1/lending.proto",
}

// RegisterLendingServer registers srv on s.
func RegisterLendingServer(s grpc.ServiceRegistrar, srv LendingServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls lending methods by name.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a client connection.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

// Call invokes method (e.g. "Scan") with in as the request.
func (c *Client) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
