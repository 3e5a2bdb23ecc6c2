package api

import (
	"context"
	"fmt"
	"math"
	"strings"

	"shareit/internal/domain"
	"shareit/internal/models"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "shareit.booking.v1.BookingService"

const (
	methodCreateBooking  = "/" + serviceName + "/CreateBooking"
	methodSetApproval    = "/" + serviceName + "/SetApproval"
	methodRemoveBooking  = "/" + serviceName + "/RemoveBooking"
	methodGetBooking     = "/" + serviceName + "/GetBooking"
	methodListBooker     = "/" + serviceName + "/ListBookerBookings"
	methodListOwner      = "/" + serviceName + "/ListOwnerBookings"
	methodResolveNearest = "/" + serviceName + "/ResolveNearest"
	methodAnnotateOwner  = "/" + serviceName + "/AnnotateOwnerItems"
)

// BookingRPCServer is the server API of shareit.booking.v1.BookingService.
type BookingRPCServer interface {
	CreateBooking(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetApproval(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveBooking(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetBooking(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListBookerBookings(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListOwnerBookings(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResolveNearest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AnnotateOwnerItems(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// BookingRPC serves the booking operations as unary methods over
// google.protobuf.Struct messages. Every request carries "userId".
type BookingRPC struct {
	bookings domain.BookingService
	queries  Queries
}

func NewBookingRPC(bookings domain.BookingService, queries Queries) *BookingRPC {
	return &BookingRPC{bookings: bookings, queries: queries}
}

type rpcMethod func(s *BookingRPC, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unary(fullMethod string, fn rpcMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req any) (any, error) {
			resp, err := fn(srv.(*BookingRPC), ctx, req.(*structpb.Struct))
			if err != nil {
				return nil, grpcError(err)
			}
			return resp, nil
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, handler)
	}
}

func methodName(fullMethod string) string {
	return fullMethod[strings.LastIndex(fullMethod, "/")+1:]
}

func method(fullMethod string, fn rpcMethod) grpc.MethodDesc {
	return grpc.MethodDesc{MethodName: methodName(fullMethod), Handler: unary(fullMethod, fn)}
}

// BookingServiceDesc is registered with grpc.Server.RegisterService.
var BookingServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*BookingRPCServer)(nil),
	Methods: []grpc.MethodDesc{
		method(methodCreateBooking, (*BookingRPC).CreateBooking),
		method(methodSetApproval, (*BookingRPC).SetApproval),
		method(methodRemoveBooking, (*BookingRPC).RemoveBooking),
		method(methodGetBooking, (*BookingRPC).GetBooking),
		method(methodListBooker, (*BookingRPC).ListBookerBookings),
		method(methodListOwner, (*BookingRPC).ListOwnerBookings),
		method(methodResolveNearest, (*BookingRPC).ResolveNearest),
		method(methodAnnotateOwner, (*BookingRPC).AnnotateOwnerItems),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shareit/booking/v1/booking.proto",
}

func (s *BookingRPC) CreateBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := intField(req, "userId")
	if err != nil {
		return nil, err
	}
	itemID, err := intField(req, "itemId")
	if err != nil {
		return nil, err
	}
	start, err := parseTime("start", stringField(req, "start"))
	if err != nil {
		return nil, err
	}
	end, err := parseTime("end", stringField(req, "end"))
	if err != nil {
		return nil, err
	}

	booking, err := s.bookings.CreateBooking(ctx, userID, itemID, start, end)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(bookingMap(booking))
}

func (s *BookingRPC) SetApproval(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, bookingID, err := userAndID(req, "bookingId")
	if err != nil {
		return nil, err
	}
	v, ok := req.GetFields()["approved"]
	if !ok {
		return nil, badRequest("approved is required")
	}
	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return nil, badRequest("approved must be a boolean")
	}

	booking, err := s.bookings.SetApproval(ctx, bookingID, userID, b.BoolValue)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(bookingMap(booking))
}

func (s *BookingRPC) RemoveBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, bookingID, err := userAndID(req, "bookingId")
	if err != nil {
		return nil, err
	}
	booking, err := s.bookings.RemoveBooking(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(bookingMap(booking))
}

func (s *BookingRPC) GetBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, bookingID, err := userAndID(req, "bookingId")
	if err != nil {
		return nil, err
	}
	booking, err := s.bookings.GetBooking(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(bookingMap(booking))
}

func (s *BookingRPC) ListBookerBookings(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.list(ctx, req, s.queries.ListByBookerState)
}

func (s *BookingRPC) ListOwnerBookings(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.list(ctx, req, s.queries.ListByOwnerState)
}

func (s *BookingRPC) list(ctx context.Context, req *structpb.Struct, fn listFunc) (*structpb.Struct, error) {
	userID, err := intField(req, "userId")
	if err != nil {
		return nil, err
	}
	state := stringField(req, "state")
	if state == "" {
		state = models.DefaultState
	}
	page := models.Page{From: 0, Size: models.DefaultPageSize}
	if _, ok := req.GetFields()["from"]; ok {
		from, err := intField(req, "from")
		if err != nil {
			return nil, err
		}
		page.From = int(from)
	}
	if _, ok := req.GetFields()["size"]; ok {
		size, err := intField(req, "size")
		if err != nil {
			return nil, err
		}
		page.Size = int(size)
	}

	bookings, err := fn(ctx, userID, state, page)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{"bookings": bookingList(bookings)})
}

func (s *BookingRPC) ResolveNearest(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, itemID, err := userAndID(req, "itemId")
	if err != nil {
		return nil, err
	}
	ann, err := s.queries.ResolveNearest(ctx, itemID, userID)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(itemBookingsMap(ann))
}

func (s *BookingRPC) AnnotateOwnerItems(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := intField(req, "userId")
	if err != nil {
		return nil, err
	}
	anns, err := s.queries.AnnotateOwnerItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]any, 0, len(anns))
	for _, ann := range anns {
		items = append(items, itemBookingsMap(ann))
	}
	return structpb.NewStruct(map[string]any{"items": items})
}

func userAndID(req *structpb.Struct, idField string) (userID, id int64, err error) {
	if userID, err = intField(req, "userId"); err != nil {
		return 0, 0, err
	}
	if id, err = intField(req, idField); err != nil {
		return 0, 0, err
	}
	return userID, id, nil
}

// intField читает целое из числового поля Struct (JSON-числа приходят как double)
func intField(req *structpb.Struct, name string) (int64, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return 0, badRequest(name + " is required")
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, badRequest(name + " must be a number")
	}
	f := n.NumberValue
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > 1<<53 {
		return 0, badRequest(fmt.Sprintf("%s must be an integer, got %v", name, f))
	}
	return int64(f), nil
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}
