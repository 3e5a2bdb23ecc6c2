package api

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"shareit/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func newGRPCTestConn(t *testing.T, cfg config.APIConfig) (*grpc.ClientConn, *testStack) {
	t.Helper()
	stack := newTestStack(t)
	logger := zerolog.New(io.Discard)

	lis := bufconn.Listen(1 << 20)
	srv, err := newGRPCServer(&cfg, lis, stack.bookings, stack.queries, &logger)
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, stack
}

func call(ctx context.Context, conn *grpc.ClientConn, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func TestGRPCBookingLifecycle(t *testing.T) {
	conn, _ := newGRPCTestConn(t, config.APIConfig{})
	ctx := context.Background()

	created, err := call(ctx, conn, methodCreateBooking, map[string]any{
		"userId": bookerID,
		"itemId": itemID,
		"start":  now.Add(time.Hour).Format(time.RFC3339),
		"end":    now.Add(2 * time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)
	assert.Equal(t, "WAITING", created.Fields["status"].GetStringValue())
	id := created.Fields["id"].GetNumberValue()

	_, err = call(ctx, conn, methodSetApproval, map[string]any{"userId": bookerID, "bookingId": id, "approved": true})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	approved, err := call(ctx, conn, methodSetApproval, map[string]any{"userId": ownerID, "bookingId": id, "approved": true})
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", approved.Fields["status"].GetStringValue())

	_, err = call(ctx, conn, methodSetApproval, map[string]any{"userId": ownerID, "bookingId": id, "approved": false})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	list, err := call(ctx, conn, methodListOwner, map[string]any{"userId": ownerID, "state": "FUTURE"})
	require.NoError(t, err)
	bookings := list.Fields["bookings"].GetListValue().GetValues()
	require.Len(t, bookings, 1)
	assert.Equal(t, id, bookings[0].GetStructValue().Fields["id"].GetNumberValue())

	nearest, err := call(ctx, conn, methodResolveNearest, map[string]any{"userId": ownerID, "itemId": itemID})
	require.NoError(t, err)
	assert.Equal(t, id, nearest.Fields["nextBooking"].GetStructValue().Fields["id"].GetNumberValue())
	_, isNull := nearest.Fields["lastBooking"].GetKind().(*structpb.Value_NullValue)
	assert.True(t, isNull)

	owned, err := call(ctx, conn, methodAnnotateOwner, map[string]any{"userId": ownerID})
	require.NoError(t, err)
	assert.Len(t, owned.Fields["items"].GetListValue().GetValues(), 2)

	got, err := call(ctx, conn, methodGetBooking, map[string]any{"userId": bookerID, "bookingId": id})
	require.NoError(t, err)
	assert.Equal(t, "APPROVED", got.Fields["status"].GetStringValue())

	_, err = call(ctx, conn, methodRemoveBooking, map[string]any{"userId": bookerID, "bookingId": id})
	require.NoError(t, err)

	_, err = call(ctx, conn, methodGetBooking, map[string]any{"userId": bookerID, "bookingId": id})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGRPCValidation(t *testing.T) {
	conn, _ := newGRPCTestConn(t, config.APIConfig{})
	ctx := context.Background()

	tests := []struct {
		name   string
		method string
		req    map[string]any
		want   codes.Code
	}{
		{"missing user", methodGetBooking, map[string]any{"bookingId": 1}, codes.InvalidArgument},
		{"fractional id", methodGetBooking, map[string]any{"userId": 1, "bookingId": 1.5}, codes.InvalidArgument},
		{"string id", methodGetBooking, map[string]any{"userId": "one", "bookingId": 1}, codes.InvalidArgument},
		{"approved not bool", methodSetApproval, map[string]any{"userId": 1, "bookingId": 1, "approved": "yes"}, codes.InvalidArgument},
		{"inverted window", methodCreateBooking, map[string]any{
			"userId": bookerID, "itemId": itemID, "start": "2025-06-02T11:00:00", "end": "2025-06-02T10:00:00",
		}, codes.InvalidArgument},
		{"unknown state", methodListBooker, map[string]any{"userId": bookerID, "state": "SOMETIMES"}, codes.FailedPrecondition},
		{"bad page", methodListBooker, map[string]any{"userId": bookerID, "size": 0}, codes.InvalidArgument},
		{"unknown user", methodListOwner, map[string]any{"userId": 404}, codes.NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := call(ctx, conn, tt.method, tt.req)
			assert.Equal(t, tt.want, status.Code(err))
		})
	}
}

func TestGRPCAuth(t *testing.T) {
	conn, _ := newGRPCTestConn(t, authConfig())

	_, err := call(context.Background(), conn, methodListBooker, map[string]any{"userId": bookerID})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "reader-key")
	_, err = call(ctx, conn, methodListBooker, map[string]any{"userId": bookerID})
	assert.NoError(t, err)

	_, err = call(ctx, conn, methodRemoveBooking, map[string]any{"userId": bookerID, "bookingId": 1})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}
