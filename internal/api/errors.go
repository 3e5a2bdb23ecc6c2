package api

import (
	"errors"
	"net/http"

	"shareit/internal/domain"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// errBadRequest помечает ошибки разбора запроса на транспортном уровне
var errBadRequest = errors.New("bad request")

type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func (e *requestError) Is(target error) bool { return target == errBadRequest }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

func httpStatusFor(err error) int {
	if errors.Is(err, errBadRequest) {
		return http.StatusBadRequest
	}
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindInvalidState, domain.KindInvalidRange, domain.KindInvalidOperation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func grpcCodeFor(err error) codes.Code {
	if errors.Is(err, errBadRequest) {
		return codes.InvalidArgument
	}
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return codes.NotFound
	case domain.KindForbidden:
		return codes.PermissionDenied
	case domain.KindInvalidState:
		return codes.FailedPrecondition
	case domain.KindInvalidRange, domain.KindInvalidOperation:
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}

// grpcError переводит ошибку сервиса в статус; внутренние детали наружу не уходят
func grpcError(err error) error {
	code := grpcCodeFor(err)
	if code == codes.Internal {
		return status.Error(code, "internal error")
	}
	return status.Error(code, err.Error())
}
