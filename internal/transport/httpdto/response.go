package httpdto

import (
	"errors"
	"net/http"

	salesflow_errors "salesflow/pkg/errors"
)

type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

func NewErrorResponse(err string, code string) Response[any] {
	return Response[any]{
		Success: false,
		Error:   err,
		Code:    code,
	}
}

// StatusFromError maps a service error onto an HTTP status and response code.
func StatusFromError(err error) (int, string) {
	switch {
	case errors.Is(err, salesflow_errors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, salesflow_errors.ErrInvalidInput), errors.Is(err, salesflow_errors.ErrMalformedPayload):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, salesflow_errors.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, salesflow_errors.ErrConflict), errors.Is(err, salesflow_errors.ErrAlreadyExists):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, salesflow_errors.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, salesflow_errors.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, "UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
