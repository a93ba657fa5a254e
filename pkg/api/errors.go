package api

import (
	"errors"
	"fmt"
)

// The client maps every transport and HTTP outcome into this closed set.
// None of these are fatal: every failure leaves the pipeline in a valid,
// re-capturable state.
var (
	ErrInvalidURL             = errors.New("invalid URL")
	ErrInvalidResponse        = errors.New("invalid response from server")
	ErrNoData                 = errors.New("no data received from server")
	ErrDecodingFailed         = errors.New("failed to decode response")
	ErrAuthenticationRequired = errors.New("authentication required - please log in")
	ErrNoNetworkConnection    = errors.New("no network connection")
	ErrNetwork                = errors.New("network error")
)

// ServerError is any HTTP status outside [200,299].
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error with status code: %d", e.StatusCode)
}

// OperationFailed carries a server-supplied failure message, such as the
// detail body of a rejected login.
type OperationFailed struct {
	Message string
}

func (e *OperationFailed) Error() string {
	return e.Message
}
