package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNetworkConnectionFailed means the station never reached link-up or the
	// listener could not be bound. It is fatal.
	ErrNetworkConnectionFailed = errors.New("network connection failed")

	// ErrConnectionIO covers accept, read and write failures on one client
	// connection. The accept loop survives it.
	ErrConnectionIO = errors.New("connection i/o failed")

	ErrNetworkSendFailed     = errors.New("network send failed")
	ErrResponseFormatInvalid = errors.New("response format invalid")
)

// UpstreamError describes a failed outbound Domoticz request. Kind is
// ErrNetworkSendFailed or ErrResponseFormatInvalid.
type UpstreamError struct {
	Method string
	URL    string
	Kind   error
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Method, e.URL, e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
