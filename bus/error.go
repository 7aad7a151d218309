package bus

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// CallError is the error returned from failed DBus method calls.
type CallError struct {
	// Name is the error name provided by the remote peer or the
	// bus, for example "org.freedesktop.DBus.Error.ServiceUnknown".
	// It is empty if the call failed locally.
	Name string
	// Detail is the human-readable explanation of what went wrong.
	Detail string
	// Err is the underlying transport error, if any.
	Err error
}

func (e CallError) Error() string {
	switch {
	case e.Name != "" && e.Detail != "":
		return fmt.Sprintf("call error %s: %s", e.Name, e.Detail)
	case e.Name != "":
		return fmt.Sprintf("call error %s", e.Name)
	case e.Err != nil && e.Detail != "":
		return fmt.Sprintf("call error: %s: %v", e.Detail, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("call error: %v", e.Err)
	default:
		return fmt.Sprintf("call error: %s", e.Detail)
	}
}

func (e CallError) Unwrap() error {
	return e.Err
}

// Direction says which half of a method call a [MarshalError]
// concerns.
type Direction int

const (
	// Request is the argument tuple sent to the remote peer.
	Request Direction = iota
	// Reply is the body returned by the remote peer.
	Reply
	// Body is the payload of a received signal.
	Body
)

func (d Direction) String() string {
	switch d {
	case Request:
		return "request"
	case Reply:
		return "reply"
	case Body:
		return "signal body"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// MarshalError is the error returned when a message does not have
// the shape declared for a method or signal.
type MarshalError struct {
	// Member is the fully qualified method or signal name.
	Member string
	// Direction is the part of the exchange that was malformed.
	Direction Direction
	// Want is the declared type signature.
	Want string
	// Got is the signature of the values actually present. It is
	// empty if the values could not be represented in DBus at all.
	Got string
	// Err is the underlying decoding error, if any.
	Err error
}

func (e MarshalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Member, e.Direction, e.Err)
	}
	return fmt.Sprintf("%s %s has signature %q, want %q", e.Member, e.Direction, e.Got, e.Want)
}

func (e MarshalError) Unwrap() error {
	return e.Err
}

// callError converts an error from godbus into a CallError.
func callError(err error) error {
	var (
		dv dbus.Error
		dp *dbus.Error
	)
	switch {
	case errors.As(err, &dp) && dp != nil:
		return CallError{Name: dp.Name, Detail: errorDetail(dp.Body), Err: err}
	case errors.As(err, &dv):
		return CallError{Name: dv.Name, Detail: errorDetail(dv.Body), Err: err}
	default:
		return CallError{Err: err}
	}
}

// errorDetail extracts the conventional human readable message
// from a DBus error body.
func errorDetail(body []any) string {
	if len(body) == 0 {
		return ""
	}
	if s, ok := body[0].(string); ok {
		return s
	}
	return ""
}
