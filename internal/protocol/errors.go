package protocol

import (
	"errors"
	"fmt"
)

// ErrNoSuchClient is returned by outbound command builders when the acting
// identifier is not an internally-owned client or server.
var ErrNoSuchClient = errors.New("no such internal client or server")

// ErrIDExhausted is returned when the identifier space of a UID generator
// has been fully consumed.
var ErrIDExhausted = errors.New("identifier space exhausted")

// ProtocolError indicates a fatal protocol condition: the uplink sent an
// explicit error frame, or a peer attempted an operation that cannot be a
// valid state transition (such as splitting our own server). The connection
// must be terminated; reconnection policy belongs to the caller.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return e.Reason
}

func protocolErrorf(format string, args ...any) error {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// IsProtocolFatal reports whether err requires disconnecting from the
// uplink.
func IsProtocolFatal(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
