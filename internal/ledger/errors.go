package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrRemote       = errors.New("remote call failed")
)

// InvalidInputError reports an address or object id that was rejected
// before any request was sent to the node.
type InvalidInputError struct {
	Field string
	Value string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s format %q: must start with %s", e.Field, e.Value, AddressPrefix)
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// RemoteError wraps a transport failure, an unexpected HTTP status or a
// JSON-RPC error object returned by the node.
type RemoteError struct {
	Method string
	Status int
	Code   int
	Err    error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Code != 0:
		return fmt.Sprintf("%s: rpc error %d: %v", e.Method, e.Code, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: node returned status %d: %v", e.Method, e.Status, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Method, e.Err)
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}
