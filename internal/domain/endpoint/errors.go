package endpoint

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateRegistration = errors.New("duplicate endpoint registration")
	ErrNotFound              = errors.New("unknown command")
	ErrRegistrySealed        = errors.New("endpoint registry is sealed")
	ErrInvalidEndpoint       = errors.New("invalid endpoint")
	ErrNoContinuation        = errors.New("endpoint handler returned without calling next")
	ErrNoSession             = errors.New("command requires a session")
	ErrInvalidArgument       = errors.New("invalid argument")
)

// HandlerError is a failure raised by an endpoint's own logic. The cause is
// preserved for errors.Is/As at the translation layer.
type HandlerError struct {
	Command string
	ID      string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Command, e.ID, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
