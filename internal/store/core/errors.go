package core

import "errors"

var (
	// ErrNotFound: no existe registro para ese ExternalID.
	ErrNotFound = errors.New("store: verified user not found")
)

// IsNotFound reporta si err es (o envuelve) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
