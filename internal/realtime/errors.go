package realtime

import (
	"errors"
	"fmt"
)

var (
	// ErrBroadcasterClosed is returned when subscribing to or publishing on a closed broadcaster.
	ErrBroadcasterClosed = errors.New("realtime: broadcaster closed")
	errEmptyUser         = errors.New("realtime: user id is required")
)

// Rejection reasons reported by the connection gate.
const (
	ReasonMissingCredential = "missing_credential"
	ReasonInvalidCredential = "invalid_credential"
	ReasonVerifierError     = "verifier_error"
)

// AuthRejected is returned by the gate when a connection attempt is refused.
type AuthRejected struct {
	Reason string
	Err    error
}

func (e *AuthRejected) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("realtime: connection rejected (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("realtime: connection rejected (%s)", e.Reason)
}

func (e *AuthRejected) Unwrap() error {
	return e.Err
}

// PublishError reports an event that could not be handed to the broadcast fabric.
type PublishError struct {
	UserID string
	Err    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("realtime: publish to user %s: %v", e.UserID, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}
