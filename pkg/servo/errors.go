package servo

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrChannelOutOfRange is returned when attaching to a channel outside 0-15.
	ErrChannelOutOfRange = errors.New("servo: channel out of range")

	// ErrChannelUnavailable is returned when the channel is held by another servo.
	ErrChannelUnavailable = errors.New("servo: channel already attached")

	// ErrAlreadyAttached is returned by Attach on a servo that is still attached.
	ErrAlreadyAttached = errors.New("servo: servo already attached, detach first")

	ErrInvalidPulseRange = errors.New("servo: invalid pulse width range")

	ErrNotInitialized = errors.New("servo: controller not initialized")
)

// AttachError records the channel an attach was attempted on.
type AttachError struct {
	Channel int
	Err     error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("attach channel %d: %v", e.Channel, e.Err)
}

func (e *AttachError) Unwrap() error {
	return e.Err
}
