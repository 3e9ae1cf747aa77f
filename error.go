package canbutton

import "errors"

type unrecoverableError struct {
	error
}

func (e unrecoverableError) Error() string {
	if e.error == nil {
		return "unrecoverable error"
	}
	return e.error.Error()
}

func (e unrecoverableError) Unwrap() error {
	return e.error
}

// Unrecoverable wraps an error in `unrecoverableError` struct
func Unrecoverable(err error) error {
	return unrecoverableError{err}
}

// IsRecoverable checks if error is an instance of `unrecoverableError`
func IsRecoverable(err error) bool {
	if _, ok := err.(unrecoverableError); ok {
		return false
	}
	return true
}

var (
	ErrTxQueueFull      = errors.New("transmit queue full")
	ErrDroppedFrame     = errors.New("inbound queue full, frame dropped")
	ErrControllerClosed = errors.New("controller closed")
	ErrQueueClosed      = errors.New("receive queue closed")
	ErrDeviceNotReady   = errors.New("CAN device not ready")
	ErrEventChannelFull = errors.New("event channel full")
)
