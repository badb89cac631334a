package notifications

import "errors"

// Delivery errors.
var (
	ErrQueueFull      = errors.New("notification queue is full")
	ErrQueueClosed    = errors.New("notification queue is closed")
	ErrNoSender       = errors.New("no sender for channel")
	ErrEmptyRecipient = errors.New("recipient is empty")
)
