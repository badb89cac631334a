package notifications

import (
	"context"
	"fmt"
)

// Dispatcher routes rendered notifications to the sender for their channel.
type Dispatcher struct {
	senders map[ChannelType]Sender
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher(senders ...Sender) *Dispatcher {
	senderMap := make(map[ChannelType]Sender)
	for _, s := range senders {
		senderMap[s.Type()] = s
	}
	return &Dispatcher{senders: senderMap}
}

// Supports reports whether a sender is registered for the channel.
func (d *Dispatcher) Supports(channel ChannelType) bool {
	_, ok := d.senders[channel]
	return ok
}

// SendToChannel sends the notification through the channel's sender.
func (d *Dispatcher) SendToChannel(ctx context.Context, channel ChannelType, notification Notification) error {
	sender, ok := d.senders[channel]
	if !ok {
		return NewNonRetryableError(fmt.Errorf("%w: %s", ErrNoSender, channel))
	}
	if notification.To == "" {
		return NewNonRetryableError(ErrEmptyRecipient)
	}
	return sender.Send(ctx, notification)
}
