// Package notifications delivers incident alerts to resolver groups and callers.
package notifications

import (
	"context"

	"github.com/bissquit/onestop-itsm/internal/domain"
)

// ChannelType identifies a delivery channel.
type ChannelType string

// Channel types.
const (
	ChannelEmail      ChannelType = "email"
	ChannelMattermost ChannelType = "mattermost"
)

// Notification is a rendered message addressed to one target.
type Notification struct {
	To      string
	Subject string
	Body    string
	// Link points at the incident in the console. Optional.
	Link     string
	Priority domain.Priority
}

// Sender delivers notifications over one channel type.
type Sender interface {
	Type() ChannelType
	Send(ctx context.Context, notification Notification) error
}
