// Package messaging delivers chat messages to clients, drivers and dispatchers.
package messaging

import (
	"context"
	"errors"
)

// ErrDelivery is returned when a message could not be handed to the transport.
var ErrDelivery = errors.New("message delivery failed")

// Action is an abstract reply option attached to a message.
// The transport renders it as a button; Command is sent back when chosen.
type Action struct {
	Label   string `json:"label"`
	Command string `json:"command"`
}

// NewAction builds an action whose command is "verb:arg".
func NewAction(label, verb, arg string) Action {
	if arg == "" {
		return Action{Label: label, Command: verb}
	}
	return Action{Label: label, Command: verb + ":" + arg}
}

// Channel is the outbound side of the chat transport.
type Channel interface {
	SendText(ctx context.Context, chatID int64, text string, actions ...Action) error
	SendPhoto(ctx context.Context, chatID int64, photoRef, caption string) error
	ClearActions(ctx context.Context, chatID int64, messageID string) error
}
