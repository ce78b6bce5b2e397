package interfaces

import "context"

// MessageKind selects how channels render a message body
type MessageKind string

const (
	MessageText MessageKind = "text"
	MessageHTML MessageKind = "html"
)

// Notifier delivers one title/body pair to every configured channel.
// Channel failures are logged by the implementation and never returned.
type Notifier interface {
	PushMessage(ctx context.Context, title, body string, kind MessageKind)
}

// NotifyChannel is a single delivery target (email, webhook, desktop)
type NotifyChannel interface {
	// Name is used in logs
	Name() string

	// Configured reports whether the channel has the settings it needs
	Configured() bool

	// Send delivers the message
	Send(ctx context.Context, title, body string, kind MessageKind) error
}
