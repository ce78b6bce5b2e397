package notify

import (
	"context"

	"github.com/gen2brain/beeep"

	"github.com/ternarybob/checkin/internal/common"
	"github.com/ternarybob/checkin/internal/interfaces"
)

// DesktopChannel raises a local desktop notification, for interactive runs
type DesktopChannel struct {
	enabled bool
	notify  func(title, message string) error
}

// NewDesktopChannel creates the desktop channel; it is opt-in
func NewDesktopChannel(config common.DesktopConfig) *DesktopChannel {
	return &DesktopChannel{
		enabled: config.Enabled,
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

func (c *DesktopChannel) Name() string {
	return "desktop"
}

func (c *DesktopChannel) Configured() bool {
	return c.enabled
}

func (c *DesktopChannel) Send(ctx context.Context, title, body string, kind interfaces.MessageKind) error {
	return c.notify(title, body)
}
