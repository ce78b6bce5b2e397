package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/checkin/internal/common"
	"github.com/ternarybob/checkin/internal/interfaces"
)

// MultiNotifier fans a message out to every configured channel in order
type MultiNotifier struct {
	channels []interfaces.NotifyChannel
	logger   arbor.ILogger
}

// NewMultiNotifier creates a notifier over channels
func NewMultiNotifier(channels []interfaces.NotifyChannel, logger arbor.ILogger) *MultiNotifier {
	return &MultiNotifier{
		channels: channels,
		logger:   logger,
	}
}

// NewFromConfig builds the channel set from the notify section of the config
func NewFromConfig(config common.NotifyConfig, logger arbor.ILogger) *MultiNotifier {
	client := resty.New().SetTimeout(common.ParseDuration(config.Timeout, 15*time.Second))

	channels := []interfaces.NotifyChannel{
		NewEmailChannel(config.Email),
		NewPushPlusChannel(client, config.PushPlus),
		NewServerChanChannel(client, config.Server),
		NewDingTalkChannel(client, config.DingTalk),
		NewFeishuChannel(client, config.Feishu),
		NewWeComChannel(client, config.WeCom),
		NewDesktopChannel(config.Desktop),
	}
	return NewMultiNotifier(channels, logger)
}

// PushMessage delivers to each configured channel. Failures are logged and
// never stop the remaining channels.
func (n *MultiNotifier) PushMessage(ctx context.Context, title, body string, kind interfaces.MessageKind) {
	delivered := 0
	for _, channel := range n.channels {
		if !channel.Configured() {
			n.logger.Debug().Str("channel", channel.Name()).Msg("Notification channel not configured, skipping")
			continue
		}

		if err := channel.Send(ctx, title, body, kind); err != nil {
			err = fmt.Errorf("%w: %s: %v", common.ErrNotifyChannel, channel.Name(), err)
			n.logger.Warn().Err(err).Str("channel", channel.Name()).Msg("Message push failed")
			continue
		}

		delivered++
		n.logger.Info().Str("channel", channel.Name()).Msg("Message push successful")
	}

	n.logger.Info().
		Int("delivered", delivered).
		Int("channels", len(n.channels)).
		Msg("Notification dispatch complete")
}

// Channels returns the channel set, configured or not
func (n *MultiNotifier) Channels() []interfaces.NotifyChannel {
	return n.channels
}
