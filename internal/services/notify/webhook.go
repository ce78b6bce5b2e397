package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/ternarybob/checkin/internal/common"
	"github.com/ternarybob/checkin/internal/interfaces"
)

// webhookChannel posts a JSON payload built from title and body to a URL
type webhookChannel struct {
	name    string
	url     string
	client  *resty.Client
	payload func(title, body string) interface{}
}

func (c *webhookChannel) Name() string {
	return c.name
}

func (c *webhookChannel) Configured() bool {
	return c.url != ""
}

func (c *webhookChannel) Send(ctx context.Context, title, body string, kind interfaces.MessageKind) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(c.payload(title, body)).
		Post(c.url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode(), common.Truncate(resp.String()))
	}
	return nil
}

// NewPushPlusChannel sends through PushPlus with the html template
func NewPushPlusChannel(client *resty.Client, config common.PushPlusConfig) interfaces.NotifyChannel {
	url := ""
	if config.Token != "" {
		url = config.Endpoint
	}
	return &webhookChannel{
		name:   "pushplus",
		url:    url,
		client: client,
		payload: func(title, body string) interface{} {
			return map[string]string{
				"token":    config.Token,
				"title":    title,
				"content":  body,
				"template": "html",
			}
		},
	}
}

// NewServerChanChannel sends through ServerChan; the send key is part of the URL
func NewServerChanChannel(client *resty.Client, config common.ServerConfig) interfaces.NotifyChannel {
	url := ""
	if config.SendKey != "" {
		url = fmt.Sprintf("%s/%s.send", strings.TrimRight(config.Endpoint, "/"), config.SendKey)
	}
	return &webhookChannel{
		name:   "serverchan",
		url:    url,
		client: client,
		payload: func(title, body string) interface{} {
			return map[string]string{
				"title": title,
				"desp":  body,
			}
		},
	}
}

// NewDingTalkChannel sends a DingTalk robot text message
func NewDingTalkChannel(client *resty.Client, config common.WebhookConfig) interfaces.NotifyChannel {
	return &webhookChannel{
		name:    "dingtalk",
		url:     config.Webhook,
		client:  client,
		payload: textMessage,
	}
}

// NewWeComChannel sends a WeCom group robot text message
func NewWeComChannel(client *resty.Client, config common.WebhookConfig) interfaces.NotifyChannel {
	return &webhookChannel{
		name:    "wecom",
		url:     config.Webhook,
		client:  client,
		payload: textMessage,
	}
}

// NewFeishuChannel sends a Feishu interactive card with a markdown element
func NewFeishuChannel(client *resty.Client, config common.WebhookConfig) interfaces.NotifyChannel {
	return &webhookChannel{
		name:   "feishu",
		url:    config.Webhook,
		client: client,
		payload: func(title, body string) interface{} {
			return map[string]interface{}{
				"msg_type": "interactive",
				"card": map[string]interface{}{
					"elements": []map[string]string{
						{"tag": "markdown", "content": body, "text_align": "left"},
					},
					"header": map[string]interface{}{
						"template": "blue",
						"title":    map[string]string{"content": title, "tag": "plain_text"},
					},
				},
			}
		},
	}
}

// textMessage is the robot payload shared by DingTalk and WeCom
func textMessage(title, body string) interface{} {
	return map[string]interface{}{
		"msgtype": "text",
		"text":    map[string]string{"content": title + "\n" + body},
	}
}
