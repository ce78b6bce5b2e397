package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ternarybob/checkin/internal/common"
	"github.com/ternarybob/checkin/internal/interfaces"
)

// sendFunc delivers a composed message; replaced in tests
type sendFunc func(message *email.Email, addr string, auth smtp.Auth, tlsConfig *tls.Config) error

// EmailChannel sends over SMTP with implicit TLS. Text messages also carry an
// HTML alternative rendered with goldmark.
type EmailChannel struct {
	config   common.EmailConfig
	markdown goldmark.Markdown
	send     sendFunc
}

// NewEmailChannel creates the SMTP channel
func NewEmailChannel(config common.EmailConfig) *EmailChannel {
	return &EmailChannel{
		config: config,
		markdown: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
			),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
				html.WithXHTML(),
			),
		),
		send: func(message *email.Email, addr string, auth smtp.Auth, tlsConfig *tls.Config) error {
			return message.SendWithTLS(addr, auth, tlsConfig)
		},
	}
}

func (c *EmailChannel) Name() string {
	return "email"
}

func (c *EmailChannel) Configured() bool {
	return c.config.User != "" && c.config.Password != "" && c.config.To != ""
}

// Send composes and delivers the message. The SMTP exchange does not observe ctx.
func (c *EmailChannel) Send(ctx context.Context, title, body string, kind interfaces.MessageKind) error {
	host, err := c.smtpServer()
	if err != nil {
		return err
	}

	message, err := c.compose(title, body, kind)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", host, c.config.Port)
	auth := smtp.PlainAuth("", c.config.User, c.config.Password, host)
	return c.send(message, addr, auth, &tls.Config{ServerName: host})
}

func (c *EmailChannel) compose(title, body string, kind interfaces.MessageKind) (*email.Email, error) {
	message := email.NewEmail()
	message.From = fmt.Sprintf("%s <%s>", c.config.FromName, c.config.User)
	message.To = []string{c.config.To}
	message.Subject = title

	if kind == interfaces.MessageHTML {
		message.HTML = []byte(body)
		return message, nil
	}

	message.Text = []byte(body)
	var buf bytes.Buffer
	if err := c.markdown.Convert([]byte(body), &buf); err != nil {
		return nil, fmt.Errorf("failed to render HTML body: %w", err)
	}
	message.HTML = buf.Bytes()
	return message, nil
}

// smtpServer is the configured server or smtp.<domain of the sender>
func (c *EmailChannel) smtpServer() (string, error) {
	if c.config.SMTPServer != "" {
		return c.config.SMTPServer, nil
	}
	_, domain, ok := strings.Cut(c.config.User, "@")
	if !ok || domain == "" {
		return "", errors.New("cannot derive SMTP server from sender address")
	}
	return "smtp." + domain, nil
}
