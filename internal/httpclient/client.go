package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"

	"github.com/ternarybob/checkin/internal/models"
)

// SessionOptions configures a provider session
type SessionOptions struct {
	Timeout          time.Duration
	UserAgent        string
	AcceptLanguage   string
	CloudflareBypass bool
}

// Response is the transport-neutral view of a provider reply
type Response struct {
	StatusCode int
	Body       []byte
}

// Session is one account's HTTP client. It carries the merged cookies and the
// browser-like headers on every request and must be closed when the account is done.
type Session struct {
	client *resty.Client
}

// NewSession creates a session for provider with the account's cookies and api user id
func NewSession(provider *models.ProviderConfig, cookies models.Cookies, apiUser string, opts SessionOptions) *Session {
	client := resty.New()
	client.SetTimeout(opts.Timeout)

	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	// Accept-Encoding is left to the transport so compressed bodies are decoded
	client.SetHeaders(map[string]string{
		"User-Agent":      opts.UserAgent,
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": opts.AcceptLanguage,
		"Referer":         provider.Domain,
		"Origin":          provider.Domain,
		"Connection":      "keep-alive",
		"Sec-Fetch-Dest":  "empty",
		"Sec-Fetch-Mode":  "cors",
		"Sec-Fetch-Site":  "same-origin",
	})
	client.SetHeader(provider.APIUserKey, apiUser)

	httpCookies := make([]*http.Cookie, 0, len(cookies))
	for _, name := range cookies.Names() {
		httpCookies = append(httpCookies, &http.Cookie{Name: name, Value: cookies[name]})
	}
	client.SetCookies(httpCookies)

	return &Session{client: client}
}

// Get issues a GET and returns the raw reply. Only transport failures are errors.
func (s *Session) Get(ctx context.Context, url string) (*Response, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	return &Response{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
}

// PostJSON issues an empty-bodied AJAX style POST
func (s *Session) PostJSON(ctx context.Context, url string) (*Response, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Requested-With", "XMLHttpRequest").
		Post(url)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", url, err)
	}
	return &Response{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
}

// Close releases idle connections held by the session
func (s *Session) Close() {
	s.client.GetClient().CloseIdleConnections()
}
