package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/checkin/internal/common"
	"github.com/ternarybob/checkin/internal/interfaces"
)

// GatewayConfig holds the browser settings for WAF cookie acquisition
type GatewayConfig struct {
	Headless          bool
	NoSandbox         bool
	UserAgent         string
	NavigationTimeout time.Duration
	ReadyTimeout      time.Duration
	SettleDelay       time.Duration
}

// NewGatewayConfig converts the TOML browser section into a GatewayConfig
func NewGatewayConfig(config common.BrowserConfig, fallbackUserAgent string) GatewayConfig {
	userAgent := config.UserAgent
	if userAgent == "" {
		userAgent = fallbackUserAgent
	}
	return GatewayConfig{
		Headless:          config.Headless,
		NoSandbox:         config.NoSandbox,
		UserAgent:         userAgent,
		NavigationTimeout: common.ParseDuration(config.NavigationTimeout, 60*time.Second),
		ReadyTimeout:      common.ParseDuration(config.ReadyTimeout, 5*time.Second),
		SettleDelay:       common.ParseDuration(config.SettleDelay, 3*time.Second),
	}
}

// CookieGateway launches a fresh headless Chrome per acquisition, loads the
// provider login page and harvests the WAF cookies the page sets.
type CookieGateway struct {
	config GatewayConfig
	logger arbor.ILogger
}

// NewCookieGateway creates a new chromedp backed cookie gateway
func NewCookieGateway(config GatewayConfig, logger arbor.ILogger) interfaces.CookieGateway {
	return &CookieGateway{
		config: config,
		logger: logger,
	}
}

// Acquire returns the WAF cookies set by loginURL. Every browser resource,
// including the temporary profile directory, is released before it returns.
func (g *CookieGateway) Acquire(ctx context.Context, accountName, loginURL string) (map[string]string, error) {
	logger := common.NewAccountLogger(g.logger, accountName)
	startTime := time.Now()

	profileDir, err := os.MkdirTemp("", "checkin-browser-")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create browser profile: %v", common.ErrAcquisition, err)
	}
	defer func() {
		if err := os.RemoveAll(profileDir); err != nil {
			logger.Warn().Err(err).Str("dir", profileDir).Msg("Failed to remove browser profile")
		}
	}()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", g.config.Headless),
		chromedp.Flag("no-sandbox", g.config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-web-security", true),
		chromedp.UserAgent(g.config.UserAgent),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserDataDir(profileDir),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, allocatorOpts...)
	defer allocatorCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	defer browserCancel()

	runCtx, runCancel := context.WithTimeout(browserCtx, g.config.NavigationTimeout)
	defer runCancel()

	logger.Info().Str("url", loginURL).Msg("Starting browser to get WAF cookies")

	if err := chromedp.Run(runCtx,
		network.Enable(),
		chromedp.Navigate(loginURL),
	); err != nil {
		logger.Error().Err(err).Str("url", loginURL).Msg("Failed to load login page")
		return nil, fmt.Errorf("%w: navigation failed: %v", common.ErrAcquisition, err)
	}

	g.waitForPage(runCtx, logger)

	var cookies []*network.Cookie
	if err := chromedp.Run(runCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().WithURLs([]string{loginURL}).Do(ctx)
			return err
		}),
	); err != nil {
		logger.Error().Err(err).Msg("Failed to read browser cookies")
		return nil, fmt.Errorf("%w: failed to read cookies: %v", common.ErrAcquisition, err)
	}

	waf := ExtractWAFCookies(cookies)
	missing := interfaces.MissingWAFCookies(waf)

	logger.Info().
		Int("cookies_seen", len(cookies)).
		Int("waf_cookies", len(waf)).
		Strs("missing", missing).
		Dur("duration", time.Since(startTime)).
		Msg("Browser cookie acquisition finished")

	return waf, nil
}

// waitForPage polls document.readyState; on timeout it falls back to a fixed delay
func (g *CookieGateway) waitForPage(ctx context.Context, logger *common.AccountLogger) {
	var ready bool
	err := chromedp.Run(ctx,
		chromedp.Poll("document.readyState === 'complete'", &ready,
			chromedp.WithPollingTimeout(g.config.ReadyTimeout)),
	)
	if err == nil {
		return
	}

	if errors.Is(err, context.Canceled) {
		return
	}

	logger.Debug().Err(err).Dur("settle_delay", g.config.SettleDelay).Msg("Page readiness wait timed out, using fixed delay")
	if err := chromedp.Run(ctx, chromedp.Sleep(g.config.SettleDelay)); err != nil {
		logger.Warn().Err(err).Msg("Settle delay interrupted")
	}
}

// ExtractWAFCookies keeps the cookies named in interfaces.RequiredWAFCookies
func ExtractWAFCookies(cookies []*network.Cookie) map[string]string {
	waf := make(map[string]string)
	for _, cookie := range cookies {
		for _, name := range interfaces.RequiredWAFCookies {
			if cookie.Name == name {
				waf[name] = cookie.Value
			}
		}
	}
	return waf
}
