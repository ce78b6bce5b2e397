package interfaces

import "context"

// RequiredWAFCookies are the anti-bot cookies a WAF-protected provider expects.
// A gateway result missing any of them is a failure, never a partial success.
var RequiredWAFCookies = []string{"acw_tc", "cdn_sec_tc", "acw_sc__v2"}

// CookieGateway obtains anti-bot cookies by rendering a provider's login page.
// Implementations must release any browser resources before returning.
type CookieGateway interface {
	// Acquire returns the WAF cookies found for loginURL; completeness is
	// checked by the caller with MissingWAFCookies
	Acquire(ctx context.Context, accountName, loginURL string) (map[string]string, error)
}

// MissingWAFCookies returns the required names absent from cookies, in declaration order
func MissingWAFCookies(cookies map[string]string) []string {
	missing := []string{}
	for _, name := range RequiredWAFCookies {
		if _, ok := cookies[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}
