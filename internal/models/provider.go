package models

import "strings"

// BypassMethod identifies how a provider's edge security layer is satisfied
type BypassMethod string

const (
	// BypassNone means account cookies are sent as-is
	BypassNone BypassMethod = ""
	// BypassWAFCookies means anti-bot cookies must be acquired from a browser first
	BypassWAFCookies BypassMethod = "waf_cookies"
)

// Default endpoint paths shared by new-api style gateways
const (
	DefaultLoginPath         = "/login"
	DefaultSignInPath        = "/api/user/sign_in"
	DefaultCheckinPath       = "/api/user/checkin"
	DefaultCheckinStatusPath = "/api/user/checkin/status"
	DefaultUserInfoPath      = "/api/user/self"
	DefaultAPIUserKey        = "new-api-user"
)

// ProviderConfig describes the endpoint topology of one API-gateway provider.
// Optional paths are nil when the provider does not expose that endpoint.
type ProviderConfig struct {
	Name              string       `json:"name" validate:"required"`
	Domain            string       `json:"domain" validate:"required,url"`                          // Base URL without trailing slash
	LoginPath         string       `json:"login_path" validate:"required"`                          // Page visited by the browser to obtain WAF cookies
	SignInPath        *string      `json:"sign_in_path,omitempty"`                                  // Legacy check-in endpoint
	CheckinPath       *string      `json:"checkin_path,omitempty"`                                  // New check-in endpoint
	CheckinStatusPath *string      `json:"checkin_status_path,omitempty"`                           // Reports whether today's check-in already happened
	UserInfoPath      string       `json:"user_info_path" validate:"required"`                      // Balance endpoint
	APIUserKey        string       `json:"api_user_key" validate:"required"`                        // Header carrying the account's api user id
	BypassMethod      BypassMethod `json:"bypass_method,omitempty" validate:"omitempty,oneof=waf_cookies"` // Anti-bot requirement
}

// StringPtr returns a pointer to s, for populating optional paths
func StringPtr(s string) *string {
	return &s
}

// RequiresBypass reports whether WAF cookies must be acquired before any API call
func (p *ProviderConfig) RequiresBypass() bool {
	return p.BypassMethod == BypassWAFCookies
}

// HasCheckin reports whether the provider exposes the new check-in endpoint
func (p *ProviderConfig) HasCheckin() bool {
	return p.CheckinPath != nil && *p.CheckinPath != ""
}

// HasLegacyCheckin reports whether the provider exposes the legacy sign-in endpoint
func (p *ProviderConfig) HasLegacyCheckin() bool {
	return p.SignInPath != nil && *p.SignInPath != ""
}

// HasStatus reports whether the provider exposes a check-in status endpoint
func (p *ProviderConfig) HasStatus() bool {
	return p.CheckinStatusPath != nil && *p.CheckinStatusPath != ""
}

// AutoCheckin reports whether check-in happens implicitly when user info is fetched
func (p *ProviderConfig) AutoCheckin() bool {
	return !p.HasCheckin() && !p.HasLegacyCheckin()
}

// URL joins the provider domain with an endpoint path
func (p *ProviderConfig) URL(path string) string {
	return strings.TrimRight(p.Domain, "/") + path
}

// LoginURL is the page the cookie gateway renders
func (p *ProviderConfig) LoginURL() string {
	return p.URL(p.LoginPath)
}
