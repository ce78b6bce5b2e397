package models

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultProvider is used when an account does not name one
const DefaultProvider = "anyrouter"

// Cookies is the normalized cookie set of an account, name -> value
type Cookies map[string]string

// ParseCookies normalizes the two accepted cookie shapes into Cookies.
// Accepted shapes are a JSON object of name -> value and a "k1=v1; k2=v2" string.
// Segments without '=' are dropped; anything else yields an empty set.
func ParseCookies(raw interface{}) Cookies {
	cookies := Cookies{}

	switch v := raw.(type) {
	case Cookies:
		for name, value := range v {
			cookies[name] = value
		}
	case map[string]string:
		for name, value := range v {
			cookies[name] = value
		}
	case map[string]interface{}:
		for name, value := range v {
			switch val := value.(type) {
			case string:
				cookies[name] = val
			case nil:
				continue
			default:
				cookies[name] = fmt.Sprint(val)
			}
		}
	case string:
		for _, part := range strings.Split(v, ";") {
			key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
			if !ok {
				continue
			}
			cookies[key] = value
		}
	}

	return cookies
}

// Merge returns the union of c and other; values in other win on name collision
func (c Cookies) Merge(other Cookies) Cookies {
	merged := make(Cookies, len(c)+len(other))
	for name, value := range c {
		merged[name] = value
	}
	for name, value := range other {
		merged[name] = value
	}
	return merged
}

// Names returns the cookie names in sorted order
func (c Cookies) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AccountConfig is one account entry. It is built once at startup and never mutated.
type AccountConfig struct {
	Cookies  Cookies `json:"cookies"`
	APIUser  string  `json:"api_user" validate:"required"` // Opaque id sent in the provider's api user header
	Provider string  `json:"provider" validate:"required"` // Key into the provider registry
	Name     string  `json:"name,omitempty"`               // Optional display name
}

// DisplayName returns the configured name or "Account N" (1-based)
func (a AccountConfig) DisplayName(index int) string {
	if a.Name != "" {
		return a.Name
	}
	return fmt.Sprintf("Account %d", index+1)
}

// Key returns the stable balance-snapshot key for the account at index
func Key(index int) string {
	return fmt.Sprintf("account_%d", index+1)
}
