package providers

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/titanous/json5"

	"github.com/ternarybob/checkin/internal/common"
	"github.com/ternarybob/checkin/internal/models"
)

// DefaultProviders returns the built-in provider catalog
func DefaultProviders() map[string]*models.ProviderConfig {
	return map[string]*models.ProviderConfig{
		"anyrouter": {
			Name:              "anyrouter",
			Domain:            "https://anyrouter.top",
			LoginPath:         models.DefaultLoginPath,
			SignInPath:        models.StringPtr(models.DefaultSignInPath),
			CheckinPath:       models.StringPtr(models.DefaultCheckinPath),
			CheckinStatusPath: models.StringPtr(models.DefaultCheckinStatusPath),
			UserInfoPath:      models.DefaultUserInfoPath,
			APIUserKey:        models.DefaultAPIUserKey,
			BypassMethod:      models.BypassWAFCookies,
		},
		// No legacy endpoint: fetching user info completes the check-in
		"agentrouter": {
			Name:              "agentrouter",
			Domain:            "https://agentrouter.org",
			LoginPath:         models.DefaultLoginPath,
			CheckinPath:       models.StringPtr(models.DefaultCheckinPath),
			CheckinStatusPath: models.StringPtr(models.DefaultCheckinStatusPath),
			UserInfoPath:      models.DefaultUserInfoPath,
			APIUserKey:        models.DefaultAPIUserKey,
			BypassMethod:      models.BypassNone,
		},
		"tribiosapi": {
			Name:              "tribiosapi",
			Domain:            "https://www.tribiosapi.top",
			LoginPath:         models.DefaultLoginPath,
			CheckinPath:       models.StringPtr(models.DefaultCheckinPath),
			CheckinStatusPath: models.StringPtr(models.DefaultCheckinStatusPath),
			UserInfoPath:      models.DefaultUserInfoPath,
			APIUserKey:        models.DefaultAPIUserKey,
			BypassMethod:      models.BypassNone,
		},
	}
}

// Registry resolves provider names to endpoint topology. It is immutable after NewRegistry.
type Registry struct {
	providers map[string]*models.ProviderConfig
}

// NewRegistry builds the catalog from the defaults plus overrides.
// An override replaces a default of the same name or adds a new entry.
func NewRegistry(overrides map[string]*models.ProviderConfig) *Registry {
	providers := DefaultProviders()
	for name, provider := range overrides {
		providers[name] = provider
	}
	return &Registry{providers: providers}
}

// Resolve returns a copy of the named provider or ErrProviderNotFound
func (r *Registry) Resolve(name string) (*models.ProviderConfig, error) {
	provider, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrProviderNotFound, name)
	}
	clone := *provider
	return &clone, nil
}

// Names returns the registered provider names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered providers
func (r *Registry) Len() int {
	return len(r.providers)
}

// OverrideParser turns the structured override payload into provider configs
type OverrideParser struct {
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewOverrideParser creates a new override parser
func NewOverrideParser(logger arbor.ILogger) *OverrideParser {
	return &OverrideParser{
		validate: validator.New(),
		logger:   logger,
	}
}

// Load reads overrides from inline JSON or, failing that, the configured file.
// Every problem is a warning; the defaults are always usable.
func (p *OverrideParser) Load(config common.ProvidersConfig) map[string]*models.ProviderConfig {
	raw := strings.TrimSpace(config.JSON)
	if raw == "" && config.File != "" {
		data, err := os.ReadFile(config.File)
		if err != nil {
			p.logger.Warn().Err(err).Str("path", config.File).Msg("Failed to read providers file, using default configuration only")
			return nil
		}
		raw = strings.TrimSpace(string(data))
	}
	if raw == "" {
		return nil
	}
	return p.Parse(raw)
}

// Parse decodes a JSON object keyed by provider name. Malformed entries are skipped.
func (p *OverrideParser) Parse(raw string) map[string]*models.ProviderConfig {
	var payload interface{}
	if err := json5.Unmarshal([]byte(raw), &payload); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to parse provider overrides, using default configuration only")
		return nil
	}

	entries, ok := payload.(map[string]interface{})
	if !ok {
		p.logger.Warn().Msg("Provider overrides must be a JSON object, ignoring custom providers")
		return nil
	}

	overrides := make(map[string]*models.ProviderConfig, len(entries))
	for name, entry := range entries {
		provider, err := p.parseEntry(name, entry)
		if err != nil {
			p.logger.Warn().Err(err).Str("provider", name).Msg("Failed to parse provider, skipping")
			continue
		}
		overrides[name] = provider
	}

	p.logger.Info().
		Int("custom_providers", len(overrides)).
		Int("skipped", len(entries)-len(overrides)).
		Msg("Loaded custom provider overrides")

	return overrides
}

// parseEntry applies the per-field defaults. An absent optional path takes the
// default path; an explicit null clears it.
func (p *OverrideParser) parseEntry(name string, entry interface{}) (*models.ProviderConfig, error) {
	fields, ok := entry.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: entry is not an object", common.ErrConfig)
	}

	domain, err := requiredString(fields, "domain")
	if err != nil {
		return nil, err
	}

	provider := &models.ProviderConfig{
		Name:         name,
		Domain:       strings.TrimRight(domain, "/"),
		LoginPath:    models.DefaultLoginPath,
		UserInfoPath: models.DefaultUserInfoPath,
		APIUserKey:   models.DefaultAPIUserKey,
	}

	for key, target := range map[string]*string{
		"login_path":     &provider.LoginPath,
		"user_info_path": &provider.UserInfoPath,
		"api_user_key":   &provider.APIUserKey,
	} {
		if value, present, err := optionalString(fields, key); err != nil {
			return nil, err
		} else if present && value != nil {
			*target = *value
		}
	}

	for key, spec := range map[string]struct {
		target   **string
		fallback string
	}{
		"sign_in_path":        {&provider.SignInPath, models.DefaultSignInPath},
		"checkin_path":        {&provider.CheckinPath, models.DefaultCheckinPath},
		"checkin_status_path": {&provider.CheckinStatusPath, models.DefaultCheckinStatusPath},
	} {
		value, present, err := optionalString(fields, key)
		if err != nil {
			return nil, err
		}
		if !present {
			*spec.target = models.StringPtr(spec.fallback)
			continue
		}
		*spec.target = value
	}

	bypass, present, err := optionalString(fields, "bypass_method")
	if err != nil {
		return nil, err
	}
	if present && bypass != nil {
		provider.BypassMethod = models.BypassMethod(*bypass)
	}

	if err := p.validate.Struct(provider); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfig, err)
	}

	return provider, nil
}

func requiredString(fields map[string]interface{}, key string) (string, error) {
	value, present, err := optionalString(fields, key)
	if err != nil {
		return "", err
	}
	if !present || value == nil || *value == "" {
		return "", fmt.Errorf("%w: missing %s", common.ErrConfig, key)
	}
	return *value, nil
}

// optionalString distinguishes absent (present=false), null (nil) and a string value
func optionalString(fields map[string]interface{}, key string) (*string, bool, error) {
	raw, present := fields[key]
	if !present {
		return nil, false, nil
	}
	if raw == nil {
		return nil, true, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, true, fmt.Errorf("%w: %s must be a string", common.ErrConfig, key)
	}
	return &s, true, nil
}
