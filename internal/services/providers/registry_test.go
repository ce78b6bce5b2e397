package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/checkin/internal/common"
	"github.com/ternarybob/checkin/internal/models"
)

func TestDefaultRegistry(t *testing.T) {
	registry := NewRegistry(nil)

	assert.Equal(t, []string{"agentrouter", "anyrouter", "tribiosapi"}, registry.Names())

	anyrouter, err := registry.Resolve("anyrouter")
	require.NoError(t, err)
	assert.True(t, anyrouter.RequiresBypass())
	assert.True(t, anyrouter.HasLegacyCheckin())
	assert.True(t, anyrouter.HasCheckin())
	assert.Equal(t, "https://anyrouter.top/login", anyrouter.LoginURL())

	agentrouter, err := registry.Resolve("agentrouter")
	require.NoError(t, err)
	assert.False(t, agentrouter.RequiresBypass())
	assert.False(t, agentrouter.HasLegacyCheckin())
}

func TestResolveUnknown(t *testing.T) {
	_, err := NewRegistry(nil).Resolve("nope")
	assert.ErrorIs(t, err, common.ErrProviderNotFound)
	assert.ErrorIs(t, err, common.ErrConfig)
}

func TestResolveReturnsCopy(t *testing.T) {
	registry := NewRegistry(nil)

	first, err := registry.Resolve("anyrouter")
	require.NoError(t, err)
	first.Domain = "https://mutated.example"

	second, err := registry.Resolve("anyrouter")
	require.NoError(t, err)
	assert.Equal(t, "https://anyrouter.top", second.Domain)
}

func TestOverrideParser(t *testing.T) {
	parser := NewOverrideParser(arbor.NewLogger())

	overrides := parser.Parse(`{
		"anyrouter": {"domain": "https://mirror.example/"},
		"custom": {
			"domain": "https://custom.example",
			"sign_in_path": null,
			"checkin_status_path": "/api/status",
			"api_user_key": "x-api-user",
			"bypass_method": "waf_cookies"
		},
		"no_domain": {"login_path": "/login"},
		"bad_url": {"domain": "not a url"},
		"bad_bypass": {"domain": "https://b.example", "bypass_method": "captcha"},
		"bad_type": {"domain": "https://c.example", "checkin_path": 5},
		"not_object": "https://d.example"
	}`)

	require.Len(t, overrides, 2)

	mirror := overrides["anyrouter"]
	require.NotNil(t, mirror)
	assert.Equal(t, "https://mirror.example", mirror.Domain)
	assert.Equal(t, models.BypassNone, mirror.BypassMethod, "an override replaces the default entirely")
	assert.Equal(t, models.DefaultSignInPath, *mirror.SignInPath)

	custom := overrides["custom"]
	require.NotNil(t, custom)
	assert.Nil(t, custom.SignInPath, "explicit null clears the path")
	assert.Equal(t, models.DefaultCheckinPath, *custom.CheckinPath)
	assert.Equal(t, "/api/status", *custom.CheckinStatusPath)
	assert.Equal(t, "x-api-user", custom.APIUserKey)
	assert.Equal(t, models.DefaultLoginPath, custom.LoginPath)
	assert.True(t, custom.RequiresBypass())

	registry := NewRegistry(overrides)
	assert.Equal(t, 4, registry.Len())
	resolved, err := registry.Resolve("anyrouter")
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example", resolved.Domain)
}

func TestOverrideParserIgnoresInvalidPayload(t *testing.T) {
	parser := NewOverrideParser(arbor.NewLogger())

	assert.Nil(t, parser.Parse(`not json`))
	assert.Nil(t, parser.Parse(`["anyrouter"]`))
	assert.Nil(t, parser.Load(common.ProvidersConfig{}))
	assert.Nil(t, parser.Load(common.ProvidersConfig{File: "/nonexistent/providers.json"}))
}
