package checkin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/checkin/internal/common"
	"github.com/ternarybob/checkin/internal/httpclient"
	"github.com/ternarybob/checkin/internal/models"
)

// fakeProvider is an httptest server speaking the new-api endpoints
type fakeProvider struct {
	*httptest.Server

	mu       sync.Mutex
	hits     map[string]int
	requests []*http.Request

	userInfo func(w http.ResponseWriter)
	status   func(w http.ResponseWriter)
	checkin  func(w http.ResponseWriter)
	signIn   func(w http.ResponseWriter)
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()

	p := &fakeProvider{
		hits: map[string]int{},
		userInfo: func(w http.ResponseWriter) {
			fmt.Fprint(w, `{"success": true, "data": {"quota": 25000000, "used_quota": 1500000}}`)
		},
		status: func(w http.ResponseWriter) {
			fmt.Fprint(w, `{"success": true, "data": {"checked": false}}`)
		},
		checkin: func(w http.ResponseWriter) {
			fmt.Fprint(w, `{"success": true}`)
		},
		signIn: func(w http.ResponseWriter) {
			fmt.Fprint(w, `{"ret": 1}`)
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/self", p.record(http.MethodGet, func(w http.ResponseWriter) { p.userInfo(w) }))
	mux.HandleFunc("/api/user/checkin/status", p.record(http.MethodGet, func(w http.ResponseWriter) { p.status(w) }))
	mux.HandleFunc("/api/user/checkin", p.record(http.MethodPost, func(w http.ResponseWriter) { p.checkin(w) }))
	mux.HandleFunc("/api/user/sign_in", p.record(http.MethodPost, func(w http.ResponseWriter) { p.signIn(w) }))

	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Close)
	return p
}

func (p *fakeProvider) record(method string, handle func(w http.ResponseWriter)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.hits[r.Method+" "+r.URL.Path]++
		p.requests = append(p.requests, r)
		p.mu.Unlock()

		if r.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handle(w)
	}
}

func (p *fakeProvider) count(key string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits[key]
}

func (p *fakeProvider) posts() int {
	return p.count("POST /api/user/checkin") + p.count("POST /api/user/sign_in")
}

// provider returns the full topology pointed at the fake server
func (p *fakeProvider) provider(name string) *models.ProviderConfig {
	return &models.ProviderConfig{
		Name:              name,
		Domain:            p.URL,
		LoginPath:         models.DefaultLoginPath,
		SignInPath:        models.StringPtr(models.DefaultSignInPath),
		CheckinPath:       models.StringPtr(models.DefaultCheckinPath),
		CheckinStatusPath: models.StringPtr(models.DefaultCheckinStatusPath),
		UserInfoPath:      models.DefaultUserInfoPath,
		APIUserKey:        models.DefaultAPIUserKey,
	}
}

type staticResolver map[string]*models.ProviderConfig

func (r staticResolver) Resolve(name string) (*models.ProviderConfig, error) {
	provider, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrProviderNotFound, name)
	}
	clone := *provider
	return &clone, nil
}

type fakeGateway struct {
	cookies  map[string]string
	err      error
	loginURL string
	calls    int
}

func (g *fakeGateway) Acquire(ctx context.Context, accountName, loginURL string) (map[string]string, error) {
	g.calls++
	g.loginURL = loginURL
	return g.cookies, g.err
}

func newTestService(resolver staticResolver, gateway *fakeGateway) *Service {
	session := httpclient.SessionOptions{
		Timeout:        5 * time.Second,
		UserAgent:      common.DefaultUserAgent,
		AcceptLanguage: "en",
	}
	if gateway == nil {
		return NewService(resolver, nil, session, arbor.NewLogger())
	}
	return NewService(resolver, gateway, session, arbor.NewLogger())
}

func testAccount(provider string) models.AccountConfig {
	return models.AccountConfig{
		Cookies:  models.Cookies{"session": "abc"},
		APIUser:  "1001",
		Provider: provider,
	}
}

func TestCheckInNewEndpointSuccess(t *testing.T) {
	server := newFakeProvider(t)
	service := newTestService(staticResolver{"p": server.provider("p")}, nil)

	result := service.CheckIn(context.Background(), 0, testAccount("p"))

	assert.Equal(t, models.Succeeded(false), result.Outcome)
	assert.Equal(t, "account_1", result.Key)
	assert.Equal(t, "Account 1", result.Name)
	require.NotNil(t, result.UserInfo)
	assert.True(t, result.UserInfo.Success)
	assert.Equal(t, 50.0, result.UserInfo.Quota)
	assert.Equal(t, 3.0, result.UserInfo.UsedQuota)

	assert.Equal(t, 1, server.count("POST /api/user/checkin"))
	assert.Equal(t, 0, server.count("POST /api/user/sign_in"), "no legacy call after new endpoint success")
}

func TestCheckInFallsBackToLegacyExactlyOnce(t *testing.T) {
	server := newFakeProvider(t)
	server.checkin = func(w http.ResponseWriter) {
		fmt.Fprint(w, `{"success": false, "message": "endpoint disabled"}`)
	}
	service := newTestService(staticResolver{"p": server.provider("p")}, nil)

	result := service.CheckIn(context.Background(), 0, testAccount("p"))

	assert.Equal(t, models.Succeeded(false), result.Outcome)
	assert.Equal(t, 1, server.count("POST /api/user/checkin"))
	assert.Equal(t, 1, server.count("POST /api/user/sign_in"))
}

func TestCheckInFallsBackOnHTTPError(t *testing.T) {
	server := newFakeProvider(t)
	server.checkin = func(w http.ResponseWriter) { w.WriteHeader(http.StatusNotFound) }
	server.signIn = func(w http.ResponseWriter) { fmt.Fprint(w, `{"ret": 0, "msg": "sign-in closed"}`) }
	service := newTestService(staticResolver{"p": server.provider("p")}, nil)

	result := service.CheckIn(context.Background(), 0, testAccount("p"))

	assert.Equal(t, models.Failed("sign-in closed"), result.Outcome)
	assert.Equal(t, 1, server.count("POST /api/user/sign_in"))
}

func TestCheckInStatusShortCircuit(t *testing.T) {
	server := newFakeProvider(t)
	server.status = func(w http.ResponseWriter) {
		fmt.Fprint(w, `{"success": true, "data": {"checked": true}}`)
	}
	service := newTestService(staticResolver{"p": server.provider("p")}, nil)

	result := service.CheckIn(context.Background(), 0, testAccount("p"))

	assert.Equal(t, models.Succeeded(true), result.Outcome)
	assert.Equal(t, 0, server.posts(), "no check-in POST once status reports checked")
	require.NotNil(t, result.UserInfo)
	assert.True(t, result.UserInfo.Success)
}

func TestCheckInStatusFailureIsUnknown(t *testing.T) {
	server := newFakeProvider(t)
	server.status = func(w http.ResponseWriter) { w.WriteHeader(http.StatusInternalServerError) }
	service := newTestService(staticResolver{"p": server.provider("p")}, nil)

	result := service.CheckIn(context.Background(), 0, testAccount("p"))

	assert.Equal(t, models.Succeeded(false), result.Outcome)
	assert.Equal(t, 1, server.count("POST /api/user/checkin"))
}

func TestCheckInAlreadyCheckedMessage(t *testing.T) {
	server := newFakeProvider(t)
	server.checkin = func(w http.ResponseWriter) {
		fmt.Fprint(w, `{"success": false, "message": "already checked in"}`)
	}
	service := newTestService(staticResolver{"p": server.provider("p")}, nil)

	result := service.CheckIn(context.Background(), 0, testAccount("p"))

	assert.Equal(t, models.Succeeded(true), result.Outcome)
	assert.Equal(t, 0, server.count("POST /api/user/sign_in"))
}

func TestCheckInNewFailureIsFinalWithoutLegacy(t *testing.T) {
	server := newFakeProvider(t)
	server.checkin = func(w http.ResponseWriter) {
		fmt.Fprint(w, `{"success": false, "message": "quota exhausted"}`)
	}
	provider := server.provider("p")
	provider.SignInPath = nil
	service := newTestService(staticResolver{"p": provider}, nil)

	result := service.CheckIn(context.Background(), 0, testAccount("p"))

	assert.Equal(t, models.Failed("quota exhausted"), result.Outcome)
	assert.Equal(t, 0, server.count("POST /api/user/sign_in"))
}

func TestCheckInLegacyOnly(t *testing.T) {
	server := newFakeProvider(t)
	provider := server.provider("p")
	provider.CheckinPath = nil
	provider.CheckinStatusPath = nil
	service := newTestService(staticResolver{"p": provider}, nil)

	result := service.CheckIn(context.Background(), 0, testAccount("p"))

	assert.Equal(t, models.Succeeded(false), result.Outcome)
	assert.Equal(t, 0, server.count("POST /api/user/checkin"))
	assert.Equal(t, 0, server.count("GET /api/user/checkin/status"))
	assert.Equal(t, 1, server.count("POST /api/user/sign_in"))
}

func TestCheckInAutoCheckinIgnoresInfoFailure(t *testing.T) {
	server := newFakeProvider(t)
	server.userInfo = func(w http.ResponseWriter) { w.WriteHeader(http.StatusInternalServerError) }
	provider := server.provider("p")
	provider.CheckinPath = nil
	provider.SignInPath = nil
	provider.CheckinStatusPath = nil
	service := newTestService(staticResolver{"p": provider}, nil)

	result := service.CheckIn(context.Background(), 0, testAccount("p"))

	assert.Equal(t, models.Succeeded(false), result.Outcome)
	assert.Equal(t, 0, server.posts())
	require.NotNil(t, result.UserInfo)
	assert.False(t, result.UserInfo.Success)
	assert.Equal(t, "❌ 获取用户信息失败: HTTP 500", result.UserInfo.Error)
}

func TestCheckInUserInfoWithoutData(t *testing.T) {
	server := newFakeProvider(t)
	server.userInfo = func(w http.ResponseWriter) {
		fmt.Fprint(w, `{"success": true, "data": null}`)
	}
	service := newTestService(staticResolver{"p": server.provider("p")}, nil)

	result := service.CheckIn(context.Background(), 0, testAccount("p"))

	assert.Equal(t, models.Succeeded(false), result.Outcome)
	require.NotNil(t, result.UserInfo)
	assert.False(t, result.UserInfo.Success, "a reply without data carries no balance")
	assert.Zero(t, result.UserInfo.Quota)
	assert.Contains(t, result.UserInfo.Error, "❌ 获取用户信息失败: ")
	assert.Contains(t, result.UserInfo.Error, common.ErrProtocol.Error())
}

func TestCheckInWAFCookies(t *testing.T) {
	server := newFakeProvider(t)
	provider := server.provider("p")
	provider.BypassMethod = models.BypassWAFCookies

	gateway := &fakeGateway{cookies: map[string]string{
		"acw_tc":     "tc",
		"cdn_sec_tc": "sec",
		"acw_sc__v2": "v2",
		"session":    "from-waf",
	}}
	service := newTestService(staticResolver{"p": provider}, gateway)

	result := service.CheckIn(context.Background(), 0, testAccount("p"))

	assert.Equal(t, models.Succeeded(false), result.Outcome)
	assert.Equal(t, 1, gateway.calls)
	assert.Equal(t, server.URL+"/login", gateway.loginURL)

	server.mu.Lock()
	defer server.mu.Unlock()
	require.NotEmpty(t, server.requests)
	for _, r := range server.requests {
		assert.Equal(t, "1001", r.Header.Get("new-api-user"))

		cookie, err := r.Cookie("acw_tc")
		require.NoError(t, err)
		assert.Equal(t, "tc", cookie.Value)

		session, err := r.Cookie("session")
		require.NoError(t, err)
		assert.Equal(t, "abc", session.Value, "account cookies win over WAF cookies")
	}
}

func TestCheckInIncompleteWAFCookies(t *testing.T) {
	server := newFakeProvider(t)
	provider := server.provider("p")
	provider.BypassMethod = models.BypassWAFCookies

	gateway := &fakeGateway{cookies: map[string]string{
		"cdn_sec_tc": "sec",
		"acw_sc__v2": "v2",
	}}
	service := newTestService(staticResolver{"p": provider}, gateway)

	result := service.CheckIn(context.Background(), 0, testAccount("p"))

	assert.False(t, result.Outcome.Success)
	assert.Contains(t, result.Outcome.Message, "acw_tc")
	assert.Nil(t, result.UserInfo)
	assert.Equal(t, 0, server.count("GET /api/user/self"), "no API call without complete WAF cookies")
	assert.Equal(t, 0, server.posts())
}

func TestCheckInGatewayError(t *testing.T) {
	server := newFakeProvider(t)
	provider := server.provider("p")
	provider.BypassMethod = models.BypassWAFCookies

	gateway := &fakeGateway{err: errors.New("chrome not found")}
	service := newTestService(staticResolver{"p": provider}, gateway)

	result := service.CheckIn(context.Background(), 0, testAccount("p"))

	assert.False(t, result.Outcome.Success)
	assert.Contains(t, result.Outcome.Message, "chrome not found")
	assert.Equal(t, 0, server.count("GET /api/user/self"))
}

func TestCheckInUnknownProvider(t *testing.T) {
	service := newTestService(staticResolver{}, nil)

	result := service.CheckIn(context.Background(), 2, testAccount("missing"))

	assert.Equal(t, models.Failed(`provider "missing" not found`), result.Outcome)
	assert.Equal(t, "account_3", result.Key)
}

func TestCheckInInvalidCookies(t *testing.T) {
	server := newFakeProvider(t)
	service := newTestService(staticResolver{"p": server.provider("p")}, nil)

	account := testAccount("p")
	account.Cookies = nil

	result := service.CheckIn(context.Background(), 0, account)

	assert.False(t, result.Outcome.Success)
	assert.Equal(t, 0, server.count("GET /api/user/self"))
}

func TestCheckInTransportError(t *testing.T) {
	server := newFakeProvider(t)
	provider := server.provider("p")
	server.Close()

	service := newTestService(staticResolver{"p": provider}, nil)

	result := service.CheckIn(context.Background(), 0, testAccount("p"))

	assert.False(t, result.Outcome.Success)
	assert.NotEmpty(t, result.Outcome.Message)
	assert.Nil(t, result.UserInfo, "user info is discarded when the account aborts")
}
