// -----------------------------------------------------------------------
// Account check-in state machine
// Init -> CookiesReady -> InfoFetched -> [StatusKnown] -> AttemptedNew
//      -> [FallbackLegacy] -> Done
// -----------------------------------------------------------------------

package checkin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/checkin/internal/common"
	"github.com/ternarybob/checkin/internal/httpclient"
	"github.com/ternarybob/checkin/internal/interfaces"
	"github.com/ternarybob/checkin/internal/models"
)

// State names a step of the per-account protocol, used in logs
type State string

const (
	StateInit           State = "init"
	StateCookiesReady   State = "cookies_ready"
	StateInfoFetched    State = "info_fetched"
	StateStatusKnown    State = "status_known"
	StateAttemptedNew   State = "attempted_new"
	StateFallbackLegacy State = "fallback_legacy"
	StateDone           State = "done"
)

// ProviderResolver resolves a provider name; *providers.Registry satisfies it
type ProviderResolver interface {
	Resolve(name string) (*models.ProviderConfig, error)
}

// Service runs the check-in protocol for one account at a time
type Service struct {
	providers ProviderResolver
	gateway   interfaces.CookieGateway
	session   httpclient.SessionOptions
	logger    arbor.ILogger
}

// NewService creates a new check-in service. gateway may be nil when no
// configured provider requires WAF cookies.
func NewService(providers ProviderResolver, gateway interfaces.CookieGateway, session httpclient.SessionOptions, logger arbor.ILogger) *Service {
	return &Service{
		providers: providers,
		gateway:   gateway,
		session:   session,
		logger:    logger,
	}
}

// run carries the per-account state through the protocol
type run struct {
	index    int
	name     string
	account  models.AccountConfig
	provider *models.ProviderConfig
	session  *httpclient.Session
	state    State
	logger   *common.AccountLogger
}

func (r *run) transition(to State) {
	r.logger.Debug().
		Str("from", string(r.state)).
		Str("to", string(to)).
		Msg("Check-in state transition")
	r.state = to
}

// CheckIn executes the full protocol for one account. It never returns an
// error: every failure is folded into a Failure outcome.
func (s *Service) CheckIn(ctx context.Context, index int, account models.AccountConfig) models.AccountResult {
	name := account.DisplayName(index)
	result := models.AccountResult{
		Index:    index,
		Key:      models.Key(index),
		Name:     name,
		Provider: account.Provider,
	}

	logger := common.NewAccountLogger(s.logger, name)

	provider, err := s.providers.Resolve(account.Provider)
	if err != nil {
		logger.Error().Err(err).Str("provider", account.Provider).Msg("Provider not found in configuration")
		result.Outcome = models.Failed(fmt.Sprintf("provider %q not found", account.Provider))
		return result
	}

	logger.Info().
		Str("provider", provider.Name).
		Str("domain", provider.Domain).
		Msg("Processing account")

	r := &run{
		index:    index,
		name:     name,
		account:  account,
		provider: provider,
		state:    StateInit,
		logger:   logger,
	}

	cookies, err := s.prepareCookies(ctx, r)
	if err != nil {
		result.Outcome = models.Failed(common.TruncateErr(err))
		return result
	}
	r.transition(StateCookiesReady)

	r.session = httpclient.NewSession(provider, cookies, account.APIUser, s.session)
	defer r.session.Close()

	info := s.fetchUserInfo(ctx, r)
	result.UserInfo = info
	r.transition(StateInfoFetched)

	outcome, err := s.attempt(ctx, r)
	if err != nil {
		logger.Error().Err(err).Msg("Error during check-in")
		result.Outcome = models.Failed(common.TruncateErr(err))
		result.UserInfo = nil
		return result
	}
	r.transition(StateDone)

	result.Outcome = outcome
	return result
}

// prepareCookies normalizes account cookies and, when the provider requires it,
// unions them with freshly acquired WAF cookies
func (s *Service) prepareCookies(ctx context.Context, r *run) (models.Cookies, error) {
	userCookies := models.ParseCookies(r.account.Cookies)
	if len(userCookies) == 0 {
		r.logger.Error().Msg("Invalid cookie configuration")
		return nil, fmt.Errorf("%w: invalid cookie configuration", common.ErrConfig)
	}

	if !r.provider.RequiresBypass() {
		r.logger.Debug().Msg("No WAF bypass required, using account cookies directly")
		return userCookies, nil
	}

	if s.gateway == nil {
		return nil, fmt.Errorf("%w: no cookie gateway configured", common.ErrAcquisition)
	}

	waf, err := s.gateway.Acquire(ctx, r.name, r.provider.LoginURL())
	if err != nil {
		r.logger.Error().Err(err).Msg("Unable to acquire WAF cookies")
		if !errors.Is(err, common.ErrAcquisition) {
			err = fmt.Errorf("%w: %v", common.ErrAcquisition, err)
		}
		return nil, err
	}

	if missing := interfaces.MissingWAFCookies(waf); len(missing) > 0 {
		r.logger.Error().Strs("missing", missing).Msg("Incomplete WAF cookies")
		return nil, fmt.Errorf("%w: missing %v", common.ErrAcquisition, missing)
	}

	return models.Cookies(waf).Merge(userCookies), nil
}

// fetchUserInfo never fails the account: errors are carried in UserInfo.Error
func (s *Service) fetchUserInfo(ctx context.Context, r *run) *models.UserInfo {
	resp, err := r.session.Get(ctx, r.provider.URL(r.provider.UserInfoPath))
	if err != nil {
		info := &models.UserInfo{Error: "❌ 获取用户信息失败: " + common.TruncateErr(err)}
		r.logger.Warn().Err(err).Msg("User info request failed")
		return info
	}

	if resp.StatusCode == http.StatusOK {
		var payload struct {
			Success bool `json:"success"`
			Data    *struct {
				Quota     float64 `json:"quota"`
				UsedQuota float64 `json:"used_quota"`
			} `json:"data"`
		}
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			err = fmt.Errorf("%w: %v", common.ErrProtocol, err)
			r.logger.Warn().Err(err).Msg("User info response is not valid JSON")
			return &models.UserInfo{Error: "❌ 获取用户信息失败: " + common.TruncateErr(err)}
		}
		if payload.Success && payload.Data == nil {
			err := fmt.Errorf("%w: user info reply has no data", common.ErrProtocol)
			r.logger.Warn().Err(err).Msg("User info response is missing data")
			return &models.UserInfo{Error: "❌ 获取用户信息失败: " + common.TruncateErr(err)}
		}
		if payload.Success {
			info := &models.UserInfo{
				Success:   true,
				Quota:     models.ScaleQuota(payload.Data.Quota),
				UsedQuota: models.ScaleQuota(payload.Data.UsedQuota),
			}
			r.logger.Info().
				Float64("quota", info.Quota).
				Float64("used_quota", info.UsedQuota).
				Msg("User info fetched")
			return info
		}
	}

	r.logger.Warn().Int("status", resp.StatusCode).Msg("User info request unsuccessful")
	return &models.UserInfo{Error: fmt.Sprintf("❌ 获取用户信息失败: HTTP %d", resp.StatusCode)}
}

// attempt runs the status short-circuit, the new endpoint and the legacy fallback.
// A returned error is a transport failure that aborts the account.
func (s *Service) attempt(ctx context.Context, r *run) (models.CheckinOutcome, error) {
	if r.provider.HasStatus() {
		if s.alreadyChecked(ctx, r) {
			r.transition(StateStatusKnown)
			r.logger.Info().Msg("Already checked in today, skipping check-in")
			return models.Succeeded(true), nil
		}
	}

	if r.provider.AutoCheckin() {
		// Reported as success even when the info fetch failed
		r.logger.Info().Msg("Check-in completed automatically by the user info request")
		return models.Succeeded(false), nil
	}

	var newFailure string
	if r.provider.HasCheckin() {
		r.transition(StateAttemptedNew)
		verdict, err := s.post(ctx, r, *r.provider.CheckinPath, ClassifyCheckin)
		if err != nil {
			return models.CheckinOutcome{}, err
		}
		if verdict.Success {
			if verdict.AlreadyChecked {
				r.logger.Info().Msg("Already checked in today")
			} else {
				r.logger.Info().Msg("Check-in succeeded")
			}
			return models.Succeeded(verdict.AlreadyChecked), nil
		}

		newFailure = verdict.Reason
		r.logger.Warn().Str("reason", verdict.Reason).Msg("New check-in endpoint failed")

		if !r.provider.HasLegacyCheckin() {
			return models.Failed(verdict.Reason), nil
		}
		r.logger.Info().Msg("Falling back to legacy sign-in endpoint")
	}

	r.transition(StateFallbackLegacy)
	verdict, err := s.post(ctx, r, *r.provider.SignInPath, ClassifySignIn)
	if err != nil {
		return models.CheckinOutcome{}, err
	}
	if verdict.Success {
		r.logger.Info().Msg("Legacy sign-in succeeded")
		return models.Succeeded(false), nil
	}

	r.logger.Error().
		Str("reason", verdict.Reason).
		Str("new_endpoint_reason", newFailure).
		Msg("Check-in failed")
	return models.Failed(verdict.Reason), nil
}

func (s *Service) post(ctx context.Context, r *run, path string, classify func(*httpclient.Response) Verdict) (Verdict, error) {
	resp, err := r.session.PostJSON(ctx, r.provider.URL(path))
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", common.ErrTransport, err)
	}
	r.logger.Debug().Str("path", path).Int("status", resp.StatusCode).Msg("Check-in response received")
	return classify(resp), nil
}

// alreadyChecked queries the status endpoint; any failure there means "unknown"
func (s *Service) alreadyChecked(ctx context.Context, r *run) bool {
	resp, err := r.session.Get(ctx, r.provider.URL(*r.provider.CheckinStatusPath))
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to get check-in status")
		return false
	}
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var payload struct {
		Success bool `json:"success"`
		Data    struct {
			Checked bool `json:"checked"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		r.logger.Warn().Err(fmt.Errorf("%w: %v", common.ErrProtocol, err)).Msg("Check-in status response is not valid JSON")
		return false
	}
	return payload.Success && payload.Data.Checked
}
