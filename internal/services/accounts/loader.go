// -----------------------------------------------------------------------
// Account list loading - inline JSON (env) or a JSON file
// Any malformed entry rejects the whole list: the run cannot start
// -----------------------------------------------------------------------

package accounts

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/titanous/json5"

	"github.com/ternarybob/checkin/internal/common"
	"github.com/ternarybob/checkin/internal/models"
)

// Loader parses and validates account configuration
type Loader struct {
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewLoader creates a new account loader
func NewLoader(logger arbor.ILogger) *Loader {
	return &Loader{
		validate: validator.New(),
		logger:   logger,
	}
}

// Load resolves the configured source and parses it. Inline JSON wins over the file.
func (l *Loader) Load(config common.AccountsConfig) ([]models.AccountConfig, error) {
	raw := strings.TrimSpace(config.JSON)
	source := "inline"

	if raw == "" && config.File != "" {
		data, err := os.ReadFile(config.File)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read accounts file %s: %v", common.ErrConfig, config.File, err)
		}
		raw = strings.TrimSpace(string(data))
		source = config.File
	}

	if raw == "" {
		return nil, fmt.Errorf("%w: no accounts configured (set ANYROUTER_ACCOUNTS or accounts.file)", common.ErrConfig)
	}

	accounts, err := l.Parse([]byte(raw))
	if err != nil {
		return nil, err
	}

	l.logger.Info().
		Str("source", source).
		Int("accounts", len(accounts)).
		Msg("Account configuration loaded")

	return accounts, nil
}

// Parse decodes a JSON array of {cookies, api_user, provider?, name?}
func (l *Loader) Parse(data []byte) ([]models.AccountConfig, error) {
	var entries interface{}
	if err := json5.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: account configuration format is incorrect: %v", common.ErrConfig, err)
	}

	list, ok := entries.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: account configuration must use array format [{}]", common.ErrConfig)
	}

	accounts := make([]models.AccountConfig, 0, len(list))
	for i, entry := range list {
		account, err := l.parseEntry(i, entry)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, nil
}

func (l *Loader) parseEntry(index int, entry interface{}) (models.AccountConfig, error) {
	fields, ok := entry.(map[string]interface{})
	if !ok {
		return models.AccountConfig{}, fmt.Errorf("%w: account %d configuration format is incorrect", common.ErrConfig, index+1)
	}

	rawCookies, hasCookies := fields["cookies"]
	rawAPIUser, hasAPIUser := fields["api_user"]
	if !hasCookies || !hasAPIUser {
		return models.AccountConfig{}, fmt.Errorf("%w: account %d missing required fields (cookies, api_user)", common.ErrConfig, index+1)
	}

	account := models.AccountConfig{
		Cookies:  models.ParseCookies(rawCookies),
		APIUser:  scalarString(rawAPIUser),
		Provider: models.DefaultProvider,
	}

	if provider, ok := fields["provider"].(string); ok && provider != "" {
		account.Provider = provider
	}

	if rawName, present := fields["name"]; present {
		name, _ := rawName.(string)
		if strings.TrimSpace(name) == "" {
			return models.AccountConfig{}, fmt.Errorf("%w: account %d name field cannot be empty", common.ErrConfig, index+1)
		}
		account.Name = name
	}

	if err := l.validate.Struct(account); err != nil {
		return models.AccountConfig{}, fmt.Errorf("%w: account %d is invalid: %v", common.ErrConfig, index+1, err)
	}

	// Unparseable cookies are reported per account at check-in time, not here
	if len(account.Cookies) == 0 {
		l.logger.Warn().
			Str("account", account.DisplayName(index)).
			Msg("Account has no parseable cookies")
	}

	return account, nil
}

// scalarString renders ids that may be written as JSON numbers
func scalarString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}
