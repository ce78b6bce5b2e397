package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment  string          `toml:"environment"`   // "development" or "production"
	AlwaysNotify bool            `toml:"always_notify"` // Notify on every run, not only on failure or balance change
	Accounts     AccountsConfig  `toml:"accounts"`
	Providers    ProvidersConfig `toml:"providers"`
	Storage      StorageConfig   `toml:"storage"`
	Logging      LoggingConfig   `toml:"logging"`
	HTTP         HTTPConfig      `toml:"http"`
	Browser      BrowserConfig   `toml:"browser"`
	Notify       NotifyConfig    `toml:"notify"`
}

// AccountsConfig locates the account list. Inline JSON wins over the file.
type AccountsConfig struct {
	JSON string `toml:"json"` // JSON array of {cookies, api_user, provider?, name?}
	File string `toml:"file"` // Path to a file holding the same array
}

// ProvidersConfig locates provider overrides. Inline JSON wins over the file.
type ProvidersConfig struct {
	JSON string `toml:"json"` // JSON object keyed by provider name
	File string `toml:"file"`
}

type StorageConfig struct {
	Type   string       `toml:"type"` // "file" (default) or "badger"
	File   FileConfig   `toml:"file"`
	Badger BadgerConfig `toml:"badger"`
}

// FileConfig holds the plain-file fingerprint location
type FileConfig struct {
	Path string `toml:"path"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// HTTPConfig controls the per-account provider session
type HTTPConfig struct {
	Timeout          string `toml:"timeout"`           // Per-call timeout, e.g. "30s"
	UserAgent        string `toml:"user_agent"`        // Browser-like user agent sent to providers
	AcceptLanguage   string `toml:"accept_language"`   // Accept-Language header
	CloudflareBypass bool   `toml:"cloudflare_bypass"` // Wrap the transport with browser-like TLS settings
	AccountInterval  string `toml:"account_interval"`  // Minimum delay between accounts, e.g. "2s" (empty = none)
}

// BrowserConfig controls WAF cookie acquisition
type BrowserConfig struct {
	Headless          bool   `toml:"headless"`           // false shows the browser window for local debugging
	NoSandbox         bool   `toml:"no_sandbox"`         // Required in most containers
	UserAgent         string `toml:"user_agent"`         // Defaults to HTTP.UserAgent
	NavigationTimeout string `toml:"navigation_timeout"` // Bound on the whole page load, e.g. "30s"
	ReadyTimeout      string `toml:"ready_timeout"`      // Wait for document.readyState, e.g. "5s"
	SettleDelay       string `toml:"settle_delay"`       // Fixed delay used when the ready wait times out, e.g. "3s"
}

// NotifyConfig holds the settings of every notification channel
type NotifyConfig struct {
	Title    string         `toml:"title"`
	Email    EmailConfig    `toml:"email"`
	PushPlus PushPlusConfig `toml:"pushplus"`
	Server   ServerConfig   `toml:"serverchan"`
	DingTalk WebhookConfig  `toml:"dingtalk"`
	Feishu   WebhookConfig  `toml:"feishu"`
	WeCom    WebhookConfig  `toml:"wecom"`
	Desktop  DesktopConfig  `toml:"desktop"`
	Timeout  string         `toml:"timeout"` // Per-channel request timeout
}

type EmailConfig struct {
	User       string `toml:"user"`
	Password   string `toml:"password"`
	To         string `toml:"to"`
	SMTPServer string `toml:"smtp_server"` // Defaults to smtp.<domain of User>
	Port       int    `toml:"port"`        // Implicit TLS port (default: 465)
	FromName   string `toml:"from_name"`
}

type PushPlusConfig struct {
	Token    string `toml:"token"`
	Endpoint string `toml:"endpoint"`
}

// ServerConfig is the ServerChan (Server酱) channel
type ServerConfig struct {
	SendKey  string `toml:"send_key"`
	Endpoint string `toml:"endpoint"` // Base URL, the key and ".send" are appended
}

type WebhookConfig struct {
	Webhook string `toml:"webhook"`
}

type DesktopConfig struct {
	Enabled bool `toml:"enabled"`
}

// DefaultUserAgent is the browser identity shared by HTTP calls and the browser
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment:  "development",
		AlwaysNotify: false,
		Storage: StorageConfig{
			Type: "file",
			File: FileConfig{
				Path: "balance_hash.txt",
			},
			Badger: BadgerConfig{
				Path: "./data/checkin",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		HTTP: HTTPConfig{
			Timeout:        "30s",
			UserAgent:      DefaultUserAgent,
			AcceptLanguage: "zh-CN,zh;q=0.9,en;q=0.8",
		},
		Browser: BrowserConfig{
			Headless:          true,
			NoSandbox:         true,
			NavigationTimeout: "60s",
			ReadyTimeout:      "5s",
			SettleDelay:       "3s",
		},
		Notify: NotifyConfig{
			Title: "🔔 AnyRouter 签到提醒",
			Email: EmailConfig{
				Port:     465,
				FromName: "AnyRouter Assistant",
			},
			PushPlus: PushPlusConfig{
				Endpoint: "http://www.pushplus.plus/send",
			},
			Server: ServerConfig{
				Endpoint: "https://sctapi.ftqq.com",
			},
			Timeout: "15s",
		},
	}
}

// LoadFromFiles loads configuration with priority: default -> file1 -> file2 -> ... -> .env -> env.
// Later files override earlier files. CLI flags are applied afterwards by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read config file %s: %v", ErrConfig, path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("%w: failed to parse config file %s (file %d of %d): %v", ErrConfig, path, i+1, len(paths), err)
		}
	}

	// .env never overrides variables that are already set in the process
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("%w: failed to load .env: %v", ErrConfig, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config.
// The unprefixed names are the ones existing deployments already export.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("CHECKIN_ENV"); env != "" {
		config.Environment = env
	}

	if v := firstEnv("CHECKIN_ALWAYS_NOTIFY", "ALWAYS_NOTIFY"); v != "" {
		config.AlwaysNotify = ParseTruthy(v)
	}

	// Accounts and providers
	if v := firstEnv("CHECKIN_ACCOUNTS", "ANYROUTER_ACCOUNTS"); v != "" {
		config.Accounts.JSON = v
	}
	if v := os.Getenv("CHECKIN_ACCOUNTS_FILE"); v != "" {
		config.Accounts.File = v
	}
	if v := firstEnv("CHECKIN_PROVIDERS", "PROVIDERS"); v != "" {
		config.Providers.JSON = v
	}
	if v := os.Getenv("CHECKIN_PROVIDERS_FILE"); v != "" {
		config.Providers.File = v
	}

	// Storage
	if v := os.Getenv("CHECKIN_STORAGE_TYPE"); v != "" {
		config.Storage.Type = v
	}
	if v := os.Getenv("CHECKIN_FINGERPRINT_PATH"); v != "" {
		config.Storage.File.Path = v
	}
	if v := os.Getenv("CHECKIN_BADGER_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}

	// Logging
	if v := os.Getenv("CHECKIN_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("CHECKIN_LOG_OUTPUT"); v != "" {
		outputs := []string{}
		for _, out := range strings.Split(v, ",") {
			if out = strings.TrimSpace(out); out != "" {
				outputs = append(outputs, out)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// HTTP and browser
	if v := os.Getenv("CHECKIN_HTTP_TIMEOUT"); v != "" {
		config.HTTP.Timeout = v
	}
	if v := os.Getenv("CHECKIN_CLOUDFLARE_BYPASS"); v != "" {
		config.HTTP.CloudflareBypass = ParseTruthy(v)
	}
	if v := os.Getenv("CHECKIN_ACCOUNT_INTERVAL"); v != "" {
		config.HTTP.AccountInterval = v
	}
	if v := os.Getenv("CHECKIN_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Browser.Headless = b
		}
	}
	if v := os.Getenv("CHECKIN_BROWSER_READY_TIMEOUT"); v != "" {
		config.Browser.ReadyTimeout = v
	}
	if v := os.Getenv("CHECKIN_BROWSER_SETTLE_DELAY"); v != "" {
		config.Browser.SettleDelay = v
	}

	// Notification channels
	if v := os.Getenv("EMAIL_USER"); v != "" {
		config.Notify.Email.User = v
	}
	if v := os.Getenv("EMAIL_PASS"); v != "" {
		config.Notify.Email.Password = v
	}
	if v := os.Getenv("EMAIL_TO"); v != "" {
		config.Notify.Email.To = v
	}
	if v := os.Getenv("CUSTOM_SMTP_SERVER"); v != "" {
		config.Notify.Email.SMTPServer = v
	}
	if v := os.Getenv("PUSHPLUS_TOKEN"); v != "" {
		config.Notify.PushPlus.Token = v
	}
	if v := os.Getenv("SERVERPUSHKEY"); v != "" {
		config.Notify.Server.SendKey = v
	}
	if v := os.Getenv("DINGDING_WEBHOOK"); v != "" {
		config.Notify.DingTalk.Webhook = v
	}
	if v := os.Getenv("FEISHU_WEBHOOK"); v != "" {
		config.Notify.Feishu.Webhook = v
	}
	if v := os.Getenv("WEIXIN_WEBHOOK"); v != "" {
		config.Notify.WeCom.Webhook = v
	}
	if v := os.Getenv("CHECKIN_DESKTOP_NOTIFY"); v != "" {
		config.Notify.Desktop.Enabled = ParseTruthy(v)
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, accountsFile string, alwaysNotify bool, logLevel string) {
	if accountsFile != "" {
		config.Accounts.File = accountsFile
		config.Accounts.JSON = ""
	}
	if alwaysNotify {
		config.AlwaysNotify = true
	}
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
}

// ParseTruthy accepts true/1/yes in any case
func ParseTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// ParseDuration parses a duration string, returning fallback when empty or invalid
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
