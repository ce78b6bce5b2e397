// -----------------------------------------------------------------------
// Application wiring - builds the check-in pipeline from configuration
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/checkin/internal/common"
	"github.com/ternarybob/checkin/internal/httpclient"
	"github.com/ternarybob/checkin/internal/interfaces"
	"github.com/ternarybob/checkin/internal/models"
	"github.com/ternarybob/checkin/internal/services/accounts"
	"github.com/ternarybob/checkin/internal/services/balance"
	"github.com/ternarybob/checkin/internal/services/browser"
	"github.com/ternarybob/checkin/internal/services/checkin"
	"github.com/ternarybob/checkin/internal/services/notify"
	"github.com/ternarybob/checkin/internal/services/orchestrator"
	"github.com/ternarybob/checkin/internal/services/providers"
	"github.com/ternarybob/checkin/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger
	RunID  string

	Registry         *providers.Registry
	AccountLoader    *accounts.Loader
	FingerprintStore interfaces.FingerprintStore
	Notifier         *notify.MultiNotifier
	CheckinService   *checkin.Service
	Orchestrator     *orchestrator.Orchestrator
}

// New creates the application. Every log line of the run carries the run id as
// correlation id.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	runID := uuid.New().String()

	app := &App{
		Config: cfg,
		Logger: logger.WithCorrelationId(runID),
		RunID:  runID,
	}

	app.Registry = NewRegistry(cfg, app.Logger)
	app.AccountLoader = accounts.NewLoader(app.Logger)

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.initServices()

	app.Logger.Info().
		Str("run_id", runID).
		Int("providers", app.Registry.Len()).
		Str("storage", cfg.Storage.Type).
		Msg("Application initialization complete")

	return app, nil
}

// NewRegistry builds the provider registry from the defaults and configured overrides
func NewRegistry(cfg *common.Config, logger arbor.ILogger) *providers.Registry {
	overrides := providers.NewOverrideParser(logger).Load(cfg.Providers)
	registry := providers.NewRegistry(overrides)

	logger.Info().
		Strs("providers", registry.Names()).
		Msg("Provider configuration loaded")

	return registry
}

func (a *App) initStorage() error {
	store, err := storage.NewFingerprintStore(a.Logger, a.Config)
	if err != nil {
		return err
	}
	a.FingerprintStore = store
	return nil
}

func (a *App) initServices() {
	session := httpclient.SessionOptions{
		Timeout:          common.ParseDuration(a.Config.HTTP.Timeout, 30*time.Second),
		UserAgent:        a.Config.HTTP.UserAgent,
		AcceptLanguage:   a.Config.HTTP.AcceptLanguage,
		CloudflareBypass: a.Config.HTTP.CloudflareBypass,
	}

	gateway := browser.NewCookieGateway(
		browser.NewGatewayConfig(a.Config.Browser, a.Config.HTTP.UserAgent),
		a.Logger,
	)

	a.CheckinService = checkin.NewService(a.Registry, gateway, session, a.Logger)
	a.Notifier = notify.NewFromConfig(a.Config.Notify, a.Logger)

	a.Orchestrator = orchestrator.NewOrchestrator(
		a.CheckinService,
		balance.NewDetector(a.FingerprintStore, a.Logger),
		notify.NewGate(a.Config.Notify.Title),
		a.Notifier,
		orchestrator.Options{
			AlwaysNotify:    a.Config.AlwaysNotify,
			AccountInterval: common.ParseDuration(a.Config.HTTP.AccountInterval, 0),
		},
		a.Logger,
	)
}

// LoadAccounts reads the configured account list
func (a *App) LoadAccounts() ([]models.AccountConfig, error) {
	return a.AccountLoader.Load(a.Config.Accounts)
}

// Run loads the accounts and executes one check-in run
func (a *App) Run(ctx context.Context) (*orchestrator.RunSummary, error) {
	accountList, err := a.LoadAccounts()
	if err != nil {
		return nil, err
	}
	return a.Orchestrator.Run(ctx, accountList)
}

// Close releases the fingerprint store
func (a *App) Close() error {
	if a.FingerprintStore != nil {
		if err := a.FingerprintStore.Close(); err != nil {
			return fmt.Errorf("failed to close fingerprint store: %w", err)
		}
		a.Logger.Debug().Msg("Fingerprint store closed")
	}
	return nil
}
