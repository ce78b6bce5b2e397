// -----------------------------------------------------------------------
// checkin - daily multi-provider check-in runner
// -----------------------------------------------------------------------

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/checkin/internal/app"
	"github.com/ternarybob/checkin/internal/common"
)

// defaultConfigFiles are probed in order when no --config is given
var defaultConfigFiles = []string{"checkin.toml", "deployments/local/checkin.toml"}

var (
	configFiles  []string
	accountsFile string
	alwaysNotify bool
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:           "checkin",
	Short:         "Runs the daily check-in for every configured account.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCheckin,
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (repeatable, later files override earlier ones)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&accountsFile, "accounts", "", "Accounts JSON file (overrides configured accounts)")
	rootCmd.Flags().BoolVar(&alwaysNotify, "always-notify", false, "Notify on every run, not only on failures or balance changes")

	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(versionCmd)
}

// exitError carries a process exit code through cobra
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	common.InstallCrashHandler(common.LogDirectory())
	defer common.RecoverWithCrashFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err == nil {
		return
	}

	var exit *exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}

	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}

// loadConfig resolves defaults -> files -> .env -> env -> flags and sets up logging
func loadConfig() (*common.Config, arbor.ILogger, error) {
	paths := configFiles
	if len(paths) == 0 {
		for _, candidate := range defaultConfigFiles {
			if _, err := os.Stat(candidate); err == nil {
				paths = append(paths, candidate)
				break
			}
		}
	}

	config, err := common.LoadFromFiles(paths...)
	if err != nil {
		return nil, nil, err
	}

	common.ApplyFlagOverrides(config, accountsFile, alwaysNotify, logLevel)

	logger := common.SetupLogger(config)

	logger.Debug().
		Strs("config_files", paths).
		Str("environment", config.Environment).
		Str("storage_type", config.Storage.Type).
		Str("log_level", config.Logging.Level).
		Bool("always_notify", config.AlwaysNotify).
		Msg("Resolved configuration")

	return config, logger, nil
}

func runCheckin(cmd *cobra.Command, args []string) error {
	config, logger, err := loadConfig()
	if err != nil {
		// Logging is not configured yet, use the console fallback
		common.GetLogger().Error().Err(err).Msg("Failed to load configuration")
		return &exitError{code: 1}
	}

	logger.Info().
		Str("version", common.GetVersion()).
		Msg("Check-in runner started")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize application")
		return &exitError{code: 1}
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close application")
		}
	}()

	summary, err := application.Run(cmd.Context())
	if summary == nil {
		application.Logger.Error().Err(err).Msg("Check-in run could not start")
		return &exitError{code: 1}
	}
	if err != nil {
		application.Logger.Warn().Err(err).Msg("Check-in run interrupted")
	}

	renderSummary(os.Stdout, summary)

	if code := summary.ExitCode(); code != 0 {
		return &exitError{code: code}
	}
	return nil
}
