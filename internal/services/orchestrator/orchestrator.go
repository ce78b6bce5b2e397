// -----------------------------------------------------------------------
// Run Orchestrator - processes accounts strictly one at a time, then
// evaluates balance changes and pushes the aggregated report
// -----------------------------------------------------------------------

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/checkin/internal/common"
	"github.com/ternarybob/checkin/internal/interfaces"
	"github.com/ternarybob/checkin/internal/models"
	"github.com/ternarybob/checkin/internal/services/notify"
)

// cancelledMessage is the failure message of accounts skipped by cancellation
const cancelledMessage = "cancelled"

// AccountRunner executes the check-in protocol for one account; *checkin.Service satisfies it
type AccountRunner interface {
	CheckIn(ctx context.Context, index int, account models.AccountConfig) models.AccountResult
}

// ChangeDetector reports balance changes; *balance.Detector satisfies it
type ChangeDetector interface {
	Evaluate(ctx context.Context, snapshot models.BalanceSnapshot) (bool, string, error)
}

// Options holds the run policy
type Options struct {
	AlwaysNotify    bool
	AccountInterval time.Duration // Minimum spacing between account starts, 0 = unpaced
}

// RunSummary is the outcome of one run
type RunSummary struct {
	Results        []models.AccountResult
	SuccessCount   int
	Total          int
	BalanceChanged bool
	Fingerprint    string
	Notified       bool
	Duration       time.Duration
}

// ExitCode is 0 when at least one account succeeded, 1 otherwise
func (s *RunSummary) ExitCode() int {
	if s.SuccessCount > 0 {
		return 0
	}
	return 1
}

// Orchestrator drives a run
type Orchestrator struct {
	runner   AccountRunner
	detector ChangeDetector
	gate     *notify.Gate
	notifier interfaces.Notifier
	options  Options
	logger   arbor.ILogger
}

// NewOrchestrator creates a new run orchestrator
func NewOrchestrator(runner AccountRunner, detector ChangeDetector, gate *notify.Gate, notifier interfaces.Notifier, options Options, logger arbor.ILogger) *Orchestrator {
	return &Orchestrator{
		runner:   runner,
		detector: detector,
		gate:     gate,
		notifier: notifier,
		options:  options,
		logger:   logger,
	}
}

// Run checks in every account in input order. One account's failure never
// aborts the run; cancellation records the remaining accounts as failures and
// skips detection and notification.
func (o *Orchestrator) Run(ctx context.Context, accounts []models.AccountConfig) (*RunSummary, error) {
	if len(accounts) == 0 {
		return nil, fmt.Errorf("%w: no accounts to process", common.ErrConfig)
	}

	startTime := time.Now()
	summary := &RunSummary{
		Results: make([]models.AccountResult, 0, len(accounts)),
		Total:   len(accounts),
	}

	o.logger.Info().
		Int("accounts", len(accounts)).
		Bool("always_notify", o.options.AlwaysNotify).
		Dur("account_interval", o.options.AccountInterval).
		Msg("Starting check-in run")

	var limiter *rate.Limiter
	if o.options.AccountInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(o.options.AccountInterval), 1)
	}

	for i, account := range accounts {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				o.logger.Warn().Err(err).Msg("Run interrupted while waiting for next account")
			}
		}
		if ctx.Err() != nil {
			o.cancelRemaining(summary, accounts, i)
			break
		}

		result := o.checkIn(ctx, i, account)
		if result.Outcome.Success {
			summary.SuccessCount++
		} else {
			o.logger.Info().Str("account", result.Name).Msg("Account failed, notification will be sent")
		}
		summary.Results = append(summary.Results, result)
	}

	summary.Duration = time.Since(startTime)

	if err := ctx.Err(); err != nil {
		o.logger.Warn().Err(err).Int("processed", len(summary.Results)).Msg("Run cancelled, skipping balance detection and notification")
		return summary, err
	}

	changed, fingerprint, err := o.detector.Evaluate(ctx, Snapshot(summary.Results))
	if err != nil {
		o.logger.Warn().Err(err).Msg("Balance change detection incomplete")
	}
	summary.BalanceChanged = changed
	summary.Fingerprint = fingerprint

	report := o.gate.Compose(summary.Results, changed, o.options.AlwaysNotify)
	if report.Notify {
		o.notifier.PushMessage(ctx, report.Title, report.Body, interfaces.MessageText)
		summary.Notified = true
		o.logger.Info().Msg("Notification sent due to failures or balance changes")
	} else {
		o.logger.Info().Msg("All accounts successful and no balance changes detected, notification skipped")
	}

	o.logger.Info().
		Int("success", summary.SuccessCount).
		Int("total", summary.Total).
		Bool("balance_changed", summary.BalanceChanged).
		Bool("notified", summary.Notified).
		Dur("duration", summary.Duration).
		Msg("Check-in run completed")

	return summary, nil
}

// checkIn runs one account, folding a panic into a Failure result
func (o *Orchestrator) checkIn(ctx context.Context, index int, account models.AccountConfig) (result models.AccountResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().
				Str("account", account.DisplayName(index)).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in account check-in")

			result = models.AccountResult{
				Index:    index,
				Key:      models.Key(index),
				Name:     account.DisplayName(index),
				Provider: account.Provider,
				Outcome:  models.Failed(common.Truncate(fmt.Sprintf("panic: %v", r))),
			}
		}
	}()

	return o.runner.CheckIn(ctx, index, account)
}

func (o *Orchestrator) cancelRemaining(summary *RunSummary, accounts []models.AccountConfig, from int) {
	for i := from; i < len(accounts); i++ {
		summary.Results = append(summary.Results, models.AccountResult{
			Index:    i,
			Key:      models.Key(i),
			Name:     accounts[i].DisplayName(i),
			Provider: accounts[i].Provider,
			Outcome:  models.Failed(cancelledMessage),
		})
	}
}

// Snapshot collects the balances of the accounts whose user info fetch succeeded
func Snapshot(results []models.AccountResult) models.BalanceSnapshot {
	snapshot := make(models.BalanceSnapshot)
	for _, result := range results {
		if !result.HasBalance() {
			continue
		}
		snapshot[result.Key] = models.BalanceEntry{
			Quota: result.UserInfo.Quota,
			Used:  result.UserInfo.UsedQuota,
		}
	}
	return snapshot
}
