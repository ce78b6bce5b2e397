package common

import (
	"github.com/ternarybob/arbor"
)

// AccountLogger wraps arbor.ILogger with the context of one account.
//
// The base logger is expected to carry the run id as CorrelationID (see app.New),
// so a run reads back as one stream; every event additionally carries the account name.
type AccountLogger struct {
	logger  arbor.ILogger
	account string
}

// NewAccountLogger creates an AccountLogger
func NewAccountLogger(baseLogger arbor.ILogger, account string) *AccountLogger {
	return &AccountLogger{
		logger:  baseLogger,
		account: account,
	}
}

// Account returns the display name attached to every event
func (l *AccountLogger) Account() string {
	return l.account
}

func (l *AccountLogger) Info() arbor.ILogEvent {
	return l.logger.Info().Str("account", l.account)
}

func (l *AccountLogger) Warn() arbor.ILogEvent {
	return l.logger.Warn().Str("account", l.account)
}

func (l *AccountLogger) Error() arbor.ILogEvent {
	return l.logger.Error().Str("account", l.account)
}

func (l *AccountLogger) Debug() arbor.ILogEvent {
	return l.logger.Debug().Str("account", l.account)
}
