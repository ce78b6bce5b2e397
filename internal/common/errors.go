package common

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Error taxonomy. Concrete errors wrap one of these with %w.
var (
	// ErrConfig marks missing or malformed account/provider configuration
	ErrConfig = errors.New("configuration error")

	// ErrProviderNotFound is returned when an account names an unknown provider
	ErrProviderNotFound = fmt.Errorf("%w: provider not found", ErrConfig)

	// ErrAcquisition marks anti-bot cookies that were incomplete or unobtainable
	ErrAcquisition = errors.New("waf cookie acquisition failed")

	// ErrTransport marks network failures, timeouts and non-200 responses
	ErrTransport = errors.New("transport failure")

	// ErrProtocol marks responses with an unexpected shape
	ErrProtocol = errors.New("protocol failure")

	// ErrNotifyChannel marks a single notification channel failing to send
	ErrNotifyChannel = errors.New("notification channel failure")
)

// DiagnosticLimit is the number of runes kept by Truncate
const DiagnosticLimit = 50

// Truncate shortens a diagnostic to DiagnosticLimit runes followed by "..."
func Truncate(s string) string {
	if utf8.RuneCountInString(s) <= DiagnosticLimit {
		return s + "..."
	}
	runes := []rune(s)
	return string(runes[:DiagnosticLimit]) + "..."
}

// TruncateErr is Truncate applied to err.Error()
func TruncateErr(err error) string {
	if err == nil {
		return ""
	}
	return Truncate(err.Error())
}
