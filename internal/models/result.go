package models

import (
	"fmt"
	"math"
	"strconv"
)

// QuotaScale converts raw provider quota integers into currency units
const QuotaScale = 500000

// ScaleQuota divides a raw quota by QuotaScale and rounds to 2 decimals.
// Exact ties round half to even on the binary value, so 0.125 becomes 0.12.
func ScaleQuota(raw float64) float64 {
	v, _ := strconv.ParseFloat(strconv.FormatFloat(raw/QuotaScale, 'f', 2, 64), 64)
	return v
}

// FormatAmount renders an amount the way the notification text shows it
func FormatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if v == math.Trunc(v) {
		s += ".0"
	}
	return s
}

// UserInfo is the per-run balance report of one account
type UserInfo struct {
	Success   bool    `json:"success"`
	Quota     float64 `json:"quota"`      // Scaled remaining balance
	UsedQuota float64 `json:"used_quota"` // Scaled consumed balance
	Error     string  `json:"error,omitempty"`
}

// Display renders the balance line shown in logs and notifications
func (u *UserInfo) Display() string {
	return fmt.Sprintf("💰 已使用: $%s, 当前余额: 💵$%s", FormatAmount(u.UsedQuota), FormatAmount(u.Quota))
}

// Summary returns Display for a successful fetch and the error string otherwise
func (u *UserInfo) Summary() string {
	if u == nil {
		return ""
	}
	if u.Success {
		return u.Display()
	}
	if u.Error == "" {
		return "未知错误"
	}
	return u.Error
}

// CheckinOutcome is the terminal classification of one account's check-in
type CheckinOutcome struct {
	Success        bool   `json:"success"`
	AlreadyChecked bool   `json:"already_checked"` // Only meaningful when Success
	Message        string `json:"message,omitempty"`
}

// Succeeded builds a successful outcome
func Succeeded(alreadyChecked bool) CheckinOutcome {
	return CheckinOutcome{Success: true, AlreadyChecked: alreadyChecked}
}

// Failed builds a failed outcome with a diagnostic message
func Failed(message string) CheckinOutcome {
	return CheckinOutcome{Success: false, Message: message}
}

// AccountResult is what the orchestrator records once an account reaches Done
type AccountResult struct {
	Index    int            `json:"index"`
	Key      string         `json:"key"`
	Name     string         `json:"name"`
	Provider string         `json:"provider"`
	Outcome  CheckinOutcome `json:"outcome"`
	UserInfo *UserInfo      `json:"user_info,omitempty"` // nil when the account aborted before the info fetch
}

// HasBalance reports whether a successful user-info fetch is attached
func (r AccountResult) HasBalance() bool {
	return r.UserInfo != nil && r.UserInfo.Success
}

// BalanceEntry holds one account's balance in a snapshot
type BalanceEntry struct {
	Quota float64 `json:"quota"`
	Used  float64 `json:"used"`
}

// BalanceSnapshot maps account key -> balance for accounts whose info fetch succeeded
type BalanceSnapshot map[string]BalanceEntry
