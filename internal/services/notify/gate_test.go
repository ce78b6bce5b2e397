package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ternarybob/checkin/internal/models"
)

func newTestGate() *Gate {
	gate := NewGate("🔔 AnyRouter 签到提醒")
	gate.now = func() time.Time { return time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC) }
	return gate
}

func result(index int, name string, outcome models.CheckinOutcome, info *models.UserInfo) models.AccountResult {
	return models.AccountResult{
		Index:    index,
		Key:      models.Key(index),
		Name:     name,
		Provider: "anyrouter",
		Outcome:  outcome,
		UserInfo: info,
	}
}

func balance(quota, used float64) *models.UserInfo {
	return &models.UserInfo{Success: true, Quota: quota, UsedQuota: used}
}

func TestComposeBalanceChange(t *testing.T) {
	results := []models.AccountResult{
		result(0, "main", models.Succeeded(false), balance(50, 3)),
		result(1, "backup", models.Succeeded(true), balance(12.5, 0)),
	}

	report := newTestGate().Compose(results, true, false)

	assert.True(t, report.Notify)
	assert.Equal(t, "🔔 AnyRouter 签到提醒", report.Title)
	assert.Equal(t, []string{
		"💰 [余额] main\n💰 已使用: $3.0, 当前余额: 💵$50.0",
		"💰 [余额] backup\n💰 已使用: $0.0, 当前余额: 💵$12.5",
	}, report.Entries)
	assert.Equal(t, []string{
		"📊 [统计] 签到结果统计:",
		"✅ [新签到] 【main】签到成功！",
		"ℹ️ [已签到] 【backup】今日已签到",
		"🎉 [成功] 所有账号签到成功！",
	}, report.Summary)

	assert.Equal(t, "⏰ [时间] 2025-03-01 08:30:00\n\n"+
		"💰 [余额] main\n💰 已使用: $3.0, 当前余额: 💵$50.0\n"+
		"💰 [余额] backup\n💰 已使用: $0.0, 当前余额: 💵$12.5\n\n"+
		"📊 [统计] 签到结果统计:\n"+
		"✅ [新签到] 【main】签到成功！\n"+
		"ℹ️ [已签到] 【backup】今日已签到\n"+
		"🎉 [成功] 所有账号签到成功！", report.Body)
}

func TestComposeNoChangeIsQuiet(t *testing.T) {
	results := []models.AccountResult{
		result(0, "main", models.Succeeded(false), balance(50, 3)),
	}

	gate := newTestGate()
	assert.False(t, gate.Decide(results, false, false))

	report := gate.Compose(results, false, false)
	assert.False(t, report.Notify)
	assert.Empty(t, report.Entries, "balances are only listed on change or always-notify")
}

func TestComposeFailure(t *testing.T) {
	results := []models.AccountResult{
		result(0, "main", models.Failed("HTTP 500"), &models.UserInfo{Error: "❌ 获取用户信息失败: HTTP 500"}),
		result(1, "backup", models.Failed("waf cookie acquisition failed..."), nil),
		result(2, "third", models.Succeeded(false), balance(10, 1)),
	}

	report := newTestGate().Compose(results, false, false)

	assert.True(t, report.Notify)
	assert.Equal(t, []string{
		"❌ [失败] main\n❌ 获取用户信息失败: HTTP 500",
		"❌ [失败] backup\nwaf cookie acquisition failed...",
	}, report.Entries)
	assert.Equal(t, "❌ [失败] 【main】、【backup】签到失败！", report.Summary[2])
	assert.Equal(t, "⚠️ [警告] 部分账号签到成功！", report.Summary[len(report.Summary)-1])
}

func TestComposeBalanceEntriesAreDeduplicated(t *testing.T) {
	// A failed account may still carry balances when the check-in POST was refused
	results := []models.AccountResult{
		result(0, "main-2", models.Failed("quota exhausted"), balance(0, 50)),
		result(1, "main", models.Succeeded(false), balance(5, 0)),
	}

	report := newTestGate().Compose(results, true, false)

	// "main" is a substring of the "main-2" entry, so it is skipped as well
	assert.Equal(t, []string{"❌ [失败] main-2\n💰 已使用: $50.0, 当前余额: 💵$0.0"}, report.Entries)
}

func TestComposeAlwaysNotify(t *testing.T) {
	results := []models.AccountResult{
		result(0, "a", models.Succeeded(true), balance(1, 0)),
		result(1, "b", models.Succeeded(true), nil),
	}

	report := newTestGate().Compose(results, false, true)

	assert.True(t, report.Notify)
	assert.Len(t, report.Entries, 1, "accounts without user info get no balance line")
	assert.Equal(t, "ℹ️ [已签到] 【a】、【b】今日已签到", report.Summary[1])
	assert.Equal(t, "ℹ️ [提示] 所有账号今日已签到！", report.Summary[2])
}

func TestComposeNothingToSay(t *testing.T) {
	// always-notify with no balances and no failures produces no entries
	results := []models.AccountResult{
		result(0, "a", models.Succeeded(false), nil),
	}

	report := newTestGate().Compose(results, false, true)
	assert.False(t, report.Notify)
}

func TestSummaryPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []models.CheckinOutcome
		want     string
	}{
		{"all already checked", []models.CheckinOutcome{models.Succeeded(true), models.Succeeded(true)}, "ℹ️ [提示] 所有账号今日已签到！"},
		{"all succeeded mixed", []models.CheckinOutcome{models.Succeeded(true), models.Succeeded(false)}, "🎉 [成功] 所有账号签到成功！"},
		{"all succeeded fresh", []models.CheckinOutcome{models.Succeeded(false)}, "🎉 [成功] 所有账号签到成功！"},
		{"partial", []models.CheckinOutcome{models.Succeeded(true), models.Failed("x")}, "⚠️ [警告] 部分账号签到成功！"},
		{"all failed", []models.CheckinOutcome{models.Failed("x"), models.Failed("y")}, "❌ [错误] 所有账号签到失败！"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var results []models.AccountResult
			for i, outcome := range tt.outcomes {
				results = append(results, result(i, models.AccountConfig{}.DisplayName(i), outcome, nil))
			}
			summary := summarize(results)
			assert.Equal(t, tt.want, summary[len(summary)-1])
		})
	}
}
