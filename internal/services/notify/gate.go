package notify

import (
	"strings"
	"time"

	"github.com/ternarybob/checkin/internal/models"
)

const (
	timeLayout = "2006-01-02 15:04:05"
	nameJoiner = "】、【"
)

// Report is the aggregated notification of one run
type Report struct {
	Title   string
	Body    string
	Entries []string // Per-account failure and balance entries
	Summary []string // Statistics block, last line is the overall verdict
	Notify  bool     // Whether the report should be pushed
}

// Gate decides whether a run is notify-worthy and composes the report
type Gate struct {
	title string
	now   func() time.Time
}

// NewGate creates a gate producing reports titled title
func NewGate(title string) *Gate {
	return &Gate{
		title: title,
		now:   time.Now,
	}
}

// Decide reports whether the run warrants a notification: any failure, the
// always-notify flag, or a balance change
func (g *Gate) Decide(results []models.AccountResult, balanceChanged, alwaysNotify bool) bool {
	if alwaysNotify || balanceChanged {
		return true
	}
	for _, result := range results {
		if !result.Outcome.Success {
			return true
		}
	}
	return false
}

// Compose builds the report. It is pushed only when Decide holds and at least
// one entry was produced.
func (g *Gate) Compose(results []models.AccountResult, balanceChanged, alwaysNotify bool) Report {
	report := Report{Title: g.title}

	for _, result := range results {
		if !result.Outcome.Success {
			report.Entries = append(report.Entries, failureEntry(result))
		}
	}

	if balanceChanged || alwaysNotify {
		for _, result := range results {
			if !result.HasBalance() || mentions(report.Entries, result.Name) {
				continue
			}
			report.Entries = append(report.Entries, "💰 [余额] "+result.Name+"\n"+result.UserInfo.Display())
		}
	}

	report.Summary = summarize(results)
	report.Notify = g.Decide(results, balanceChanged, alwaysNotify) && len(report.Entries) > 0
	report.Body = strings.Join([]string{
		"⏰ [时间] " + g.now().Format(timeLayout),
		strings.Join(report.Entries, "\n"),
		strings.Join(report.Summary, "\n"),
	}, "\n\n")

	return report
}

func failureEntry(result models.AccountResult) string {
	entry := "❌ [失败] " + result.Name
	switch {
	case result.UserInfo != nil:
		entry += "\n" + result.UserInfo.Summary()
	case result.Outcome.Message != "":
		entry += "\n" + result.Outcome.Message
	}
	return entry
}

// mentions matches by substring, so a name contained in another entry's text is skipped too
func mentions(entries []string, name string) bool {
	for _, entry := range entries {
		if strings.Contains(entry, name) {
			return true
		}
	}
	return false
}

func summarize(results []models.AccountResult) []string {
	var fresh, already, failed []string
	for _, result := range results {
		switch {
		case !result.Outcome.Success:
			failed = append(failed, result.Name)
		case result.Outcome.AlreadyChecked:
			already = append(already, result.Name)
		default:
			fresh = append(fresh, result.Name)
		}
	}

	summary := []string{"📊 [统计] 签到结果统计:"}
	if len(fresh) > 0 {
		summary = append(summary, "✅ [新签到] 【"+strings.Join(fresh, nameJoiner)+"】签到成功！")
	}
	if len(already) > 0 {
		summary = append(summary, "ℹ️ [已签到] 【"+strings.Join(already, nameJoiner)+"】今日已签到")
	}
	if len(failed) > 0 {
		summary = append(summary, "❌ [失败] 【"+strings.Join(failed, nameJoiner)+"】签到失败！")
	}

	succeeded := len(fresh) + len(already)
	switch {
	case succeeded == len(results) && len(already) > 0 && len(fresh) == 0:
		summary = append(summary, "ℹ️ [提示] 所有账号今日已签到！")
	case succeeded == len(results):
		summary = append(summary, "🎉 [成功] 所有账号签到成功！")
	case succeeded > 0:
		summary = append(summary, "⚠️ [警告] 部分账号签到成功！")
	default:
		summary = append(summary, "❌ [错误] 所有账号签到失败！")
	}
	return summary
}
