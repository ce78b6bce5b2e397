package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ternarybob/checkin/internal/models"
	"github.com/ternarybob/checkin/internal/services/orchestrator"
)

// renderSummary prints one row per account and a totals footer
func renderSummary(w io.Writer, summary *orchestrator.RunSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Account", "Provider", "Result", "Balance"})

	for _, result := range summary.Results {
		t.AppendRow(table.Row{
			result.Index + 1,
			result.Name,
			result.Provider,
			outcomeLabel(result.Outcome),
			result.UserInfo.Summary(),
		})
	}

	t.AppendFooter(table.Row{"", "", "", "Success", fmt.Sprintf("%d/%d", summary.SuccessCount, summary.Total)})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func outcomeLabel(outcome models.CheckinOutcome) string {
	switch {
	case !outcome.Success:
		return "failed: " + outcome.Message
	case outcome.AlreadyChecked:
		return "already checked"
	default:
		return "checked in"
	}
}
